package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TIMEZONE", "UTC")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "mongo", cfg.DBDriver)
	assert.Equal(t, "fleet_dispatch", cfg.MongoDB)
	assert.Equal(t, 24*time.Hour, cfg.JWTExpiry)
	assert.Equal(t, "local", cfg.StorageDriver)
	assert.Equal(t, 15*time.Minute, cfg.UploadURLTTL)
	assert.Equal(t, 8, cfg.ComplianceConcurrency)
	assert.Equal(t, time.UTC, cfg.Location)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("SQL_DSN", "file::memory:")
	t.Setenv("JWT_EXPIRY", "2h")
	t.Setenv("TIMEZONE", "Asia/Jerusalem")
	t.Setenv("COMPLIANCE_CONCURRENCY", "3")
	t.Setenv("MQTT_TOPIC_PREFIX", "acme/")
	t.Setenv("INSPECTION_CHECK_ITEMS", "tires,lights")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "file::memory:", cfg.SQLDSN)
	assert.Equal(t, 2*time.Hour, cfg.JWTExpiry)
	assert.Equal(t, "Asia/Jerusalem", cfg.Location.String())
	assert.Equal(t, 3, cfg.ComplianceConcurrency)
	assert.Equal(t, "acme", cfg.MQTTTopicPrefix)
	assert.Equal(t, "tires,lights", cfg.InspectionCheckItems)
}

func TestLoad_BadValuesFallBack(t *testing.T) {
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("JWT_EXPIRY", "forever")
	t.Setenv("COMPLIANCE_CONCURRENCY", "many")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, cfg.JWTExpiry)
	assert.Equal(t, 8, cfg.ComplianceConcurrency)
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown timezone", map[string]string{"TIMEZONE": "Mars/Olympus"}},
		{"unknown db driver", map[string]string{"TIMEZONE": "UTC", "DB_DRIVER": "oracle"}},
		{"unknown storage driver", map[string]string{"TIMEZONE": "UTC", "STORAGE_DRIVER": "s3"}},
		{"firebase without bucket", map[string]string{"TIMEZONE": "UTC", "STORAGE_DRIVER": "firebase"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
