package models

import (
	"encoding/json"
	"time"
)

// MetadataVersion is the current schema version written to metadata documents.
const MetadataVersion = 1

// CompletionDetails holds what a driver submits when a mission is delivered.
type CompletionDetails struct {
	CertificateImages []string `json:"certificate_images" bson:"certificate_images"`
	PackageImages     []string `json:"package_images" bson:"package_images"`
}

// FailureDetails holds the diagnostic context of a failed delivery.
type FailureDetails struct {
	Images     []string  `json:"failure_images" bson:"images"`
	Location   *Location `json:"failure_location" bson:"location"`
	Reason     string    `json:"failure_reason" bson:"reason"`
	Reported   bool      `json:"reported" bson:"reported"`
	ReportedTo *string   `json:"reported_to" bson:"reported_to"`
	DateFailed time.Time `json:"date_failed" bson:"date_failed"`
}

// MissionMetadata is the versioned metadata of a mission. On the wire it is a
// flat object; keys it does not know are kept in Extra and written back as-is.
type MissionMetadata struct {
	Version    int                `json:"-" bson:"version"`
	Completion *CompletionDetails `json:"-" bson:"completion,omitempty"`
	Failure    *FailureDetails    `json:"-" bson:"failure,omitempty"`
	Extra      map[string]any     `json:"-" bson:"extra,omitempty"`
}

var (
	completionKeys = []string{"certificate_images", "package_images"}
	failureKeys    = []string{"failure_images", "failure_location", "failure_reason", "reported", "reported_to", "date_failed"}
)

// MarshalJSON flattens the metadata kinds and the unknown keys into one object.
func (m MissionMetadata) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Extra)+8)
	for k, v := range m.Extra {
		out[k] = v
	}
	if m.Completion != nil {
		c := *m.Completion
		c.CertificateImages = nonNil(c.CertificateImages)
		c.PackageImages = nonNil(c.PackageImages)
		if err := mergeInto(out, c); err != nil {
			return nil, err
		}
	}
	if m.Failure != nil {
		f := *m.Failure
		f.Images = nonNil(f.Images)
		if err := mergeInto(out, f); err != nil {
			return nil, err
		}
	}
	out["schema_version"] = max(m.Version, MetadataVersion)
	return json.Marshal(out)
}

// UnmarshalJSON splits a flat metadata object into its typed kinds.
func (m *MissionMetadata) UnmarshalJSON(data []byte) error {
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = MissionMetadata{Version: MetadataVersion}

	if v, ok := raw["schema_version"]; ok {
		if err := json.Unmarshal(v, &m.Version); err != nil {
			return err
		}
		delete(raw, "schema_version")
	}
	if hasAny(raw, completionKeys) {
		m.Completion = &CompletionDetails{}
		if err := json.Unmarshal(data, m.Completion); err != nil {
			return err
		}
		dropKeys(raw, completionKeys)
	}
	if hasAny(raw, failureKeys) {
		m.Failure = &FailureDetails{}
		if err := json.Unmarshal(data, m.Failure); err != nil {
			return err
		}
		dropKeys(raw, failureKeys)
	}
	extra, err := decodeExtra(raw)
	if err != nil {
		return err
	}
	m.Extra = extra
	return nil
}

// InspectionStatus is the pass/fail classification of a daily check.
type InspectionStatus string

const (
	InspectionGood InspectionStatus = "good"
	InspectionBad  InspectionStatus = "bad"
)

// InspectionMetadata is the typed content of a daily vehicle check.
// Checks only holds items the driver answered; a missing key is "not answered".
type InspectionMetadata struct {
	Version                   int              `json:"-" bson:"version"`
	VehicleNumber             string           `json:"vehicleNumber" bson:"vehicle_number"`
	Mileage                   *float64         `json:"mileage,omitempty" bson:"mileage,omitempty"`
	Checks                    map[string]bool  `json:"checks" bson:"checks"`
	PaintAndBody              string           `json:"paintAndBody" bson:"paint_and_body"`
	EventsObligatingReporting string           `json:"eventsObligatingReporting" bson:"events_obligating_reporting"`
	Signature                 string           `json:"signature,omitempty" bson:"signature,omitempty"`
	Status                    InspectionStatus `json:"status,omitempty" bson:"status"`
	Extra                     map[string]any   `json:"-" bson:"extra,omitempty"`
}

var inspectionKeys = []string{"vehicleNumber", "mileage", "checks", "paintAndBody", "eventsObligatingReporting", "signature", "status"}

type inspectionAlias InspectionMetadata

// MarshalJSON writes the known fields next to any unknown keys.
func (m InspectionMetadata) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Extra)+8)
	for k, v := range m.Extra {
		out[k] = v
	}
	a := inspectionAlias(m)
	if a.Checks == nil {
		a.Checks = map[string]bool{}
	}
	if err := mergeInto(out, a); err != nil {
		return nil, err
	}
	out["schema_version"] = max(m.Version, MetadataVersion)
	return json.Marshal(out)
}

// UnmarshalJSON accepts both the nested "checks" object and the older layout
// where each check item was a top-level boolean.
func (m *InspectionMetadata) UnmarshalJSON(data []byte) error {
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var a inspectionAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*m = InspectionMetadata(a)
	m.Version = MetadataVersion
	m.Checks = nil
	if v, ok := raw["checks"]; ok {
		answered := map[string]*bool{}
		if err := json.Unmarshal(v, &answered); err != nil {
			return err
		}
		for k, b := range answered {
			if b != nil {
				m.setCheck(k, *b)
			}
		}
	}
	if v, ok := raw["schema_version"]; ok {
		if err := json.Unmarshal(v, &m.Version); err != nil {
			return err
		}
		delete(raw, "schema_version")
	}
	dropKeys(raw, inspectionKeys)

	for k, v := range raw {
		var b *bool
		if json.Unmarshal(v, &b) != nil || b == nil {
			continue
		}
		m.setCheck(k, *b)
		delete(raw, k)
	}
	extra, err := decodeExtra(raw)
	if err != nil {
		return err
	}
	m.Extra = extra
	return nil
}

func (m *InspectionMetadata) setCheck(item string, ok bool) {
	if m.Checks == nil {
		m.Checks = map[string]bool{}
	}
	m.Checks[item] = ok
}

func mergeInto(out map[string]any, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	for k, f := range fields {
		out[k] = f
	}
	return nil
}

func decodeExtra(raw map[string]json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	extra := make(map[string]any, len(raw))
	for k, v := range raw {
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return nil, err
		}
		extra[k] = val
	}
	return extra, nil
}

func hasAny(raw map[string]json.RawMessage, keys []string) bool {
	for _, k := range keys {
		if _, ok := raw[k]; ok {
			return true
		}
	}
	return false
}

func dropKeys(raw map[string]json.RawMessage, keys []string) {
	for _, k := range keys {
		delete(raw, k)
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
