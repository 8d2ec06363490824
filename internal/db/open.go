package db

import (
	"context"
	"fmt"
	"time"
)

const connectTimeout = 15 * time.Second

// Open connects the store selected by driver: "mongo" uses mongoURI and
// mongoDB, the SQL drivers use sqlDSN.
func Open(ctx context.Context, driver, mongoURI, mongoDB, sqlDSN string) (*Store, error) {
	if driver != "mongo" {
		conn, err := OpenSQL(driver, sqlDSN)
		if err != nil {
			return nil, err
		}
		store, err := NewSQLStore(conn)
		if err != nil {
			if sqlDB, dbErr := conn.DB(); dbErr == nil {
				sqlDB.Close()
			}
			return nil, err
		}
		return store, nil
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := ConnectMongo(ctx, mongoURI)
	if err != nil {
		return nil, err
	}
	store, err := NewMongoStore(ctx, client, mongoDB)
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo store: %w", err)
	}
	return store, nil
}
