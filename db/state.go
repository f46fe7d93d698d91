package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// key under which the scheduler's last-run date is persisted
const KeyCheckWatermark = "last_notification_check"

// read a value from the app_state key-value table. A key that has never
// been written reads back as "" with no error.
func ReadStateValue(pool *pgxpool.Pool, key string) (string, error) {
	var value string

	err := pool.QueryRow(
		context.Background(),
		"SELECT value FROM app_state WHERE key = $1",
		key,
	).Scan(&value)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read state value, %v", err)
	}

	return value, nil
}

// upsert a value into the app_state key-value table
func WriteStateValue(pool *pgxpool.Pool, key string, value string) error {
	_, err := pool.Exec(
		context.Background(),
		`INSERT INTO app_state (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = $2`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to write state value, %v", err)
	}
	return nil
}
