package fxrate

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// cacheRepository persists Rate Entries keyed by "currency:date" in the
// exchangerate table. Grounded on the teacher's clientdata.Repository
// (table-allowlisted Store/GetIfFresh/Get), adapted to the single table this
// service owns.
type cacheRepository struct {
	db *sql.DB
}

func newCacheRepository(db *sql.DB) *cacheRepository {
	return &cacheRepository{db: db}
}

type cachedRate struct {
	Rate          float64 `json:"rate"`
	EffectiveDate string  `json:"effectiveDate"`
}

func cacheKey(currency, date string) string {
	return currency + ":" + date
}

func (r *cacheRepository) Store(currency, date string, rate float64, effectiveDate string, ttl time.Duration) error {
	data, err := json.Marshal(cachedRate{Rate: rate, EffectiveDate: effectiveDate})
	if err != nil {
		return fmt.Errorf("failed to marshal rate: %w", err)
	}

	expiresAt := time.Now().Add(ttl).Unix()
	_, err = r.db.Exec(
		`INSERT OR REPLACE INTO exchangerate (pair, data, expires_at) VALUES (?, ?, ?)`,
		cacheKey(currency, date), string(data), expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store rate: %w", err)
	}
	return nil
}

func (r *cacheRepository) GetIfFresh(currency, date string) (*cachedRate, error) {
	var data string
	now := time.Now().Unix()
	err := r.db.QueryRow(
		`SELECT data FROM exchangerate WHERE pair = ? AND expires_at > ?`,
		cacheKey(currency, date), now,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query rate cache: %w", err)
	}

	var cached cachedRate
	if err := json.Unmarshal([]byte(data), &cached); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached rate: %w", err)
	}
	return &cached, nil
}

// DeleteExpired removes cache rows whose TTL has elapsed. Called by
// Service.MaintenanceSweep; nothing in this repository schedules that
// sweep.
func (r *cacheRepository) DeleteExpired() (int64, error) {
	now := time.Now().Unix()
	result, err := r.db.Exec(`DELETE FROM exchangerate WHERE expires_at < ?`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired rates: %w", err)
	}
	return result.RowsAffected()
}
