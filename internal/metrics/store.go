package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jimmypocock/FameFit-sub002/internal/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrPermanent marks backend failures that retrying cannot fix, such as
// revoked credentials. A poller that sees one must stop.
var ErrPermanent = errors.New("permanent store error")

const DefaultFetchLimit = 50

// Store is the metrics record backend. Records are append-only; cleanup
// is the backend's job.
type Store struct {
	db         db.Querier
	fetchLimit int
}

func NewStore(q db.Querier, fetchLimit int) *Store {
	if fetchLimit <= 0 {
		fetchLimit = DefaultFetchLimit
	}
	return &Store{db: q, fetchLimit: fetchLimit}
}

func (s *Store) Push(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO metrics_records (id, session_id, user_id, heart_rate, energy_kcal, distance_m, elapsed_sec, is_active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, rec.ID, rec.SessionID, rec.UserID, rec.HeartRate, rec.EnergyKcal, rec.DistanceM, rec.ElapsedSec, rec.Active, rec.CreatedAt)
	if err != nil {
		return Record{}, classify(err)
	}
	return rec, nil
}

// Fetch returns the most recent records for a session, newest first,
// capped at the configured fetch limit.
func (s *Store) Fetch(ctx context.Context, sessionID string) ([]Record, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, session_id, user_id, heart_rate, energy_kcal, distance_m, elapsed_sec, is_active, created_at
		FROM metrics_records
		WHERE session_id=$1
		ORDER BY created_at DESC
		LIMIT $2
	`, sessionID, s.fetchLimit)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.SessionID, &r.UserID, &r.HeartRate, &r.EnergyKcal, &r.DistanceM, &r.ElapsedSec, &r.Active, &r.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// classify wraps authorization and missing-database errors as ErrPermanent.
// Everything else is transient and left to the caller's retry policy.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "28000", "28P01", "42501", "3D000":
			return fmt.Errorf("%w: %s", ErrPermanent, pgErr.Message)
		}
	}
	return err
}
