package delivery

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/courierhq/dispatchd/core/model"
)

// SQLiteStore persists deliveries to a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS deliveries (
        id TEXT PRIMARY KEY,
        client_id TEXT,
        driver_id TEXT,
        accepted INTEGER NOT NULL DEFAULT 0,
        facts TEXT,
        created_at INTEGER,
        updated_at INTEGER
    );`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) CreateDelivery(ctx context.Context, facts model.OrderFacts) (string, error) {
	b, err := json.Marshal(facts)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	now := time.Now().Unix()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO deliveries (id, client_id, facts, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, facts.ClientID, string(b), now, now)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *SQLiteStore) AcceptDelivery(ctx context.Context, deliveryID, driverID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE deliveries SET driver_id = ?, accepted = 1, updated_at = ? WHERE id = ?`,
		driverID, time.Now().Unix(), deliveryID)
	if err != nil {
		return err
	}
	return requireRow(res, deliveryID)
}

func (s *SQLiteStore) UpdateDelivery(ctx context.Context, deliveryID string, facts model.OrderFacts) error {
	b, err := json.Marshal(facts)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE deliveries SET client_id = ?, facts = ?, updated_at = ? WHERE id = ?`,
		facts.ClientID, string(b), time.Now().Unix(), deliveryID)
	if err != nil {
		return err
	}
	return requireRow(res, deliveryID)
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func requireRow(res sql.Result, deliveryID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("delivery %s not found", deliveryID)
	}
	return nil
}
