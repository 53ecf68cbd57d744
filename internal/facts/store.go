// Package facts provides durable key/value memory per user.
package facts

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Fact is one durable piece of learned information. A user holds at most
// one value per key; later writes overwrite earlier ones.
type Fact struct {
	ID        uuid.UUID `json:"id"`
	UserID    string    `json:"user_id"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store manages fact persistence.
type Store struct {
	db *sql.DB
}

// NewStore creates a fact store using the given database path.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// NewStoreWithDB creates a fact store using an existing database connection.
func NewStoreWithDB(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS facts (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			key        TEXT NOT NULL,
			value      TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			UNIQUE(user_id, key)
		);

		CREATE INDEX IF NOT EXISTS idx_facts_user ON facts(user_id);
	`)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Set creates or updates a fact. Last write wins.
func (s *Store) Set(userID, key, value string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	id, _ := uuid.NewV7()

	_, err := s.db.Exec(`
		INSERT INTO facts (id, user_id, key, value, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, id.String(), userID, key, value, now, now)
	if err != nil {
		return fmt.Errorf("set fact: %w", err)
	}
	return nil
}

// Get returns all facts for a user as a flat key → value map.
func (s *Store) Get(userID string) (map[string]string, error) {
	rows, err := s.db.Query(`
		SELECT key, value FROM facts WHERE user_id = ? ORDER BY key
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query facts: %w", err)
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan fact: %w", err)
		}
		result[key] = value
	}
	return result, rows.Err()
}

// List returns all facts for a user with full metadata, ordered by key.
func (s *Store) List(userID string) ([]*Fact, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, key, value, created_at, updated_at
		FROM facts WHERE user_id = ? ORDER BY key
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query facts: %w", err)
	}
	defer rows.Close()

	var result []*Fact
	for rows.Next() {
		var f Fact
		var idStr, createdStr, updatedStr string
		if err := rows.Scan(&idStr, &f.UserID, &f.Key, &f.Value, &createdStr, &updatedStr); err != nil {
			return nil, fmt.Errorf("scan fact: %w", err)
		}
		f.ID, _ = uuid.Parse(idStr)
		f.CreatedAt, _ = time.Parse(time.RFC3339, createdStr)
		f.UpdatedAt, _ = time.Parse(time.RFC3339, updatedStr)
		result = append(result, &f)
	}
	return result, rows.Err()
}

// Delete removes a fact.
func (s *Store) Delete(userID, key string) error {
	result, err := s.db.Exec(`DELETE FROM facts WHERE user_id = ? AND key = ?`, userID, key)
	if err != nil {
		return fmt.Errorf("delete fact: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("fact not found: %s", key)
	}
	return nil
}
