package audit

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// DecisionRecord is one row in the local decision log. The log is an
// operator-facing audit trail only; the tier written to Procore is the
// authoritative copy.
type DecisionRecord struct {
	ID              string `json:"id"`
	EventID         string `json:"event_id"`
	CompanyID       int64  `json:"company_id"`
	ProjectID       int64  `json:"project_id"`
	PurchaseOrderID int64  `json:"purchase_order_id"`
	Tier            string `json:"tier"`
	Reason          string `json:"reason"`
	GrandTotal      string `json:"grand_total"`
	WriteError      string `json:"write_error,omitempty"`
	CreatedAt       int64  `json:"created_at"`
}

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the sqlite decision log at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	store := NewStore(db)
	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewStore wraps an existing database handle, used by tests.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) init() error {
	query := `
	CREATE TABLE IF NOT EXISTS decisions (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
		company_id INTEGER NOT NULL,
		project_id INTEGER NOT NULL,
		purchase_order_id INTEGER NOT NULL,
		tier TEXT NOT NULL,
		reason TEXT NOT NULL,
		grand_total TEXT,
		write_error TEXT,
		created_at INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(query)
	return err
}

// Record inserts a decision. IDs and timestamps are assigned here.
func (s *Store) Record(rec *DecisionRecord) error {
	rec.ID = "dec_" + uuid.New().String()
	rec.CreatedAt = time.Now().Unix()

	query := `
		INSERT INTO decisions (id, event_id, company_id, project_id, purchase_order_id, tier, reason, grand_total, write_error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query, rec.ID, rec.EventID, rec.CompanyID, rec.ProjectID, rec.PurchaseOrderID,
		rec.Tier, rec.Reason, rec.GrandTotal, rec.WriteError, rec.CreatedAt)
	return err
}

// Recent returns the newest decisions, most recent first.
func (s *Store) Recent(limit int) ([]*DecisionRecord, error) {
	query := `
		SELECT id, event_id, company_id, project_id, purchase_order_id, tier, reason, grand_total, write_error, created_at
		FROM decisions ORDER BY created_at DESC, id DESC LIMIT ?
	`
	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*DecisionRecord
	for rows.Next() {
		var rec DecisionRecord
		var grandTotal, writeError sql.NullString

		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.CompanyID, &rec.ProjectID, &rec.PurchaseOrderID,
			&rec.Tier, &rec.Reason, &grandTotal, &writeError, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if grandTotal.Valid {
			rec.GrandTotal = grandTotal.String
		}
		if writeError.Valid {
			rec.WriteError = writeError.String
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

func (s *Store) Ping() error {
	return s.db.Ping()
}

func (s *Store) Close() error {
	return s.db.Close()
}
