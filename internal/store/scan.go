package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Scan is one recognized code in the scan history.
type Scan struct {
	ID        string
	Symbology string
	Payload   string
	Camera    string
	FrameSeq  uint64
	ScannedAt time.Time
}

// ScanFilter narrows a List query.
type ScanFilter struct {
	Symbology string
	Limit     int
}

// ScanRepository provides access to the scan history.
type ScanRepository struct {
	db *sql.DB
}

// Scans returns the scan repository for this store.
func (s *Store) Scans() *ScanRepository {
	return &ScanRepository{db: s.db}
}

// Create inserts a scan. An empty ID is replaced by a new UUID and a zero
// ScannedAt by the current time.
func (r *ScanRepository) Create(sc *Scan) error {
	if sc.ID == "" {
		sc.ID = uuid.New().String()
	}
	if sc.ScannedAt.IsZero() {
		sc.ScannedAt = time.Now()
	}
	if sc.Camera == "" {
		sc.Camera = "back"
	}

	_, err := r.db.Exec(
		`INSERT INTO scans (id, symbology, payload, camera, frame_seq, scanned_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sc.ID, sc.Symbology, sc.Payload, sc.Camera, int64(sc.FrameSeq), sc.ScannedAt,
	)
	return err
}

// GetByID retrieves a scan by its ID.
func (r *ScanRepository) GetByID(id string) (*Scan, error) {
	sc := &Scan{}
	var seq int64

	err := r.db.QueryRow(
		`SELECT id, symbology, payload, camera, frame_seq, scanned_at
		 FROM scans WHERE id = ?`,
		id,
	).Scan(&sc.ID, &sc.Symbology, &sc.Payload, &sc.Camera, &seq, &sc.ScannedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	sc.FrameSeq = uint64(seq)
	return sc, nil
}

// List returns scans, newest first.
func (r *ScanRepository) List(f ScanFilter) ([]*Scan, error) {
	query := `SELECT id, symbology, payload, camera, frame_seq, scanned_at FROM scans`
	var args []any
	if f.Symbology != "" {
		query += ` WHERE symbology = ?`
		args = append(args, f.Symbology)
	}
	query += ` ORDER BY scanned_at DESC, rowid DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scans []*Scan
	for rows.Next() {
		sc := &Scan{}
		var seq int64
		if err := rows.Scan(&sc.ID, &sc.Symbology, &sc.Payload, &sc.Camera, &seq, &sc.ScannedAt); err != nil {
			return nil, err
		}
		sc.FrameSeq = uint64(seq)
		scans = append(scans, sc)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return scans, nil
}

// Count returns the number of stored scans.
func (r *ScanRepository) Count() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM scans`).Scan(&n)
	return n, err
}

// Delete removes a scan by its ID.
func (r *ScanRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM scans WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// Clear removes every scan and returns how many were deleted.
func (r *ScanRepository) Clear() (int64, error) {
	result, err := r.db.Exec(`DELETE FROM scans`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
