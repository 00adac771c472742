package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a requested resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a calibration name is already taken.
	ErrConflict = errors.New("already exists")
)

// Calibration is a named openness range.
type Calibration struct {
	ID          string
	Name        string
	ClosedRatio float64
	OpenRatio   float64
	Samples     int
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CalibrationRepository provides CRUD operations for calibrations.
type CalibrationRepository struct {
	db *sql.DB
}

// Calibrations returns the calibration repository for this store.
func (s *Store) Calibrations() *CalibrationRepository {
	return &CalibrationRepository{db: s.db}
}

const calibrationColumns = `id, name, closed_ratio, open_ratio, samples, active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCalibration(row rowScanner) (*Calibration, error) {
	c := &Calibration{}
	var active int
	err := row.Scan(&c.ID, &c.Name, &c.ClosedRatio, &c.OpenRatio, &c.Samples, &active, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Active = active != 0
	return c, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Create inserts c. An empty ID is filled with a new UUID. New calibrations
// are never active; use Activate.
func (r *CalibrationRepository) Create(c *Calibration) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	c.Active = false

	_, err := r.db.Exec(
		`INSERT INTO calibrations (id, name, closed_ratio, open_ratio, samples, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?, ?)`,
		c.ID, c.Name, c.ClosedRatio, c.OpenRatio, c.Samples, c.CreatedAt, c.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("calibration %q: %w", c.Name, ErrConflict)
	}
	return err
}

// GetByID retrieves a calibration by its ID.
func (r *CalibrationRepository) GetByID(id string) (*Calibration, error) {
	c, err := scanCalibration(r.db.QueryRow(
		`SELECT `+calibrationColumns+` FROM calibrations WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

// List returns every calibration, newest first.
func (r *CalibrationRepository) List() ([]*Calibration, error) {
	rows, err := r.db.Query(
		`SELECT ` + calibrationColumns + ` FROM calibrations ORDER BY created_at DESC, name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Calibration
	for rows.Next() {
		c, err := scanCalibration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Update writes the name, range and sample count of an existing calibration.
// The active flag is left alone.
func (r *CalibrationRepository) Update(c *Calibration) error {
	c.UpdatedAt = time.Now()

	result, err := r.db.Exec(
		`UPDATE calibrations SET name = ?, closed_ratio = ?, open_ratio = ?, samples = ?, updated_at = ?
		 WHERE id = ?`,
		c.Name, c.ClosedRatio, c.OpenRatio, c.Samples, c.UpdatedAt, c.ID,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("calibration %q: %w", c.Name, ErrConflict)
	}
	if err != nil {
		return err
	}
	return expectOne(result)
}

// Delete removes a calibration and its samples.
func (r *CalibrationRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM calibrations WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectOne(result)
}

// Activate marks id as the single active calibration.
func (r *CalibrationRepository) Activate(id string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE calibrations SET active = 0 WHERE active = 1`); err != nil {
		return err
	}
	result, err := tx.Exec(`UPDATE calibrations SET active = 1, updated_at = ? WHERE id = ?`, time.Now(), id)
	if err != nil {
		return err
	}
	if err := expectOne(result); err != nil {
		return err
	}
	return tx.Commit()
}

// Active returns the active calibration, or ErrNotFound when none is set.
func (r *CalibrationRepository) Active() (*Calibration, error) {
	c, err := scanCalibration(r.db.QueryRow(
		`SELECT ` + calibrationColumns + ` FROM calibrations WHERE active = 1`,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

func expectOne(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
