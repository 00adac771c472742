package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// Pose names the hand shape a calibration sample was recorded in.
type Pose string

const (
	PoseClosed Pose = "closed"
	PoseOpen   Pose = "open"
)

// SampleRepository stores the raw samples a calibration was trained from.
type SampleRepository struct {
	db *sql.DB
}

// Samples returns the sample repository for this store.
func (s *Store) Samples() *SampleRepository {
	return &SampleRepository{db: s.db}
}

// Replace stores samples for one pose of a calibration, dropping any stored
// before.
func (r *SampleRepository) Replace(calibrationID string, pose Pose, samples []json.RawMessage) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`DELETE FROM calibration_samples WHERE calibration_id = ? AND pose = ?`,
		calibrationID, string(pose),
	); err != nil {
		return err
	}

	for i, s := range samples {
		if _, err := tx.Exec(
			`INSERT INTO calibration_samples (calibration_id, pose, sample_index, data) VALUES (?, ?, ?, ?)`,
			calibrationID, string(pose), i, string(s),
		); err != nil {
			return fmt.Errorf("insert sample %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// List returns the samples of one pose in recording order.
func (r *SampleRepository) List(calibrationID string, pose Pose) ([]json.RawMessage, error) {
	rows, err := r.db.Query(
		`SELECT data FROM calibration_samples WHERE calibration_id = ? AND pose = ? ORDER BY sample_index`,
		calibrationID, string(pose),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []json.RawMessage
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		out = append(out, json.RawMessage(data))
	}
	return out, rows.Err()
}

// Count returns the number of samples stored for a calibration.
func (r *SampleRepository) Count(calibrationID string) (int, error) {
	var n int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM calibration_samples WHERE calibration_id = ?`, calibrationID,
	).Scan(&n)
	return n, err
}
