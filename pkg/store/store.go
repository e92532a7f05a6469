//Package store is the persistence collaborator of the tracking pipeline. It
//owns finalized TrackingResults keyed by video identifier and answers the
//trajectory/verdict queries the API serves. The tracking core never imports
//this package; ownership of a result passes here after a run completes.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/wicketvision/drs-tracker/pkg/track"
)

//ErrNotFound is returned when a video or result does not exist.
var ErrNotFound = errors.New("store: not found")

//Video statuses, in lifecycle order.
const (
	StatusUploaded   = "uploaded"
	StatusProcessing = "processing"
	StatusProcessed  = "processed"
	StatusFailed     = "failed"
)

//Video is one uploaded delivery recording.
type Video struct {
	ID          string     `json:"id"`
	Filename    string     `json:"filename"`
	Path        string     `json:"path"`
	Status      string     `json:"status"`
	UploadedAt  time.Time  `json:"uploaded_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

//Store is the sqlite-backed persistence layer.
type Store struct {
	db *sql.DB
}

//Open opens (and if needed creates) the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS videos (
			id           TEXT PRIMARY KEY,
			filename     TEXT NOT NULL,
			path         TEXT NOT NULL,
			status       TEXT NOT NULL DEFAULT 'uploaded',
			uploaded_at  TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			processed_at TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS trajectories (
			id            TEXT PRIMARY KEY,
			video_id      TEXT NOT NULL UNIQUE,
			points        TEXT NOT NULL,
			verdicts      TEXT,
			summary       TEXT,
			stumps        TEXT,
			confidence    DOUBLE,
			ball_detected BOOLEAN,
			smoothed      BOOLEAN,
			created_at    TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY(video_id) REFERENCES videos(id)
		);
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

//Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

//CreateVideo records a newly uploaded video and returns its generated id.
func (s *Store) CreateVideo(filename, path string) (*Video, error) {
	v := &Video{
		ID:         uuid.NewString(),
		Filename:   filename,
		Path:       path,
		Status:     StatusUploaded,
		UploadedAt: time.Now().UTC(),
	}
	_, err := s.db.Exec(
		`INSERT INTO videos (id, filename, path, status, uploaded_at) VALUES (?, ?, ?, ?, ?)`,
		v.ID, v.Filename, v.Path, v.Status, v.UploadedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("store: could not create video record: %w", err)
	}
	return v, nil
}

//GetVideo fetches one video record by id.
func (s *Store) GetVideo(id string) (*Video, error) {
	row := s.db.QueryRow(
		`SELECT id, filename, path, status, uploaded_at, processed_at FROM videos WHERE id = ?`, id)

	var v Video
	var processedAt sql.NullTime
	if err := row.Scan(&v.ID, &v.Filename, &v.Path, &v.Status, &v.UploadedAt, &processedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: video %s", ErrNotFound, id)
		}
		return nil, err
	}
	if processedAt.Valid {
		v.ProcessedAt = &processedAt.Time
	}
	return &v, nil
}

//ListVideos returns all video records, newest first.
func (s *Store) ListVideos() ([]Video, error) {
	rows, err := s.db.Query(
		`SELECT id, filename, path, status, uploaded_at, processed_at FROM videos ORDER BY uploaded_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var videos []Video
	for rows.Next() {
		var v Video
		var processedAt sql.NullTime
		if err := rows.Scan(&v.ID, &v.Filename, &v.Path, &v.Status, &v.UploadedAt, &processedAt); err != nil {
			return nil, err
		}
		if processedAt.Valid {
			v.ProcessedAt = &processedAt.Time
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

//UpdateVideoStatus advances a video through its lifecycle; reaching the
//processed state stamps the completion time.
func (s *Store) UpdateVideoStatus(id, status string) error {
	var res sql.Result
	var err error
	if status == StatusProcessed {
		res, err = s.db.Exec(`UPDATE videos SET status = ?, processed_at = ? WHERE id = ?`,
			status, time.Now().UTC(), id)
	} else {
		res, err = s.db.Exec(`UPDATE videos SET status = ? WHERE id = ?`, status, id)
	}
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: video %s", ErrNotFound, id)
	}
	return nil
}

//SaveResult takes ownership of a finalized TrackingResult. One result per
//video: saving again replaces the previous run.
func (s *Store) SaveResult(result *track.TrackingResult) error {
	points, err := json.Marshal(result.Trajectory)
	if err != nil {
		return fmt.Errorf("store: could not encode trajectory: %w", err)
	}
	verdicts, err := json.Marshal(result.Verdicts)
	if err != nil {
		return fmt.Errorf("store: could not encode verdicts: %w", err)
	}
	summary, err := json.Marshal(result.Summary)
	if err != nil {
		return fmt.Errorf("store: could not encode summary: %w", err)
	}
	stumps, err := json.Marshal(result.Stumps)
	if err != nil {
		return fmt.Errorf("store: could not encode stumps: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO trajectories (id, video_id, points, verdicts, summary, stumps, confidence, ball_detected, smoothed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(video_id) DO UPDATE SET
			points = excluded.points,
			verdicts = excluded.verdicts,
			summary = excluded.summary,
			stumps = excluded.stumps,
			confidence = excluded.confidence,
			ball_detected = excluded.ball_detected,
			smoothed = excluded.smoothed`,
		uuid.NewString(), result.VideoID, string(points), string(verdicts), string(summary),
		string(stumps), result.Confidence, result.BallDetected, result.Smoothed,
	)
	if err != nil {
		return fmt.Errorf("store: could not save result for video %s: %w", result.VideoID, err)
	}
	return nil
}

//StoredResult is the queryable view of a persisted run.
type StoredResult struct {
	VideoID      string                 `json:"video_id"`
	Trajectory   track.Trajectory       `json:"trajectory"`
	Verdicts     []track.LbwVerdict     `json:"verdicts,omitempty"`
	Summary      *track.DecisionSummary `json:"summary,omitempty"`
	Stumps       *track.StumpsLocation  `json:"stumps,omitempty"`
	Confidence   float64                `json:"confidence"`
	BallDetected bool                   `json:"ball_detected"`
	Smoothed     bool                   `json:"smoothed"`
	CreatedAt    time.Time              `json:"created_at"`
}

//GetResult fetches the persisted run for a video.
func (s *Store) GetResult(videoID string) (*StoredResult, error) {
	row := s.db.QueryRow(`
		SELECT video_id, points, verdicts, summary, stumps, confidence, ball_detected, smoothed, created_at
		FROM trajectories WHERE video_id = ?`, videoID)

	var r StoredResult
	var points, verdicts, summary, stumps string
	if err := row.Scan(&r.VideoID, &points, &verdicts, &summary, &stumps,
		&r.Confidence, &r.BallDetected, &r.Smoothed, &r.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: result for video %s", ErrNotFound, videoID)
		}
		return nil, err
	}

	if err := json.Unmarshal([]byte(points), &r.Trajectory); err != nil {
		return nil, fmt.Errorf("store: corrupt trajectory for video %s: %w", videoID, err)
	}
	if verdicts != "" && verdicts != "null" {
		if err := json.Unmarshal([]byte(verdicts), &r.Verdicts); err != nil {
			return nil, fmt.Errorf("store: corrupt verdicts for video %s: %w", videoID, err)
		}
	}
	if summary != "" && summary != "null" {
		if err := json.Unmarshal([]byte(summary), &r.Summary); err != nil {
			return nil, fmt.Errorf("store: corrupt summary for video %s: %w", videoID, err)
		}
	}
	if stumps != "" && stumps != "null" {
		if err := json.Unmarshal([]byte(stumps), &r.Stumps); err != nil {
			return nil, fmt.Errorf("store: corrupt stumps for video %s: %w", videoID, err)
		}
	}
	return &r, nil
}
