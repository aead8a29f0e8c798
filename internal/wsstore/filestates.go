package wsstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/workspace-engine/core/internal/id"
)

// FileState is the raw row backing one file node's upload/download
// sub-machines (§4.6). The filetransfer package interprets the status
// strings and enforces transition legality; wsstore only persists them.
type FileState struct {
	NodeID              id.ID
	DownloadStatus      string
	DownloadProgress    int
	DownloadRetries     int
	DownloadStartedAt   string
	DownloadCompletedAt string
	UploadStatus        string
	UploadProgress      int
	UploadRetries       int
	UploadStartedAt     string
	UploadCompletedAt   string
}

// EnsureFileState inserts a default ("none"/"none") row for nodeID if one
// does not already exist. Called when a file node is created.
func (s *Store) EnsureFileState(ctx context.Context, nodeID id.ID) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO file_states(node_id) VALUES (?)
		ON CONFLICT(node_id) DO NOTHING`, nodeID.String())
	if err != nil {
		return fmt.Errorf("wsstore: ensure file state: %w", err)
	}

	return nil
}

// FetchFileState returns nodeID's current file state, or ErrNotFound.
func (s *Store) FetchFileState(ctx context.Context, nodeID id.ID) (FileState, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT node_id, download_status, download_progress, download_retries,
		       COALESCE(download_started_at, ''), COALESCE(download_completed_at, ''),
		       upload_status, upload_progress, upload_retries,
		       COALESCE(upload_started_at, ''), COALESCE(upload_completed_at, '')
		FROM file_states WHERE node_id = ?`, nodeID.String())

	var fs FileState

	err := row.Scan(&fs.NodeID, &fs.DownloadStatus, &fs.DownloadProgress, &fs.DownloadRetries,
		&fs.DownloadStartedAt, &fs.DownloadCompletedAt,
		&fs.UploadStatus, &fs.UploadProgress, &fs.UploadRetries,
		&fs.UploadStartedAt, &fs.UploadCompletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return FileState{}, ErrNotFound
	}
	if err != nil {
		return FileState{}, fmt.Errorf("wsstore: scan file state: %w", err)
	}

	return fs, nil
}

// UpdateDownloadState persists a new download sub-machine state.
func (s *Store) UpdateDownloadState(ctx context.Context, nodeID id.ID, status string, progress, retries int, startedAt, completedAt string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE file_states
		SET download_status = ?, download_progress = ?, download_retries = ?,
		    download_started_at = NULLIF(?, ''), download_completed_at = NULLIF(?, '')
		WHERE node_id = ?`,
		status, progress, retries, startedAt, completedAt, nodeID.String())
	if err != nil {
		return fmt.Errorf("wsstore: update download state: %w", err)
	}

	return requireRowsAffected(res, ErrNotFound)
}

// UpdateUploadState persists a new upload sub-machine state.
func (s *Store) UpdateUploadState(ctx context.Context, nodeID id.ID, status string, progress, retries int, startedAt, completedAt string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE file_states
		SET upload_status = ?, upload_progress = ?, upload_retries = ?,
		    upload_started_at = NULLIF(?, ''), upload_completed_at = NULLIF(?, '')
		WHERE node_id = ?`,
		status, progress, retries, startedAt, completedAt, nodeID.String())
	if err != nil {
		return fmt.Errorf("wsstore: update upload state: %w", err)
	}

	return requireRowsAffected(res, ErrNotFound)
}

func requireRowsAffected(res sql.Result, notFoundErr error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("wsstore: rows affected: %w", err)
	}

	if n == 0 {
		return notFoundErr
	}

	return nil
}
