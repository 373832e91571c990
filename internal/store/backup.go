package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/chorewheel/internal/model"
)

type BackupStore struct {
	db *sql.DB
}

func NewBackupStore(db *sql.DB) *BackupStore {
	return &BackupStore{db: db}
}

const backupCols = `id, filename, object_key, size_bytes, status, error_message, started_at, completed_at, created_at, updated_at`

func scanBackup(scanner interface{ Scan(...any) error }) (*model.Backup, error) {
	var b model.Backup
	var errMsg sql.NullString
	var startedAt, completedAt sql.NullTime
	err := scanner.Scan(&b.ID, &b.Filename, &b.ObjectKey, &b.SizeBytes, &b.Status, &errMsg,
		&startedAt, &completedAt, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	b.ErrorMessage = errMsg.String
	if startedAt.Valid {
		b.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		b.CompletedAt = &completedAt.Time
	}
	return &b, nil
}

func (s *BackupStore) Create(ctx context.Context, filename, objectKey string) (*model.Backup, error) {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO backups (filename, object_key, status, started_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		filename, objectKey, model.BackupStatusPending, now, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create backup: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return &model.Backup{
		ID:        id,
		Filename:  filename,
		ObjectKey: objectKey,
		Status:    model.BackupStatusPending,
		StartedAt: &now,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *BackupStore) GetByID(ctx context.Context, id int64) (*model.Backup, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+backupCols+` FROM backups WHERE id = ?`, id)
	b, err := scanBackup(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get backup %d: %w", id, err)
	}
	return b, nil
}

// List returns the most recent backups first.
func (s *BackupStore) List(ctx context.Context, limit int) ([]model.Backup, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+backupCols+` FROM backups ORDER BY created_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	defer rows.Close()

	var backups []model.Backup
	for rows.Next() {
		b, err := scanBackup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backup: %w", err)
		}
		backups = append(backups, *b)
	}
	return backups, rows.Err()
}

func (s *BackupStore) UpdateStatus(ctx context.Context, id int64, status model.BackupStatus, errorMsg string) error {
	var errPtr *string
	if errorMsg != "" {
		errPtr = &errorMsg
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE backups SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		status, errPtr, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update backup status: %w", err)
	}
	return nil
}

func (s *BackupStore) UpdateCompleted(ctx context.Context, id, sizeBytes int64) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`UPDATE backups SET status = ?, size_bytes = ?, completed_at = ?, updated_at = ? WHERE id = ?`,
		model.BackupStatusCompleted, sizeBytes, now, now, id,
	)
	if err != nil {
		return fmt.Errorf("update backup completed: %w", err)
	}
	return nil
}

// DeleteOlderThan deletes backups created before the given time and returns
// their object keys.
func (s *BackupStore) DeleteOlderThan(ctx context.Context, before time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT object_key FROM backups WHERE created_at < ?`, before)
	if err != nil {
		return nil, fmt.Errorf("select old backups: %w", err)
	}

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan object key: %w", err)
		}
		keys = append(keys, key)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM backups WHERE created_at < ?`, before); err != nil {
		return nil, fmt.Errorf("delete old backups: %w", err)
	}
	return keys, nil
}

func (s *BackupStore) LatestCompleted(ctx context.Context) (*model.Backup, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+backupCols+` FROM backups WHERE status = ? ORDER BY completed_at DESC LIMIT 1`,
		model.BackupStatusCompleted,
	)
	b, err := scanBackup(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest completed backup: %w", err)
	}
	return b, nil
}

func (s *BackupStore) TotalSize(ctx context.Context) (int64, error) {
	var total sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT SUM(size_bytes) FROM backups WHERE status = ?`, model.BackupStatusCompleted,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("total backup size: %w", err)
	}
	return total.Int64, nil
}
