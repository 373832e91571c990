// Package backup uploads encrypted snapshots of the chore database to
// S3-compatible storage and restores them.
package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	_ "modernc.org/sqlite"

	"github.com/dukerupert/chorewheel/internal/model"
	"github.com/dukerupert/chorewheel/internal/store"
)

var (
	ErrNotConfigured = errors.New("backup not configured")
	ErrNotFound      = errors.New("backup not found")
)

// s3Client is the subset of the S3 API the manager uses.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	Prefix    string
}

func (c S3Config) complete() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

// Config holds backup manager configuration.
type Config struct {
	S3            S3Config
	Passphrase    string
	ScheduleHour  int // UTC hour of the daily backup
	RetentionDays int
}

type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
	StateError    State = "error"
)

// Status is the manager state reported to listeners.
type Status struct {
	State      State      `json:"state"`
	LastBackup *time.Time `json:"last_backup,omitempty"`
	Error      string     `json:"error,omitempty"`
	InProgress bool       `json:"in_progress"`
}

type StatusCallback func(Status)

// Manager takes, lists, prunes and restores snapshots.
type Manager struct {
	mu       sync.RWMutex
	cfg      Config
	status   Status
	callback StatusCallback
	logger   *slog.Logger

	db     *sql.DB
	store  *store.BackupStore
	client s3Client
	now    func() time.Time

	// runMu keeps scheduled and manual runs from overlapping.
	runMu sync.Mutex

	cron   *cron.Cron
	cancel context.CancelFunc
}

// NewManager creates a manager. It is disabled unless the bucket credentials
// and a passphrase are all set.
func NewManager(cfg Config, db *sql.DB, bs *store.BackupStore, callback StatusCallback, logger *slog.Logger) *Manager {
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}
	if cfg.S3.Prefix == "" {
		cfg.S3.Prefix = "chorewheel"
	}
	m := &Manager{
		cfg:      cfg,
		db:       db,
		store:    bs,
		callback: callback,
		logger:   logger,
		now:      time.Now,
		status:   Status{State: StateDisabled},
	}
	if cfg.S3.complete() && cfg.Passphrase != "" {
		m.client = newS3Client(cfg.S3)
		m.status.State = StateIdle
	}
	return m
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Enabled reports whether backups can run.
func (m *Manager) Enabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client != nil
}

// Start schedules a daily backup and cleanup at the configured UTC hour.
// It is a no-op when the manager is disabled.
func (m *Manager) Start(ctx context.Context) error {
	if !m.Enabled() {
		m.logger.Info("backups disabled")
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	c := cron.New(cron.WithLocation(time.UTC))
	schedule := fmt.Sprintf("0 %d * * *", m.cfg.ScheduleHour)
	if _, err := c.AddFunc(schedule, func() { m.runScheduled(ctx) }); err != nil {
		cancel()
		return fmt.Errorf("schedule backup %q: %w", schedule, err)
	}

	m.mu.Lock()
	m.cron = c
	m.cancel = cancel
	m.mu.Unlock()

	c.Start()
	m.logger.Info("backup schedule started", "hour_utc", m.cfg.ScheduleHour, "retention_days", m.cfg.RetentionDays)
	return nil
}

// Stop cancels any scheduled run and waits for a running one to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	c, cancel := m.cron, m.cancel
	m.cron, m.cancel = nil, nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c != nil {
		<-c.Stop().Done()
	}
}

func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	if s.LastBackup == nil {
		s.LastBackup = m.status.LastBackup
	}
	m.status = s
	m.mu.Unlock()
	if m.callback != nil {
		m.callback(s)
	}
}

func (m *Manager) runScheduled(ctx context.Context) {
	if b, err := m.RunNow(ctx); err != nil {
		m.logger.Error("scheduled backup failed", "error", err)
	} else {
		m.logger.Info("scheduled backup complete", "id", b.ID, "size", b.SizeBytes)
	}
	if _, err := m.Cleanup(ctx); err != nil {
		m.logger.Error("backup cleanup failed", "error", err)
	}
}

// RunNow snapshots the database, encrypts it and uploads it.
func (m *Manager) RunNow(ctx context.Context) (*model.Backup, error) {
	m.mu.RLock()
	client := m.client
	m.mu.RUnlock()
	if client == nil {
		return nil, ErrNotConfigured
	}

	m.runMu.Lock()
	defer m.runMu.Unlock()

	m.setStatus(Status{State: StateRunning, InProgress: true})

	now := m.now().UTC()
	filename := fmt.Sprintf("backup-%s-%s.db.enc", now.Format("2006-01-02T150405Z"), uuid.NewString()[:8])
	key := m.cfg.S3.Prefix + "/" + filename

	record, err := m.store.Create(ctx, filename, key)
	if err != nil {
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return nil, fmt.Errorf("create backup record: %w", err)
	}

	size, err := m.upload(ctx, client, record.ID, key)
	if err != nil {
		if uerr := m.store.UpdateStatus(ctx, record.ID, model.BackupStatusFailed, err.Error()); uerr != nil {
			m.logger.Error("mark backup failed", "id", record.ID, "error", uerr)
		}
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return nil, err
	}

	if err := m.store.UpdateCompleted(ctx, record.ID, size); err != nil {
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return nil, err
	}
	m.setStatus(Status{State: StateIdle, LastBackup: &now})

	return m.store.GetByID(ctx, record.ID)
}

func (m *Manager) upload(ctx context.Context, client s3Client, id int64, key string) (int64, error) {
	if err := m.store.UpdateStatus(ctx, id, model.BackupStatusUploading, ""); err != nil {
		return 0, err
	}

	plaintext, err := m.snapshot(ctx)
	if err != nil {
		return 0, err
	}
	sealed, err := Seal(plaintext, m.cfg.Passphrase)
	if err != nil {
		return 0, fmt.Errorf("encrypt snapshot: %w", err)
	}

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.cfg.S3.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(int64(len(sealed))),
	})
	if err != nil {
		return 0, fmt.Errorf("upload to s3: %w", err)
	}
	return int64(len(sealed)), nil
}

// snapshot writes a consistent copy of the live database with VACUUM INTO
// and returns its bytes.
func (m *Manager) snapshot(ctx context.Context) ([]byte, error) {
	dir, err := os.MkdirTemp("", "chorewheel-backup-")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "snapshot.db")
	if _, err := m.db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return nil, fmt.Errorf("snapshot database: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return data, nil
}

// List returns recent backups, newest first.
func (m *Manager) List(ctx context.Context, limit int) ([]model.Backup, error) {
	if limit <= 0 {
		limit = 20
	}
	return m.store.List(ctx, limit)
}

// Restore downloads a completed backup, decrypts it, checks its integrity and
// writes it to dst. dst must not be open by a running server.
func (m *Manager) Restore(ctx context.Context, id int64, dst string) error {
	m.mu.RLock()
	client := m.client
	m.mu.RUnlock()
	if client == nil {
		return ErrNotConfigured
	}

	record, err := m.store.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get backup: %w", err)
	}
	if record == nil || record.Status != model.BackupStatusCompleted {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.cfg.S3.Bucket),
		Key:    aws.String(record.ObjectKey),
	})
	if err != nil {
		return fmt.Errorf("download from s3: %w", err)
	}
	sealed, err := io.ReadAll(result.Body)
	result.Body.Close()
	if err != nil {
		return fmt.Errorf("read download: %w", err)
	}

	plaintext, err := Open(sealed, m.cfg.Passphrase)
	if err != nil {
		return fmt.Errorf("decrypt backup: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".restore-*.db")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(plaintext); err != nil {
		tmp.Close()
		return fmt.Errorf("write restored db: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close restored db: %w", err)
	}

	if err := checkIntegrity(ctx, tmpPath); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		return fmt.Errorf("replace database: %w", err)
	}
	os.Remove(dst + "-wal")
	os.Remove(dst + "-shm")

	m.logger.Info("backup restored", "id", id, "path", dst)
	return nil
}

func checkIntegrity(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open restored db: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}

// Cleanup deletes backups older than the retention period and returns how
// many were removed. Object deletion failures are logged, not returned.
func (m *Manager) Cleanup(ctx context.Context) (int, error) {
	m.mu.RLock()
	client := m.client
	m.mu.RUnlock()
	if client == nil {
		return 0, nil
	}

	before := m.now().UTC().AddDate(0, 0, -m.cfg.RetentionDays)
	keys, err := m.store.DeleteOlderThan(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("delete old backups: %w", err)
	}

	for _, key := range keys {
		if _, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(m.cfg.S3.Bucket),
			Key:    aws.String(key),
		}); err != nil {
			m.logger.Warn("delete s3 object", "key", key, "error", err)
		}
	}
	return len(keys), nil
}
