package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dukerupert/chorewheel/internal/database"
	"github.com/dukerupert/chorewheel/internal/model"
	"github.com/dukerupert/chorewheel/internal/store"
)

// mockS3Client implements s3Client for testing.
type mockS3Client struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	data, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[*input.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*input.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *mockS3Client) DeleteObject(_ context.Context, input *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *input.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (m *mockS3Client) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

var testS3 = S3Config{Bucket: "test", AccessKey: "key", SecretKey: "secret"}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupManager(t *testing.T, cb StatusCallback) (*Manager, *mockS3Client, *sql.DB) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	m := NewManager(Config{S3: testS3, Passphrase: "hunter2"}, db, store.NewBackupStore(db), cb, testLogger())
	mock := newMockS3()
	m.client = mock
	return m, mock, db
}

func TestManagerState(t *testing.T) {
	m := NewManager(Config{}, nil, nil, nil, testLogger())
	if m.Status().State != StateDisabled || m.Enabled() {
		t.Errorf("state = %q, want %q", m.Status().State, StateDisabled)
	}

	// Credentials alone are not enough without a passphrase.
	m = NewManager(Config{S3: testS3}, nil, nil, nil, testLogger())
	if m.Enabled() {
		t.Error("manager without passphrase should be disabled")
	}

	m = NewManager(Config{S3: testS3, Passphrase: "p"}, nil, nil, nil, testLogger())
	if m.Status().State != StateIdle || !m.Enabled() {
		t.Errorf("state = %q, want %q", m.Status().State, StateIdle)
	}
	if m.cfg.RetentionDays != 30 || m.cfg.S3.Prefix != "chorewheel" {
		t.Errorf("defaults = %d days, prefix %q", m.cfg.RetentionDays, m.cfg.S3.Prefix)
	}
}

func TestRunNowAndRestore(t *testing.T) {
	var mu sync.Mutex
	var states []State
	m, mock, db := setupManager(t, func(s Status) {
		mu.Lock()
		states = append(states, s.State)
		mu.Unlock()
	})
	ctx := context.Background()

	if _, err := store.NewMemberStore(db).Create(ctx, "Alice", "#FF0000"); err != nil {
		t.Fatalf("create member: %v", err)
	}

	b, err := m.RunNow(ctx)
	if err != nil {
		t.Fatalf("run backup: %v", err)
	}
	if b.Status != model.BackupStatusCompleted {
		t.Errorf("status = %q, want completed", b.Status)
	}
	if !strings.HasPrefix(b.ObjectKey, "chorewheel/backup-") {
		t.Errorf("object key = %q", b.ObjectKey)
	}
	if mock.count() != 1 {
		t.Fatalf("objects = %d, want 1", mock.count())
	}
	if b.SizeBytes != int64(len(mock.objects[b.ObjectKey])) {
		t.Errorf("size = %d, uploaded %d", b.SizeBytes, len(mock.objects[b.ObjectKey]))
	}

	mu.Lock()
	if len(states) != 2 || states[0] != StateRunning || states[1] != StateIdle {
		t.Errorf("states = %v, want [running idle]", states)
	}
	mu.Unlock()
	if m.Status().LastBackup == nil {
		t.Error("expected last backup time")
	}

	dst := filepath.Join(t.TempDir(), "restored.db")
	if err := m.Restore(ctx, b.ID, dst); err != nil {
		t.Fatalf("restore: %v", err)
	}

	restored, err := sql.Open("sqlite", dst)
	if err != nil {
		t.Fatalf("open restored: %v", err)
	}
	defer restored.Close()
	var name string
	if err := restored.QueryRow(`SELECT name FROM members`).Scan(&name); err != nil {
		t.Fatalf("query restored: %v", err)
	}
	if name != "Alice" {
		t.Errorf("restored member = %q, want Alice", name)
	}
}

func TestRunNowUploadFailure(t *testing.T) {
	m, mock, _ := setupManager(t, nil)
	mock.putErr = errors.New("connection refused")
	ctx := context.Background()

	if _, err := m.RunNow(ctx); err == nil {
		t.Fatal("expected error")
	}
	if m.Status().State != StateError {
		t.Errorf("state = %q, want %q", m.Status().State, StateError)
	}

	list, err := m.List(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Status != model.BackupStatusFailed {
		t.Fatalf("list = %+v, want one failed backup", list)
	}
	if !strings.Contains(list[0].ErrorMessage, "connection refused") {
		t.Errorf("error message = %q", list[0].ErrorMessage)
	}

	// A failed backup cannot be restored.
	if err := m.Restore(ctx, list[0].ID, filepath.Join(t.TempDir(), "x.db")); !errors.Is(err, ErrNotFound) {
		t.Errorf("restore err = %v, want ErrNotFound", err)
	}
}

func TestRestoreWrongPassphrase(t *testing.T) {
	m, _, _ := setupManager(t, nil)
	ctx := context.Background()

	b, err := m.RunNow(ctx)
	if err != nil {
		t.Fatalf("run backup: %v", err)
	}

	m.cfg.Passphrase = "not-it"
	err = m.Restore(ctx, b.ID, filepath.Join(t.TempDir(), "restored.db"))
	if !errors.Is(err, ErrBadPassphrase) {
		t.Errorf("err = %v, want ErrBadPassphrase", err)
	}
}

func TestCleanup(t *testing.T) {
	m, mock, _ := setupManager(t, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := m.RunNow(ctx); err != nil {
			t.Fatalf("run backup %d: %v", i, err)
		}
	}

	n, err := m.Cleanup(ctx)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if n != 0 || mock.count() != 2 {
		t.Errorf("fresh backups removed: n=%d objects=%d", n, mock.count())
	}

	m.now = func() time.Time { return time.Now().AddDate(0, 0, 31) }
	n, err = m.Cleanup(ctx)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if n != 2 || mock.count() != 0 {
		t.Errorf("expired backups kept: n=%d objects=%d", n, mock.count())
	}
}

func TestDisabledManager(t *testing.T) {
	m := NewManager(Config{}, nil, nil, nil, testLogger())
	ctx := context.Background()

	if _, err := m.RunNow(ctx); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("run err = %v, want ErrNotConfigured", err)
	}
	if err := m.Restore(ctx, 1, "x.db"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("restore err = %v, want ErrNotConfigured", err)
	}
	if n, err := m.Cleanup(ctx); n != 0 || err != nil {
		t.Errorf("cleanup = %d, %v", n, err)
	}

	if err := m.Start(ctx); err != nil {
		t.Errorf("start: %v", err)
	}
	m.Stop()
}

func TestStartStop(t *testing.T) {
	m := NewManager(Config{S3: testS3, Passphrase: "p", ScheduleHour: 3}, nil, nil, nil, testLogger())
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	m.Stop()
	m.Stop()
}

func TestStartBadHour(t *testing.T) {
	m := NewManager(Config{S3: testS3, Passphrase: "p", ScheduleHour: 25}, nil, nil, nil, testLogger())
	if err := m.Start(context.Background()); err == nil {
		t.Error("expected schedule error for hour 25")
	}
}
