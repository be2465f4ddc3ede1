package photostore

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestStore создаёт Store со статическими ключами и MinIO-подобным endpoint.
// Подпись выполняется локально, сеть не нужна.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(context.Background(), Config{
		Bucket:          "tellbill-photos",
		Region:          "us-east-1",
		Endpoint:        "http://minio.local:9000",
		AccessKeyID:     "AKIATEST",
		SecretAccessKey: "secret",
		URLTTL:          15 * time.Minute,
	}, testLogger())
	if err != nil {
		t.Fatalf("New() ошибка: %v", err)
	}
	return s
}

func TestStore_PresignGet(t *testing.T) {
	s := newTestStore(t)

	raw, err := s.PresignGet(context.Background(), "scope-proofs/owner-1/a.jpg")
	if err != nil {
		t.Fatalf("PresignGet() ошибка: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("некорректный URL %q: %v", raw, err)
	}
	if u.Host != "minio.local:9000" {
		t.Errorf("Host = %q, ожидается minio.local:9000", u.Host)
	}
	if u.Path != "/tellbill-photos/scope-proofs/owner-1/a.jpg" {
		t.Errorf("Path = %q, ожидается path-style", u.Path)
	}
	q := u.Query()
	if q.Get("X-Amz-Expires") != "900" {
		t.Errorf("X-Amz-Expires = %q, ожидается 900", q.Get("X-Amz-Expires"))
	}
	if q.Get("X-Amz-Signature") == "" {
		t.Error("подпись отсутствует")
	}
	if !strings.HasPrefix(q.Get("X-Amz-Credential"), "AKIATEST/") {
		t.Errorf("X-Amz-Credential = %q", q.Get("X-Amz-Credential"))
	}
}

func TestStore_PresignPut(t *testing.T) {
	s := newTestStore(t)
	fixed := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	raw, expiresAt, err := s.PresignPut(context.Background(), "scope-proofs/owner-1/b.png", "image/png")
	if err != nil {
		t.Fatalf("PresignPut() ошибка: %v", err)
	}
	if !expiresAt.Equal(fixed.Add(15 * time.Minute)) {
		t.Errorf("expiresAt = %v", expiresAt)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("некорректный URL: %v", err)
	}
	if !strings.Contains(u.Query().Get("X-Amz-SignedHeaders"), "content-type") {
		t.Errorf("Content-Type не входит в подпись: %q", u.Query().Get("X-Amz-SignedHeaders"))
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(context.Background(), Config{URLTTL: time.Minute}, testLogger()); err == nil {
		t.Error("New() без бакета = nil")
	}
	if _, err := New(context.Background(), Config{Bucket: "b"}, testLogger()); err == nil {
		t.Error("New() без TTL = nil")
	}
}
