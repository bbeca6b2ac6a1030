package analytics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/edgard/cycleparksbot/internal/database"
)

// fakeStore captures durable writes and can simulate write failures.
type fakeStore struct {
	mu       sync.Mutex
	requests []database.RequestLog
	failures []database.SendFailure
	errs     []database.ErrorRecord
	failNext bool
}

func (f *fakeStore) Ping(context.Context) error { return nil }

func (f *fakeStore) InsertRequest(_ context.Context, req *database.RequestLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return errors.New("durable write failed")
	}
	f.requests = append(f.requests, *req)
	return nil
}

func (f *fakeStore) InsertSendFailures(_ context.Context, failures []database.SendFailure) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return errors.New("durable write failed")
	}
	f.failures = append(f.failures, failures...)
	return nil
}

func (f *fakeStore) InsertErrors(_ context.Context, records []database.ErrorRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs = append(f.errs, records...)
	return nil
}

func newTestRecorder(t *testing.T) (*Recorder, *miniredis.Miniredis, *fakeStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := &fakeStore{}
	rec := NewRecorder(client, store, Options{}, nil)
	rec.now = func() time.Time {
		return time.Date(2025, 6, 4, 17, 30, 15, 0, time.UTC)
	}
	return rec, mr, store
}

func TestRecordCommand(t *testing.T) {
	t.Parallel()

	rec, mr, _ := newTestRecorder(t)
	ctx := context.Background()

	if err := rec.RecordCommand(ctx, 42, "show_nearest_cycleparks"); err != nil {
		t.Fatalf("RecordCommand: %v", err)
	}
	if err := rec.RecordCommand(ctx, 43, "show_nearest_cycleparks"); err != nil {
		t.Fatalf("RecordCommand: %v", err)
	}

	count, err := mr.Get("command_usage:show_nearest_cycleparks")
	if err != nil {
		t.Fatalf("counter key missing: %v", err)
	}
	if count != "2" {
		t.Errorf("command counter = %s, want 2", count)
	}

	members, err := mr.SMembers("unique_users:2025-06-04")
	if err != nil {
		t.Fatalf("unique users key missing: %v", err)
	}
	if len(members) != 2 {
		t.Errorf("unique users = %v, want 2 members", members)
	}

	entries, err := mr.List("request_log_queue")
	if err != nil {
		t.Fatalf("request log queue missing: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("request log entries = %d, want 2", len(entries))
	}
	if entries[0] != "2025-06-04 17:30:15|42|show_nearest_cycleparks" {
		t.Errorf("unexpected entry format: %q", entries[0])
	}
}

func TestRecordSendFailureBucketsAccumulate(t *testing.T) {
	t.Parallel()

	rec, mr, _ := newTestRecorder(t)
	ctx := context.Background()

	rec.RecordSendFailure(ctx, "text", "RateLimitExceeded")
	rec.RecordSendFailure(ctx, "text", "RateLimitExceeded")

	key := "failures|2025-06-04-17:30|text|RateLimitExceeded"
	count, err := mr.Get(key)
	if err != nil {
		t.Fatalf("failure bucket missing: %v", err)
	}
	if count != "2" {
		t.Errorf("bucket count = %s, want 2", count)
	}
	if ttl := mr.TTL(key); ttl <= 0 || ttl > 24*time.Hour {
		t.Errorf("bucket TTL = %v, want within (0, 24h]", ttl)
	}
}

func TestRecordSendFailureTruncatesError(t *testing.T) {
	t.Parallel()

	rec, mr, _ := newTestRecorder(t)

	long := ""
	for i := 0; i < 20; i++ {
		long += "abcdefghij"
	}
	rec.RecordSendFailure(context.Background(), "media_group", long)

	key := "failures|2025-06-04-17:30|media_group|" + long[:50]
	if _, err := mr.Get(key); err != nil {
		t.Fatalf("expected truncated bucket key, got error: %v", err)
	}
}

func TestRecordSendFailureTruncatesOnRuneBoundary(t *testing.T) {
	t.Parallel()

	rec, mr, _ := newTestRecorder(t)

	// 60 two-byte runes: a byte slice at 50 would split one mid-sequence.
	long := strings.Repeat("é", 60)
	rec.RecordSendFailure(context.Background(), "text", long)

	keys := mr.Keys()
	if len(keys) != 1 {
		t.Fatalf("expected 1 failure bucket, got %v", keys)
	}
	if !utf8.ValidString(keys[0]) {
		t.Errorf("bucket key is not valid UTF-8: %q", keys[0])
	}
	wantSuffix := strings.Repeat("é", 50)
	if !strings.HasSuffix(keys[0], "|"+wantSuffix) {
		t.Errorf("bucket key = %q, want 50-rune error suffix", keys[0])
	}
}

func TestFlushFailuresAndErrors(t *testing.T) {
	t.Parallel()

	rec, mr, store := newTestRecorder(t)
	ctx := context.Background()

	// Two same-bucket failures collapse into one row with count 2.
	rec.RecordSendFailure(ctx, "text", "RateLimitExceeded")
	rec.RecordSendFailure(ctx, "text", "RateLimitExceeded")
	rec.RecordSendFailure(ctx, "location", "chat not found")

	rec.RecordError(database.ErrorRecord{
		Timestamp:     time.Now().UTC(),
		ExceptionType: "panic",
		ErrorMessage:  "boom",
		UpdateStr:     "{}",
	})

	if err := rec.FlushFailuresAndErrors(ctx); err != nil {
		t.Fatalf("FlushFailuresAndErrors: %v", err)
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	if len(store.failures) != 2 {
		t.Fatalf("persisted failure rows = %d, want 2", len(store.failures))
	}
	byKind := map[string]database.SendFailure{}
	for _, f := range store.failures {
		byKind[f.MessageType] = f
	}
	if byKind["text"].Count != 2 {
		t.Errorf("text bucket count = %d, want 2", byKind["text"].Count)
	}
	if byKind["location"].Count != 1 {
		t.Errorf("location bucket count = %d, want 1", byKind["location"].Count)
	}
	want := time.Date(2025, 6, 4, 17, 30, 0, 0, time.UTC)
	if !byKind["text"].Timestamp.Equal(want) {
		t.Errorf("bucket timestamp = %v, want %v", byKind["text"].Timestamp, want)
	}

	if len(store.errs) != 1 || store.errs[0].ExceptionType != "panic" {
		t.Errorf("persisted error records = %+v, want one panic record", store.errs)
	}

	// Flushed buckets are gone from Redis.
	if keys := mr.Keys(); len(keys) != 0 {
		t.Errorf("expected no remaining keys after flush, got %v", keys)
	}

	// A second sweep with nothing pending writes nothing.
	if err := rec.FlushFailuresAndErrors(ctx); err != nil {
		t.Fatalf("empty sweep: %v", err)
	}
	if len(store.failures) != 2 || len(store.errs) != 1 {
		t.Errorf("empty sweep wrote rows: failures=%d errs=%d", len(store.failures), len(store.errs))
	}
}

func TestFlushRequestLogDrainsQueue(t *testing.T) {
	t.Parallel()

	rec, _, store := newTestRecorder(t)
	rec.opts.RequestLogInterval = 5 * time.Millisecond

	if err := rec.RecordCommand(context.Background(), 7, "start"); err != nil {
		t.Fatalf("RecordCommand: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rec.FlushRequestLog(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		store.mu.Lock()
		n := len(store.requests)
		store.mu.Unlock()
		if n == 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("FlushRequestLog returned %v, want context.Canceled", err)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.requests) != 1 {
		t.Fatalf("persisted requests = %d, want 1", len(store.requests))
	}
	req := store.requests[0]
	if req.UserID != 7 || req.Command != "start" {
		t.Errorf("persisted request = %+v", req)
	}
	if req.Timestamp.Format("2006-01-02 15:04:05") != "2025-06-04 17:30:15" {
		t.Errorf("persisted timestamp = %v", req.Timestamp)
	}
}

func TestRecordErrorNeverBlocks(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	rec := NewRecorder(client, &fakeStore{}, Options{ErrorQueueSize: 2}, nil)

	// Overfilling the queue drops records instead of blocking.
	for i := 0; i < 10; i++ {
		rec.RecordError(database.ErrorRecord{ExceptionType: "panic"})
	}
}

func TestParseRequestEntryMalformed(t *testing.T) {
	t.Parallel()

	tests := []string{
		"",
		"no separators here",
		"2025-06-04 17:30:15|not-a-number|start",
		"bad-timestamp|42|start",
	}
	for _, entry := range tests {
		if _, err := parseRequestEntry(entry); err == nil {
			t.Errorf("parseRequestEntry(%q): expected error", entry)
		}
	}
}
