// Package analytics records command usage, delivery failures, and unhandled
// errors. Counters live in Redis for speed; background loops drain them
// into the durable store. Recording never raises to the request path.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/edgard/cycleparksbot/internal/database"
)

const (
	timeFormat   = "2006-01-02 15:04:05"
	dateFormat   = "2006-01-02"
	bucketFormat = "2006-01-02-15:04"

	keyRequestLogQueue = "request_log_queue"
	keyCommandUsage    = "command_usage:"
	keyUniqueUsers     = "unique_users:"
	keyFailurePrefix   = "failures|"

	// maxErrorLen truncates error text in failure-bucket keys so that
	// variable suffixes (IDs, URLs) don't explode the key space.
	maxErrorLen = 50

	asyncRecordTimeout = 10 * time.Second
)

// Options tune the recorder's background behavior. Zero values fall back to
// the defaults below.
type Options struct {
	// RequestLogInterval is how long the request-log drain loop sleeps when
	// the queue is empty.
	RequestLogInterval time.Duration
	// FailureTTL expires failure buckets that are never flushed.
	FailureTTL time.Duration
	// ErrorQueueSize bounds the in-memory unhandled-error queue.
	ErrorQueueSize int
}

const (
	defaultRequestLogInterval = 10 * time.Second
	defaultFailureTTL         = 24 * time.Hour
	defaultErrorQueueSize     = 256
)

// Recorder implements usage and failure accounting.
type Recorder struct {
	rdb    *redis.Client
	store  database.Store
	logger *slog.Logger
	opts   Options
	errs   chan database.ErrorRecord
	now    func() time.Time
}

// NewRecorder creates a Recorder over the given ephemeral and durable stores.
func NewRecorder(rdb *redis.Client, store database.Store, opts Options, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.RequestLogInterval <= 0 {
		opts.RequestLogInterval = defaultRequestLogInterval
	}
	if opts.FailureTTL <= 0 {
		opts.FailureTTL = defaultFailureTTL
	}
	if opts.ErrorQueueSize <= 0 {
		opts.ErrorQueueSize = defaultErrorQueueSize
	}
	return &Recorder{
		rdb:    rdb,
		store:  store,
		logger: logger.With("component", "analytics"),
		opts:   opts,
		errs:   make(chan database.ErrorRecord, opts.ErrorQueueSize),
		now:    time.Now,
	}
}

// RecordCommand increments the command counter, adds the user to today's
// unique-user set, and queues a request-log entry for the durable flush.
func (r *Recorder) RecordCommand(ctx context.Context, userID int64, command string) error {
	now := r.now().UTC()
	entry := fmt.Sprintf("%s|%d|%s", now.Format(timeFormat), userID, command)

	pipe := r.rdb.Pipeline()
	pipe.Incr(ctx, keyCommandUsage+command)
	pipe.SAdd(ctx, keyUniqueUsers+now.Format(dateFormat), userID)
	pipe.RPush(ctx, keyRequestLogQueue, entry)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record command usage: %w", err)
	}
	return nil
}

// RecordCommandAsync runs RecordCommand in the background with its own
// timeout context. The caller never waits and never sees the outcome.
func (r *Recorder) RecordCommandAsync(userID int64, command string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), asyncRecordTimeout)
		defer cancel()
		if err := r.RecordCommand(ctx, userID, command); err != nil {
			r.logger.Error("Failed to record command", "command", command, "user_id", userID, "error", err)
		}
	}()
}

// RecordSendFailure buckets the failure by minute, message kind, and
// truncated error text, and refreshes the bucket's expiry. Truncation
// counts runes, not bytes, so the key stays valid UTF-8.
func (r *Recorder) RecordSendFailure(ctx context.Context, kind, errMsg string) {
	if runes := []rune(errMsg); len(runes) > maxErrorLen {
		errMsg = string(runes[:maxErrorLen])
	}
	bucket := r.now().UTC().Format(bucketFormat)
	key := keyFailurePrefix + bucket + "|" + kind + "|" + errMsg

	pipe := r.rdb.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, r.opts.FailureTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		// Failure accounting must never disturb the dispatcher loop.
		r.logger.ErrorContext(ctx, "Failed to record send failure", "kind", kind, "error", err)
	}
}

// RecordError queues an unhandled-error record for the next durable sweep.
// It never blocks; when the queue is full the record is dropped.
func (r *Recorder) RecordError(rec database.ErrorRecord) {
	select {
	case r.errs <- rec:
	default:
		r.logger.Warn("Error queue full, dropping record", "exception_type", rec.ExceptionType)
	}
}

// FlushRequestLog drains the ephemeral request log into the durable store,
// one entry per iteration, sleeping while the queue is empty. It runs until
// ctx is cancelled. An entry popped before a failed durable write is lost;
// at this scale that is an accepted tradeoff over transactional coupling.
func (r *Recorder) FlushRequestLog(ctx context.Context) error {
	log := r.logger.With("loop", "request_log")
	log.Info("Request log flush loop started", "idle_interval", r.opts.RequestLogInterval)

	for {
		entry, err := r.rdb.LPop(ctx, keyRequestLogQueue).Result()
		switch {
		case errors.Is(err, redis.Nil):
			if sleepErr := sleep(ctx, r.opts.RequestLogInterval); sleepErr != nil {
				return sleepErr
			}
			continue
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.ErrorContext(ctx, "Failed to pop request log entry", "error", err)
			if sleepErr := sleep(ctx, r.opts.RequestLogInterval); sleepErr != nil {
				return sleepErr
			}
			continue
		}

		req, err := parseRequestEntry(entry)
		if err != nil {
			log.WarnContext(ctx, "Discarding malformed request log entry", "entry", entry, "error", err)
			continue
		}
		if err := r.store.InsertRequest(ctx, req); err != nil {
			log.ErrorContext(ctx, "Failed to persist request log entry", "error", err)
		}
	}
}

// FlushFailuresAndErrors performs one sweep: it moves every failure bucket
// from Redis into send_failures and drains the in-memory error queue into
// errors. The scheduler runs it periodically; a failed sweep is logged by
// the task wrapper and retried on the next tick.
func (r *Recorder) FlushFailuresAndErrors(ctx context.Context) error {
	return errors.Join(r.flushFailures(ctx), r.flushErrors(ctx))
}

func (r *Recorder) flushFailures(ctx context.Context) error {
	var rows []database.SendFailure

	iter := r.rdb.Scan(ctx, 0, keyFailurePrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()

		count, err := r.rdb.Get(ctx, key).Int64()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue // expired between scan and get
			}
			return fmt.Errorf("failed to read failure bucket %s: %w", key, err)
		}
		if err := r.rdb.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("failed to delete failure bucket %s: %w", key, err)
		}

		row, err := parseFailureKey(key, count)
		if err != nil {
			r.logger.WarnContext(ctx, "Discarding malformed failure bucket", "key", key, "error", err)
			continue
		}
		rows = append(rows, row)
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan failure buckets: %w", err)
	}

	if len(rows) == 0 {
		return nil
	}
	r.logger.InfoContext(ctx, "Flushing send failures", "count", len(rows))
	return r.store.InsertSendFailures(ctx, rows)
}

func (r *Recorder) flushErrors(ctx context.Context) error {
	var records []database.ErrorRecord
	for {
		select {
		case rec := <-r.errs:
			records = append(records, rec)
		default:
			if len(records) == 0 {
				return nil
			}
			r.logger.InfoContext(ctx, "Flushing error records", "count", len(records))
			return r.store.InsertErrors(ctx, records)
		}
	}
}

func parseRequestEntry(entry string) (*database.RequestLog, error) {
	parts := strings.SplitN(entry, "|", 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf("expected 3 fields, got %d", len(parts))
	}
	ts, err := time.Parse(timeFormat, parts[0])
	if err != nil {
		return nil, fmt.Errorf("bad timestamp %q: %w", parts[0], err)
	}
	userID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad user id %q: %w", parts[1], err)
	}
	return &database.RequestLog{Timestamp: ts, UserID: userID, Command: parts[2]}, nil
}

// parseFailureKey splits "failures|2025-06-04-17:30|text|RateLimitExceeded"
// into a SendFailure row.
func parseFailureKey(key string, count int64) (database.SendFailure, error) {
	parts := strings.SplitN(key, "|", 4)
	if len(parts) != 4 {
		return database.SendFailure{}, fmt.Errorf("expected 4 fields, got %d", len(parts))
	}
	ts, err := time.Parse(bucketFormat, parts[1])
	if err != nil {
		return database.SendFailure{}, fmt.Errorf("bad bucket timestamp %q: %w", parts[1], err)
	}
	return database.SendFailure{
		Timestamp:    ts,
		MessageType:  parts[2],
		ErrorMessage: parts[3],
		Count:        count,
	}, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
