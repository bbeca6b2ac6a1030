package database

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jmoiron/sqlx"
)

// Store defines the durable analytics operations. All three tables are
// append-only; nothing in the bot ever reads them back.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// InsertRequest appends one request-log row.
	InsertRequest(ctx context.Context, req *RequestLog) error

	// InsertSendFailures appends a batch of failure buckets in one transaction.
	InsertSendFailures(ctx context.Context, failures []SendFailure) error

	// InsertErrors appends a batch of unhandled-error records in one transaction.
	InsertErrors(ctx context.Context, records []ErrorRecord) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InsertRequest appends one request-log row.
func (s *sqlxStore) InsertRequest(ctx context.Context, req *RequestLog) error {
	if req == nil {
		return fmt.Errorf("cannot insert nil request")
	}
	if req.Command == "" {
		return fmt.Errorf("request must have a non-empty command")
	}
	if req.Timestamp.IsZero() {
		return fmt.Errorf("request must have a non-zero timestamp")
	}

	query := `
        INSERT INTO requests (timestamp, user_id, command)
        VALUES (:timestamp, :user_id, :command);
    `
	if _, err := s.db.NamedExecContext(ctx, query, req); err != nil {
		s.logger.ErrorContext(ctx, "Error inserting request", "user_id", req.UserID, "command", req.Command, "error", err)
		return fmt.Errorf("failed to insert request (user %d): %w", req.UserID, err)
	}

	s.logger.DebugContext(ctx, "Request row inserted", "user_id", req.UserID, "command", req.Command)
	return nil
}

// InsertSendFailures appends a batch of failure buckets in one transaction.
// An empty batch is a no-op.
func (s *sqlxStore) InsertSendFailures(ctx context.Context, failures []SendFailure) error {
	if len(failures) == 0 {
		return nil
	}

	query := `
        INSERT INTO send_failures (timestamp, message_type, error_message, count)
        VALUES (:timestamp, :message_type, :error_message, :count);
    `
	if err := s.execBatch(ctx, func(tx *sqlx.Tx) error {
		for i := range failures {
			if _, err := tx.NamedExecContext(ctx, query, &failures[i]); err != nil {
				return fmt.Errorf("failed to insert send failure (%s): %w", failures[i].MessageType, err)
			}
		}
		return nil
	}); err != nil {
		s.logger.ErrorContext(ctx, "Error inserting send failures", "count", len(failures), "error", err)
		return err
	}

	s.logger.DebugContext(ctx, "Send failure rows inserted", "count", len(failures))
	return nil
}

// InsertErrors appends a batch of unhandled-error records in one transaction.
// An empty batch is a no-op.
func (s *sqlxStore) InsertErrors(ctx context.Context, records []ErrorRecord) error {
	if len(records) == 0 {
		return nil
	}

	query := `
        INSERT INTO errors (timestamp, exception_type, error_message, update_str)
        VALUES (:timestamp, :exception_type, :error_message, :update_str);
    `
	if err := s.execBatch(ctx, func(tx *sqlx.Tx) error {
		for i := range records {
			if _, err := tx.NamedExecContext(ctx, query, &records[i]); err != nil {
				return fmt.Errorf("failed to insert error record (%s): %w", records[i].ExceptionType, err)
			}
		}
		return nil
	}); err != nil {
		s.logger.ErrorContext(ctx, "Error inserting error records", "count", len(records), "error", err)
		return err
	}

	s.logger.DebugContext(ctx, "Error rows inserted", "count", len(records))
	return nil
}

// execBatch runs fn inside a transaction, rolling back on any failure.
func (s *sqlxStore) execBatch(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
