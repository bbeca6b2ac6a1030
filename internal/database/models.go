package database

import "time"

// RequestLog is one durable row of the per-command request log, drained
// from the ephemeral queue by the analytics flush loop.
type RequestLog struct {
	ID        uint      `db:"id"`
	Timestamp time.Time `db:"timestamp"`
	UserID    int64     `db:"user_id"`
	Command   string    `db:"command"`
}

// SendFailure is an aggregated delivery-failure bucket: all failures of the
// same message kind and truncated error text within one minute collapse
// into a single row with a count.
type SendFailure struct {
	ID           uint      `db:"id"`
	Timestamp    time.Time `db:"timestamp"`
	MessageType  string    `db:"message_type"`
	ErrorMessage string    `db:"error_message"`
	Count        int64     `db:"count"`
}

// ErrorRecord captures an unhandled error raised while processing an
// update, with enough context to reproduce it.
type ErrorRecord struct {
	ID            uint      `db:"id"`
	Timestamp     time.Time `db:"timestamp"`
	ExceptionType string    `db:"exception_type"`
	ErrorMessage  string    `db:"error_message"`
	UpdateStr     string    `db:"update_str"`
}
