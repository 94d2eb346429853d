package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
)

// TransientError wraps an error that is safe to retry (e.g. the server is
// still starting up or the network dropped).
type TransientError struct {
	Err      error
	SQLState string
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as transient with an optional SQLSTATE code.
func NewTransientError(err error, sqlState string) *TransientError {
	return &TransientError{Err: err, SQLState: sqlState}
}

// IsTransient returns true if the error (or any error in its chain) is a
// TransientError, a PostgreSQL error that signals the server is not ready yet,
// or a network-level failure that usually clears on its own.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return IsTransientSQLState(pgErr.Code)
	}

	if pgconn.SafeToRetry(err) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// pgconn flattens dial errors into its own message text.
	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection refused",
		"connection reset by peer",
		"broken pipe",
		"no such host",
		"i/o timeout",
		"the database system is starting up",
		"the database system is shutting down",
		"server closed the connection unexpectedly",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientSQLState reports whether a SQLSTATE code means the server cannot
// take the connection right now: class 08 (connection exception) and
// 57P01..57P03 (admin shutdown, crash shutdown, cannot connect now).
func IsTransientSQLState(code string) bool {
	if strings.HasPrefix(code, "08") {
		return true
	}
	switch code {
	case "57P01", "57P02", "57P03":
		return true
	default:
		return false
	}
}
