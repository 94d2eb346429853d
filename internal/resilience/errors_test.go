package resilience

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsTransient_ExplicitTransientError(t *testing.T) {
	err := NewTransientError(errors.New("server overloaded"), "57P03")
	if !IsTransient(err) {
		t.Error("expected TransientError to be transient")
	}
}

func TestIsTransient_WrappedTransientError(t *testing.T) {
	inner := NewTransientError(errors.New("starting up"), "57P03")
	wrapped := fmt.Errorf("ping failed: %w", inner)
	if !IsTransient(wrapped) {
		t.Error("expected wrapped TransientError to be transient")
	}
}

func TestIsTransient_NilError(t *testing.T) {
	if IsTransient(nil) {
		t.Error("nil error should not be transient")
	}
}

func TestIsTransient_RegularError(t *testing.T) {
	err := errors.New("invalid input: missing field")
	if IsTransient(err) {
		t.Error("regular error should not be transient")
	}
}

func TestIsTransient_PgErrorCannotConnectNow(t *testing.T) {
	err := fmt.Errorf("ping: %w", &pgconn.PgError{Code: "57P03", Message: "the database system is starting up"})
	if !IsTransient(err) {
		t.Error("57P03 should be transient")
	}
}

func TestIsTransient_PgErrorAuthFailed(t *testing.T) {
	err := &pgconn.PgError{Code: "28P01", Message: "password authentication failed"}
	if IsTransient(err) {
		t.Error("authentication failure should not be transient")
	}
}

func TestIsTransient_ConnectionReset(t *testing.T) {
	err := fmt.Errorf("write tcp: %w", syscall.ECONNRESET)
	if !IsTransient(err) {
		t.Error("ECONNRESET should be transient")
	}
}

func TestIsTransient_ConnectionRefused(t *testing.T) {
	err := fmt.Errorf("dial tcp: %w", syscall.ECONNREFUSED)
	if !IsTransient(err) {
		t.Error("ECONNREFUSED should be transient")
	}
}

func TestIsTransient_NetworkTimeout(t *testing.T) {
	err := &net.DNSError{IsTimeout: true, Err: "timeout"}
	if !IsTransient(err) {
		t.Error("network timeout should be transient")
	}
}

func TestIsTransient_StringPatterns(t *testing.T) {
	patterns := []string{
		"failed to connect to `host=db user=geo database=geo`: dial error (dial tcp 10.0.0.2:5432: connect: connection refused)",
		"connection reset by peer",
		"broken pipe",
		"i/o timeout",
		"FATAL: the database system is starting up (SQLSTATE 57P03)",
	}
	for _, p := range patterns {
		err := errors.New(p)
		if !IsTransient(err) {
			t.Errorf("expected %q to be transient", p)
		}
	}
}

func TestIsTransientSQLState(t *testing.T) {
	transient := []string{"08000", "08001", "08006", "57P01", "57P02", "57P03"}
	for _, code := range transient {
		if !IsTransientSQLState(code) {
			t.Errorf("expected SQLSTATE %s to be transient", code)
		}
	}

	permanent := []string{"23505", "42P01", "28P01", "3D000", "XX000"}
	for _, code := range permanent {
		if IsTransientSQLState(code) {
			t.Errorf("expected SQLSTATE %s to NOT be transient", code)
		}
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	inner := errors.New("root cause")
	te := NewTransientError(inner, "08006")

	if !errors.Is(te, inner) {
		t.Error("TransientError.Unwrap should return the inner error")
	}

	if te.SQLState != "08006" {
		t.Errorf("expected SQLState 08006, got %s", te.SQLState)
	}
}

func TestTransientError_ErrorMessage(t *testing.T) {
	inner := errors.New("something went wrong")
	te := NewTransientError(inner, "08006")

	if te.Error() != "something went wrong" {
		t.Errorf("expected error message %q, got %q", inner.Error(), te.Error())
	}
}
