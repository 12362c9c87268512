package logging

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestOperationErrorFormatsRequestID(t *testing.T) {
	base := errors.New("boom")
	err := NewOperationError("ageapi.predict", "req-1", base)

	if got, want := err.Error(), "ageapi.predict (request_id=req-1): boom"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if !errors.Is(err, base) {
		t.Fatal("expected wrapped error to match base error")
	}
}

func TestNewOperationErrorNilPassthrough(t *testing.T) {
	if err := NewOperationError("noop", "", nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestNewLoggerWithRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "age-gate.log")
	logger, err := NewLogger(path)
	if err != nil {
		t.Fatalf("expected logger, got error: %v", err)
	}
	WithSession(WithOperation(logger, "test.operation", "req-1"), "session-1").Info("hello")
	_ = logger.Sync()
}

func TestOperationOfReturnsInnermostOperation(t *testing.T) {
	inner := NewOperationError("ageapi.predict", "", errors.New("refused"))
	outer := NewOperationError("session.record_check", "check-1", inner)

	if got := OperationOf(outer); got != "ageapi.predict" {
		t.Fatalf("expected innermost operation, got %q", got)
	}
	if got := OperationOf(errors.New("plain")); got != "" {
		t.Fatalf("expected empty operation, got %q", got)
	}
}
