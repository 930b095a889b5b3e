package errclass

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"testing"
)

type statusErr struct {
	status int
	msg    string
	rate   bool
}

func (e *statusErr) Error() string     { return e.msg }
func (e *statusErr) StatusCode() int   { return e.status }
func (e *statusErr) RateLimited() bool { return e.rate }

func TestClassify_Auth(t *testing.T) {
	app := Classify(&statusErr{status: 401, msg: "request rejected"}, "convert")
	if app.Category != CategoryAuth {
		t.Fatalf("expected AUTH, got %s", app.Category)
	}
	if app.Retryable {
		t.Error("AUTH must not be retryable")
	}
	if app.Context.Operation != "convert" {
		t.Errorf("expected operation convert, got %s", app.Context.Operation)
	}

	app = Classify(errors.New("401 unauthorized: bad api key"), "convert")
	if app.Category != CategoryAuth {
		t.Errorf("expected AUTH from text signal, got %s", app.Category)
	}
}

func TestClassify_RateLimit(t *testing.T) {
	app := Classify(&statusErr{status: 429, msg: "too many requests"}, "convert")
	if app.Category != CategoryRateLimit {
		t.Fatalf("expected RATE_LIMIT, got %s", app.Category)
	}
	if !app.Retryable || !app.ExponentialBackoff {
		t.Error("RATE_LIMIT must retry with exponential backoff")
	}

	// 403 with a rate-limit signal is RATE_LIMIT, not ACCESS_DENIED.
	app = Classify(&statusErr{status: 403, msg: "slow down", rate: true}, "convert")
	if app.Category != CategoryRateLimit {
		t.Errorf("expected RATE_LIMIT for rate-limited 403, got %s", app.Category)
	}
}

func TestClassify_AccessDeniedAndNotFound(t *testing.T) {
	app := Classify(&statusErr{status: 403, msg: "nope"}, "convert")
	if app.Category != CategoryAccessDenied || app.Retryable {
		t.Errorf("expected non-retryable ACCESS_DENIED, got %s retryable=%v", app.Category, app.Retryable)
	}

	app = Classify(&statusErr{status: 404, msg: "missing"}, "convert")
	if app.Category != CategoryNotFound || app.Retryable {
		t.Errorf("expected non-retryable NOT_FOUND, got %s retryable=%v", app.Category, app.Retryable)
	}
}

func TestClassify_ContextTooLarge(t *testing.T) {
	app := Classify(errors.New("prompt exceeds token limit of 200000"), "convert")
	if app.Category != CategoryContextTooLarge {
		t.Fatalf("expected CONTEXT_TOO_LARGE, got %s", app.Category)
	}
	if !app.Retryable {
		t.Error("CONTEXT_TOO_LARGE retries via fallback split")
	}
	if app.ExponentialBackoff || app.RetryDelay != 0 {
		t.Error("CONTEXT_TOO_LARGE must not carry a backoff delay")
	}
	found := false
	for _, ra := range app.RecoveryActions {
		if ra.Type == RecoveryFallback {
			found = true
		}
	}
	if !found {
		t.Error("expected a fallback recovery action")
	}
}

func TestClassify_Timeout(t *testing.T) {
	app := Classify(context.DeadlineExceeded, "convert")
	if app.Category != CategoryTimeout || !app.Retryable {
		t.Errorf("expected retryable TIMEOUT, got %s retryable=%v", app.Category, app.Retryable)
	}
	app = Classify(fmt.Errorf("provider call: %w", errors.New("request timed out")), "convert")
	if app.Category != CategoryTimeout {
		t.Errorf("expected TIMEOUT from text, got %s", app.Category)
	}
}

func TestClassify_StorageVsNetwork(t *testing.T) {
	app := Classify(errors.New("connection to postgres lost"), "history.append")
	if app.Category != CategoryStorageConnection {
		t.Errorf("expected STORAGE_CONNECTION, got %s", app.Category)
	}
	if app.Severity != SeverityHigh {
		t.Errorf("storage loss is high severity, got %s", app.Severity)
	}

	app = Classify(errors.New("dial tcp: connection refused"), "convert")
	if app.Category != CategoryNetwork || !app.Retryable {
		t.Errorf("expected retryable NETWORK, got %s", app.Category)
	}
}

func TestClassify_Filesystem(t *testing.T) {
	app := Classify(fmt.Errorf("open src/main.ts: %w", fs.ErrNotExist), "read")
	if app.Category != CategoryFilesystem {
		t.Fatalf("expected FILESYSTEM, got %s", app.Category)
	}
	if app.Retryable {
		t.Error("missing file is not retryable")
	}

	app = Classify(fmt.Errorf("open out/main.go: %w", fs.ErrPermission), "write")
	if app.Category != CategoryFilesystem || !app.Retryable {
		t.Errorf("permission errors are retryable FILESYSTEM, got %s retryable=%v", app.Category, app.Retryable)
	}
}

func TestClassify_Validation(t *testing.T) {
	app := Classify(errors.New("field projectId is required"), "plan")
	if app.Category != CategoryValidation || app.Retryable {
		t.Errorf("expected non-retryable VALIDATION, got %s", app.Category)
	}
}

func TestClassify_UnknownDefault(t *testing.T) {
	app := Classify(errors.New("wibble wobble"), "convert")
	if app.Category != CategoryUnknown {
		t.Fatalf("expected UNKNOWN, got %s", app.Category)
	}
	if app.Retryable {
		t.Error("UNKNOWN defaults to non-retryable to prevent unbounded retry loops")
	}
}

func TestClassify_PassThrough(t *testing.T) {
	orig := New(CodePlanInfeasible, "plan has a cycle")
	app := Classify(fmt.Errorf("wrapped: %w", orig), "run")
	if app != orig {
		t.Error("already classified errors must pass through unchanged")
	}
}

func TestClassifyValue_PanicValues(t *testing.T) {
	app := ClassifyValue("transient glitch", "convert")
	if app.Category != CategoryUnknown || !app.Retryable {
		t.Errorf("string panics are transient UNKNOWN, got %s retryable=%v", app.Category, app.Retryable)
	}

	app = ClassifyValue(struct{ X int }{42}, "convert")
	if app.Category != CategoryUnknown || app.Retryable {
		t.Errorf("arbitrary panic values must not be retryable, got %s retryable=%v", app.Category, app.Retryable)
	}

	app = ClassifyValue(context.DeadlineExceeded, "convert")
	if app.Category != CategoryTimeout {
		t.Errorf("error panic values go through Classify, got %s", app.Category)
	}
}

func TestClassify_Deterministic(t *testing.T) {
	err := errors.New("429 rate limit exceeded")
	a := Classify(err, "convert")
	b := Classify(err, "convert")
	if a.Category != b.Category || a.Retryable != b.Retryable || a.Code != b.Code {
		t.Error("classification must be deterministic for the same raw error")
	}
}
