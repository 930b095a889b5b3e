package errclass

import (
	"context"
	"errors"
	"io/fs"
	"strings"
	"syscall"
	"time"
)

// Classify maps a raw failure into an AppError. It is a pure function:
// deterministic for the same raw error shape, no side effects. Already
// classified errors pass through unchanged.
//
// Precedence follows the taxonomy table: AUTH, RATE_LIMIT,
// ACCESS_DENIED/NOT_FOUND, CONTEXT_TOO_LARGE, TIMEOUT, STORAGE_CONNECTION,
// NETWORK, FILESYSTEM, VALIDATION, UNKNOWN. First match wins.
func Classify(err error, operation string) *AppError {
	if err == nil {
		return nil
	}

	var app *AppError
	if errors.As(err, &app) {
		return app
	}

	msg := strings.ToLower(err.Error())
	status := httpStatus(err)
	ctx := ErrorContext{Operation: operation, Timestamp: time.Now().UTC()}

	switch {
	case status == 401 || strings.Contains(msg, "unauthorized"):
		return &AppError{
			Category:    CategoryAuth,
			Severity:    SeverityCritical,
			Code:        "AUTH_FAILED",
			Message:     err.Error(),
			UserMessage: "Authentication with the transformation provider failed. Check credentials.",
			Context:     ctx,
			RecoveryActions: []RecoveryAction{
				{Type: RecoveryManual, Description: "verify provider credentials", EstimatedTime: 5 * time.Minute},
			},
			Retryable: false,
			Cause:     err,
		}

	case status == 429 || strings.Contains(msg, "rate limit") || (status == 403 && rateLimited(err)):
		return &AppError{
			Category:    CategoryRateLimit,
			Severity:    SeverityMedium,
			Code:        "RATE_LIMITED",
			Message:     err.Error(),
			UserMessage: "The provider is rate limiting requests. The task will be retried automatically.",
			Context:     ctx,
			RecoveryActions: []RecoveryAction{
				{Type: RecoveryRetry, Automated: true, EstimatedTime: time.Minute, Description: "retry with backoff"},
			},
			Retryable:          true,
			MaxRetries:         3,
			RetryDelay:         30 * time.Second,
			ExponentialBackoff: true,
			Cause:              err,
		}

	case status == 403 || strings.Contains(msg, "access denied") || strings.Contains(msg, "forbidden"):
		return &AppError{
			Category:    CategoryAccessDenied,
			Severity:    SeverityHigh,
			Code:        "ACCESS_DENIED",
			Message:     err.Error(),
			UserMessage: "Access to the requested resource was denied.",
			Context:     ctx,
			RecoveryActions: []RecoveryAction{
				{Type: RecoveryManual, Description: "check resource permissions", EstimatedTime: 10 * time.Minute},
			},
			Retryable: false,
			Cause:     err,
		}

	case status == 404 || strings.Contains(msg, "not found"):
		return &AppError{
			Category:    CategoryNotFound,
			Severity:    SeverityMedium,
			Code:        "NOT_FOUND",
			Message:     err.Error(),
			UserMessage: "A required resource was not found.",
			Context:     ctx,
			RecoveryActions: []RecoveryAction{
				{Type: RecoveryManual, Description: "verify the resource exists", EstimatedTime: 5 * time.Minute},
			},
			Retryable: false,
			Cause:     err,
		}

	case strings.Contains(msg, "context length") || strings.Contains(msg, "token limit") ||
		strings.Contains(msg, "context_length_exceeded"):
		// Retryable via fallback split of the input, not blind re-send: the
		// provider is expected to reduce scope on the next attempt.
		return &AppError{
			Category:    CategoryContextTooLarge,
			Severity:    SeverityMedium,
			Code:        "CONTEXT_TOO_LARGE",
			Message:     err.Error(),
			UserMessage: "The task input exceeds the provider's context window.",
			Context:     ctx,
			RecoveryActions: []RecoveryAction{
				{Type: RecoveryFallback, Automated: true, Description: "split input and retry", EstimatedTime: time.Minute},
			},
			Retryable:  true,
			MaxRetries: 1,
			Cause:      err,
		}

	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out"):
		return &AppError{
			Category:    CategoryTimeout,
			Severity:    SeverityMedium,
			Code:        "TIMEOUT",
			Message:     err.Error(),
			UserMessage: "The operation timed out and will be retried.",
			Context:     ctx,
			RecoveryActions: []RecoveryAction{
				{Type: RecoveryRetry, Automated: true, EstimatedTime: 30 * time.Second, Description: "retry with backoff"},
			},
			Retryable:          true,
			MaxRetries:         2,
			RetryDelay:         2 * time.Second,
			ExponentialBackoff: true,
			Cause:              err,
		}

	case strings.Contains(msg, "connection") && hasStorageKeyword(msg):
		return &AppError{
			Category:    CategoryStorageConnection,
			Severity:    SeverityHigh,
			Code:        "STORAGE_CONNECTION",
			Message:     err.Error(),
			UserMessage: "Lost connection to the storage backend.",
			Context:     ctx,
			RecoveryActions: []RecoveryAction{
				{Type: RecoveryRetry, Automated: true, EstimatedTime: time.Minute, Description: "reconnect and retry"},
			},
			Retryable:          true,
			MaxRetries:         3,
			RetryDelay:         time.Second,
			ExponentialBackoff: true,
			Cause:              err,
		}

	case errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		strings.Contains(msg, "econnrefused") || strings.Contains(msg, "enotfound") ||
		strings.Contains(msg, "connection refused") || strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "network"):
		return &AppError{
			Category:    CategoryNetwork,
			Severity:    SeverityMedium,
			Code:        "NETWORK_ERROR",
			Message:     err.Error(),
			UserMessage: "A network error occurred. The operation will be retried.",
			Context:     ctx,
			RecoveryActions: []RecoveryAction{
				{Type: RecoveryRetry, Automated: true, EstimatedTime: 30 * time.Second, Description: "retry with backoff"},
			},
			Retryable:          true,
			MaxRetries:         3,
			RetryDelay:         time.Second,
			ExponentialBackoff: true,
			Cause:              err,
		}

	case errors.Is(err, fs.ErrNotExist) || strings.Contains(msg, "no such file") || strings.Contains(msg, "enoent"):
		// A missing file will not appear by retrying.
		return &AppError{
			Category:    CategoryFilesystem,
			Severity:    SeverityMedium,
			Code:        "FILE_NOT_FOUND",
			Message:     err.Error(),
			UserMessage: "A required file is missing from the workspace.",
			Context:     ctx,
			RecoveryActions: []RecoveryAction{
				{Type: RecoveryManual, Description: "restore the missing file", EstimatedTime: 5 * time.Minute},
			},
			Retryable: false,
			Cause:     err,
		}

	case errors.Is(err, fs.ErrPermission) || strings.Contains(msg, "permission denied") ||
		strings.Contains(msg, "eacces") || isFilesystemText(msg):
		return &AppError{
			Category:    CategoryFilesystem,
			Severity:    SeverityMedium,
			Code:        "FILESYSTEM_ERROR",
			Message:     err.Error(),
			UserMessage: "A filesystem error occurred. The operation will be retried.",
			Context:     ctx,
			RecoveryActions: []RecoveryAction{
				{Type: RecoveryRetry, Automated: true, EstimatedTime: 10 * time.Second, Description: "retry the file operation"},
			},
			Retryable:  true,
			MaxRetries: 2,
			RetryDelay: 500 * time.Millisecond,
			Cause:      err,
		}

	case strings.Contains(msg, "invalid") || strings.Contains(msg, "required") || strings.Contains(msg, "format"):
		return &AppError{
			Category:    CategoryValidation,
			Severity:    SeverityLow,
			Code:        "VALIDATION_ERROR",
			Message:     err.Error(),
			UserMessage: "The input failed validation.",
			Context:     ctx,
			RecoveryActions: []RecoveryAction{
				{Type: RecoveryManual, Description: "fix the invalid input", EstimatedTime: 10 * time.Minute},
			},
			Retryable: false,
			Cause:     err,
		}

	default:
		return unknown(err, ctx, false)
	}
}

// ClassifyValue classifies a recovered panic value. Plain strings are
// treated as transient faults; arbitrary values are not retried so that
// programmer errors are not masked as transient.
func ClassifyValue(v any, operation string) *AppError {
	ctx := ErrorContext{Operation: operation, Timestamp: time.Now().UTC()}
	switch val := v.(type) {
	case error:
		return Classify(val, operation)
	case string:
		app := unknown(errors.New(val), ctx, true)
		app.MaxRetries = 1
		app.RetryDelay = time.Second
		return app
	default:
		return unknown(errors.New("unrecognized failure value"), ctx, false).WithData("value", v)
	}
}

func unknown(err error, ctx ErrorContext, retryable bool) *AppError {
	return &AppError{
		Category:    CategoryUnknown,
		Severity:    SeverityHigh,
		Code:        "UNKNOWN_ERROR",
		Message:     err.Error(),
		UserMessage: "An unexpected error occurred.",
		Context:     ctx,
		RecoveryActions: []RecoveryAction{
			{Type: RecoveryManual, Description: "inspect logs for the underlying cause", EstimatedTime: 15 * time.Minute},
		},
		Retryable: retryable,
		Cause:     err,
	}
}

// httpStatus extracts an HTTP status code when the error chain carries one.
func httpStatus(err error) int {
	var sc interface{ StatusCode() int }
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	var hs interface{ HTTPStatus() int }
	if errors.As(err, &hs) {
		return hs.HTTPStatus()
	}
	return 0
}

// rateLimited reports whether a 403 carries a rate-limit signal (header
// surfaced by the provider client as a method, or message text).
func rateLimited(err error) bool {
	var rl interface{ RateLimited() bool }
	if errors.As(err, &rl) {
		return rl.RateLimited()
	}
	return strings.Contains(strings.ToLower(err.Error()), "rate limit")
}

func hasStorageKeyword(msg string) bool {
	for _, kw := range []string{"database", "postgres", "redis", "storage", "s3", "sql"} {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}

func isFilesystemText(msg string) bool {
	for _, kw := range []string{"file exists", "is a directory", "not a directory", "read-only file system"} {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}
