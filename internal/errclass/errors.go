// Package errclass maps raw failures into the structured error taxonomy used
// for retry decisions and operator reporting.
package errclass

import (
	"fmt"
	"time"
)

type Category string

const (
	CategoryAuth              Category = "AUTH"
	CategoryRateLimit         Category = "RATE_LIMIT"
	CategoryAccessDenied      Category = "ACCESS_DENIED"
	CategoryNotFound          Category = "NOT_FOUND"
	CategoryContextTooLarge   Category = "CONTEXT_TOO_LARGE"
	CategoryTimeout           Category = "TIMEOUT"
	CategoryStorageConnection Category = "STORAGE_CONNECTION"
	CategoryNetwork           Category = "NETWORK"
	CategoryFilesystem        Category = "FILESYSTEM"
	CategoryValidation        Category = "VALIDATION"
	CategoryUnknown           Category = "UNKNOWN"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

type RecoveryType string

const (
	RecoveryRetry    RecoveryType = "retry"
	RecoveryManual   RecoveryType = "manual"
	RecoveryFallback RecoveryType = "fallback"
	RecoverySkip     RecoveryType = "skip"
	RecoveryAbort    RecoveryType = "abort"
)

// RecoveryAction describes one way an operator (or the system) can recover
// from an error.
type RecoveryAction struct {
	Type          RecoveryType  `json:"type"`
	Automated     bool          `json:"automated"`
	EstimatedTime time.Duration `json:"estimatedTime"`
	Description   string        `json:"description"`
}

// ErrorContext carries where and when a failure happened.
type ErrorContext struct {
	Operation string         `json:"operation"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Error codes surfaced to callers of the job control API.
const (
	CodeInvalidStateTransition = "INVALID_STATE_TRANSITION"
	CodeNotFound               = "NOT_FOUND"
	CodePlanInfeasible         = "PLAN_INFEASIBLE"
)

// AppError is a classified failure with its retry policy attached.
type AppError struct {
	Category           Category         `json:"category"`
	Severity           Severity         `json:"severity"`
	Code               string           `json:"code"`
	Message            string           `json:"message"`
	UserMessage        string           `json:"userMessage"`
	Context            ErrorContext     `json:"context"`
	RecoveryActions    []RecoveryAction `json:"recoveryActions"`
	Retryable          bool             `json:"retryable"`
	MaxRetries         int              `json:"maxRetries"`
	RetryDelay         time.Duration    `json:"retryDelay"`
	ExponentialBackoff bool             `json:"exponentialBackoff"`
	Cause              error            `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithData attaches free-form context data and returns the error.
func (e *AppError) WithData(key string, value any) *AppError {
	if e.Context.Data == nil {
		e.Context.Data = make(map[string]any)
	}
	e.Context.Data[key] = value
	return e
}

// New creates an unclassified AppError with an explicit code. Used for
// control-surface errors (invalid transition, not found) that never go
// through classification.
func New(code, message string) *AppError {
	return &AppError{
		Category:    CategoryValidation,
		Severity:    SeverityMedium,
		Code:        code,
		Message:     message,
		UserMessage: message,
		Context:     ErrorContext{Timestamp: time.Now().UTC()},
	}
}
