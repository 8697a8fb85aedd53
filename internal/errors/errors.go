package errors

import "fmt"

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

const (
	CodeParse              = "E100"
	CodeUnrecognizedTopic  = "E110"
	CodeValidation         = "E120"
	CodePlatformRequest    = "E300"
	CodeExternalAPI        = "E310"
	CodeStorage            = "E400"
	defaultUserMessageText = "Something went wrong. Please try again later."
)

type AppError struct {
	Code        string
	Message     string
	UserMessage string
	Severity    Severity
	Retryable   bool
	cause       error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

func (e *AppError) Cause() error {
	return e.Unwrap()
}

// NewParseError reports a callback payload that could not be decoded.
func NewParseError(payload string, cause error) *AppError {
	msg := fmt.Sprintf("malformed callback payload %q", payload)
	if cause != nil {
		msg = fmt.Sprintf("%s: %s", msg, cause.Error())
	}

	return &AppError{
		Code:        CodeParse,
		Message:     msg,
		UserMessage: "This button is no longer valid.",
		Severity:    SeverityLow,
		Retryable:   false,
		cause:       cause,
	}
}

// NewUnrecognizedTopicError reports a callback whose topic has no handler.
func NewUnrecognizedTopicError(topic string) *AppError {
	return &AppError{
		Code:        CodeUnrecognizedTopic,
		Message:     fmt.Sprintf("no handler for callback topic %q", topic),
		UserMessage: "This action is not available yet.",
		Severity:    SeverityLow,
		Retryable:   false,
	}
}

// NewValidationError reports malformed input received over the HTTP API.
func NewValidationError(msg string) *AppError {
	return &AppError{
		Code:        CodeValidation,
		Message:     msg,
		UserMessage: fmt.Sprintf("Invalid request. %s", msg),
		Severity:    SeverityLow,
		Retryable:   false,
	}
}

// NewPlatformRequestError wraps a failed Telegram Bot API request.
func NewPlatformRequestError(method string, cause error) *AppError {
	var underlyingMsg string
	if cause != nil {
		underlyingMsg = cause.Error()
	}

	return &AppError{
		Code:        CodePlatformRequest,
		Message:     fmt.Sprintf("telegram %s failed: %s", method, underlyingMsg),
		UserMessage: "Telegram is temporarily unavailable.",
		Severity:    SeverityHigh,
		Retryable:   true,
		cause:       cause,
	}
}

// NewExternalAPIError wraps failures of downstream services such as the chart renderer.
func NewExternalAPIError(apiName string, cause error) *AppError {
	var underlyingMsg string
	if cause != nil {
		underlyingMsg = cause.Error()
	}

	return &AppError{
		Code:        CodeExternalAPI,
		Message:     fmt.Sprintf("external API error: %s: %s", apiName, underlyingMsg),
		UserMessage: "Service temporarily unavailable.",
		Severity:    SeverityMedium,
		Retryable:   true,
		cause:       cause,
	}
}

// NewStorageError wraps a failed read or write of persisted preferences.
func NewStorageError(op string, cause error) *AppError {
	var underlyingMsg string
	if cause != nil {
		underlyingMsg = cause.Error()
	}

	return &AppError{
		Code:        CodeStorage,
		Message:     fmt.Sprintf("storage %s failed: %s", op, underlyingMsg),
		UserMessage: "Your preferences are temporarily unavailable.",
		Severity:    SeverityHigh,
		Retryable:   true,
		cause:       cause,
	}
}
