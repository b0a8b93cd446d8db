package errors

// Error codes for standardized error responses
const (
	// Authentication errors
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeInvalidToken = "invalid_token"

	// Match action errors
	ErrCodeNotFound         = "not_found"
	ErrCodeForbidden        = "forbidden"
	ErrCodeInvalidPhase     = "invalid_phase"
	ErrCodeAlreadySubmitted = "already_submitted"
	ErrCodeStaleQuestion    = "stale_question"
	ErrCodeGenerationFailed = "generation_failed"
	ErrCodeConflict         = "conflict"

	// Matchmaking errors
	ErrCodeEnqueueFailed = "enqueue_failed"
	ErrCodeCancelFailed  = "cancel_failed"

	// WebSocket errors
	ErrCodeInvalidPayload     = "invalid_payload"
	ErrCodeUnknownMessageType = "unknown_message_type"

	// Server errors
	ErrCodeInternalError = "internal_error"
	ErrCodeUpstreamError = "upstream_error"
)
