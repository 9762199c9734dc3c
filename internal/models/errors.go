package models

// Error codes exposed in job failures and API error envelopes
const (
	ErrCodeInvalidAPIKey = "AUTH_INVALID_API_KEY"
	ErrCodeBadRequest    = "BAD_REQUEST"
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeInternal      = "INTERNAL_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeJobNotFound   = "JOB_NOT_FOUND"
)
