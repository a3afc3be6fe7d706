package handlers

// Common error message constants shared across handlers
const (
	ErrMsgInvalidRequestBody  = "Invalid request body"
	ErrMsgUnauthorized        = "Unauthorized"
	ErrMsgForbidden           = "Access denied"
	ErrMsgReportNotFound      = "Report not found"
	ErrMsgReportSubmitted     = "Report has already been submitted"
	ErrMsgObservationNotFound = "Observation not found"
	ErrMsgProfileNotFound     = "Profile not found"
	ErrMsgInternalError       = "Internal server error"
)
