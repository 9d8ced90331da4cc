package respond

// Canonical error codes shared by handlers and middleware. Clients switch on
// these, so changing one is a breaking API change.
const (
	CodeBadRequest    = "BAD_REQUEST"
	CodeUnauthorized  = "UNAUTHORIZED"
	CodeForbidden     = "FORBIDDEN"
	CodeNotFound      = "NOT_FOUND"
	CodeConflict      = "CONFLICT"
	CodeUnprocessable = "UNPROCESSABLE_ENTITY"
	CodeTimeout       = "REQUEST_TIMEOUT"
	CodeRateLimited   = "RATE_LIMIT_EXCEEDED"
	CodeValidation    = "VALIDATION_ERROR"
	CodeInternal      = "INTERNAL_SERVER_ERROR"
	CodeTooLarge      = "REQUEST_TOO_LARGE"
	CodeUnavailable   = "SERVICE_UNAVAILABLE"
)
