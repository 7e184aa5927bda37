package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrInvalidCredentials    = fmt.Errorf("invalid email or password")
	ErrNotAuthenticated      = fmt.Errorf("not authenticated")
	ErrAuthorizationRequired = fmt.Errorf("authorization required")
	ErrForbidden             = fmt.Errorf("access denied")

	// Lookup errors
	ErrNotFound     = fmt.Errorf("not found")
	ErrUserNotFound = fmt.Errorf("user not found")

	// Sharing errors
	ErrShareWithSelf = fmt.Errorf("cannot share a list with yourself")
	ErrAlreadyShared = fmt.Errorf("list already shared")

	// External service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrStorage            = fmt.Errorf("object storage upload failed")
	ErrMailDelivery       = fmt.Errorf("mail delivery failed")
	ErrScreenshot         = fmt.Errorf("screenshot render failed")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
