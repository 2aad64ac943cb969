package contract

import "errors"

var (
	ErrModelInvoke      = errors.New("model invoke failed")
	ErrUnauthorized     = errors.New("completion service rejected credentials")
	ErrEndpointNotFound = errors.New("completion endpoint not found")
	ErrServiceInternal  = errors.New("completion service internal error")
	ErrMalformedOutput  = errors.New("model output is not valid structured data")
	ErrValidation       = errors.New("validation failed")
)
