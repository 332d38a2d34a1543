package validator

import "errors"

// ErrInvalidRecord wraps every validation failure returned by ValidationResult.Err.
var ErrInvalidRecord = errors.New("invalid record")
