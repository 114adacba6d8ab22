package drafts

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrValidation     = errors.New("validation error")
	ErrSessionExpired = errors.New("draft session expired")
)
