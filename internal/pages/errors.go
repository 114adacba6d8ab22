package pages

import "errors"

var ErrNotFound = errors.New("not found")
