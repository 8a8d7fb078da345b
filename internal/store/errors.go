package store

import "errors"

var ErrEmptyID = errors.New("oauthId must not be empty")
