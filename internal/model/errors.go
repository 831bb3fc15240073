package model

import (
	"errors"
)

var (
	ErrInvalidPort = errors.New("invalid port")
	ErrInvalidHost = errors.New("invalid host")
)
