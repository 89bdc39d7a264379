package service

import (
	"errors"
	"fmt"

	"github.com/pageguard/pageguard/internal/quota"
)

// ErrInvalidEmail rejects breach checks whose input is not even
// structurally an email address. No external call is made.
var ErrInvalidEmail = errors.New("invalid email address")

// ErrHistoryDisabled is returned when scan history was not configured.
var ErrHistoryDisabled = errors.New("scan history is not enabled")

// QuotaExceededError reports an exhausted daily budget. It carries the
// configured limit so the edge can tell users what the cap is.
type QuotaExceededError struct {
	Class quota.Class
	Limit int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("daily %s limit reached (%d/day)", e.Class, e.Limit)
}
