package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrTaskNotFound     = errors.New("task not found")
	ErrPriceUnavailable = errors.New("price unavailable")
	ErrAllSourcesFailed = errors.New("all balance sources failed")
	ErrInvalidRequest   = errors.New("invalid request parameters")
	ErrRateLimited      = errors.New("rate limited")
	ErrUnauthorized     = errors.New("unauthorized")
)
