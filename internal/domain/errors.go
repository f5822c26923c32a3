package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrValidation          = errors.New("invalid request")
	ErrConsentRequired     = errors.New("consent required")
	ErrPurchaseRequired    = errors.New("purchase required")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrProviderFailure     = errors.New("provider failure")
	ErrStorageFailure      = errors.New("storage failure")
)
