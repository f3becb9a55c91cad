package service

import (
	"errors"
	"fmt"

	"figmist-store/internal/localstore"
	"figmist-store/internal/store"
)

var (
	ErrNotFound           = store.ErrProductNotFound
	ErrTransport          = errors.New("database unavailable")
	ErrQuotaExceeded      = localstore.ErrQuotaExceeded
	ErrValidation         = errors.New("validation failed")
	ErrUnauthorized       = errors.New("admin session required")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmptyCart          = errors.New("cart is empty")

	ErrSizeRequired   = fmt.Errorf("%w: please select a size", ErrValidation)
	ErrMissingContact = fmt.Errorf("%w: please fill in your name and phone number", ErrValidation)
	ErrImageTooLarge  = fmt.Errorf("%w: image too large", ErrValidation)
)
