package shared

import "errors"

var (
	// Configuration errors
	ErrMissingConfig      = errors.New("configuration not found")
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrMissingCredentials = errors.New("missing credentials")

	// Authentication errors
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrTokenExpired       = errors.New("session token expired")
	ErrSessionExpired     = errors.New("session expired due to inactivity")

	// Catalog and proxy errors
	ErrAPIRequest         = errors.New("catalog request failed")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrUpstreamNotFound   = errors.New("upstream resource not found")
	ErrOffline            = errors.New("offline")
	ErrWorkerClosed       = errors.New("offline worker closed")

	// Persistence errors
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Input validation errors
	ErrInvalidInput    = errors.New("invalid input")
	ErrMissingArgument = errors.New("missing required argument")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidFlag     = errors.New("invalid flag value")
)
