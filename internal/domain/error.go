package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrAlreadyPurchased   = errors.New("item already purchased")
	ErrUserInactive       = errors.New("user is inactive")
	ErrItemInactive       = errors.New("item is inactive")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrVerificationFailed = errors.New("payment verification failed")

	// Infrastructure errors
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrLockNotAcquired    = errors.New("lock not acquired")
)
