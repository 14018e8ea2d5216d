package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound            = errors.New("entity not found")
	ErrBatchNotFound       = errors.New("batch not found")
	ErrOrderNotFound       = errors.New("order not found")
	ErrAlreadyOwned        = errors.New("user already owns this batch")
	ErrAlreadyExists       = errors.New("entity already exists")
	ErrNotAuthenticated    = errors.New("caller is not authenticated")
	ErrProviderUnavailable = errors.New("payment provider request failed")
	ErrInvalidSignature    = errors.New("signature verification failed")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrInvalidExecContext  = errors.New("invalid sql execution context")
	ErrOperationFailed     = errors.New("storage operation failed")
	ErrReadDatabaseRow     = errors.New("failed to read database row")
)
