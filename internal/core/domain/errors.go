package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("invalid request")
	ErrInvalidMove       = fmt.Errorf("%w: source and destination must differ", ErrValidation)
	ErrDuplicateItem     = errors.New("item already exists at location")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrNotFound          = errors.New("stock entry not found")

	// ErrLoad is returned when the backing store cannot be read or holds malformed rows.
	ErrLoad = errors.New("failed to load from backing store")
	// ErrPersistenceWrite means the change is applied in memory but not yet durable.
	ErrPersistenceWrite = errors.New("failed to persist change")
	// ErrBatchAborted marks batch lines that were never attempted because an earlier line hit a persistence failure.
	ErrBatchAborted = errors.New("batch aborted before this line")
)
