package phonelist

import (
	"github.com/pkg/errors"
)

var (
	// ErrDuplicatePhone indicates a single phone number being added is already
	// in the list
	ErrDuplicatePhone = errors.New("phone number already exists")

	// ErrRetryExhausted indicates every attempt at a mutation lost a race with a
	// concurrent writer
	ErrRetryExhausted = errors.New("failed to update list after multiple attempts")

	// ErrTimeout indicates the mutation was abandoned because its context was
	// cancelled or expired
	ErrTimeout = errors.New("timed out updating list")
)
