package repository

import "errors"

var (
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a conditional update matched no row because
	// another writer changed it first.
	ErrConflict = errors.New("record was modified concurrently")
	// ErrUndecryptable means a stored credential could not be decrypted with the current key.
	ErrUndecryptable = errors.New("stored credential cannot be decrypted")
)
