package repository

import "errors"

// ErrNotFound is returned when a row does not exist or is not owned by the caller
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when registering an email that is already taken
var ErrEmailExists = errors.New("email already exists")
