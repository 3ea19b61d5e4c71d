package idgen

import "github.com/google/uuid"

// NewFunc produces a new globally unique identifier; it is a variable so
// tests can stub it with a deterministic sequence.
var NewFunc = func() string { return uuid.New().String() }

// New returns a new globally unique identifier as a string.
func New() string { return NewFunc() }
