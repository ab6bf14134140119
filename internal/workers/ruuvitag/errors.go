package ruuvitag

import "errors"

// ErrNoResolver is returned by New when Options.Resolver is nil.
var ErrNoResolver = errors.New("ruuvitag: resolver is required")
