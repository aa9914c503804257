package timeline

import "errors"

// ErrNotFound marks lookups against unknown worlds, markers, or operations.
// Callers translate it upstream (the API layer maps it to a 404).
var ErrNotFound = errors.New("not found")

// ErrValidation marks rejected writes: a closed-set enum violation or an
// unsupported operation type. Nothing reaches the log once this fires.
var ErrValidation = errors.New("validation failed")

// errSnapshotShape marks a cached snapshot whose document cannot be decoded.
// It never escapes the package: the reader falls back to full replay.
var errSnapshotShape = errors.New("invalid snapshot shape")
