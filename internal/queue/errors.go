package queue

import "errors"

// ErrNotFound indicates the referenced job or item does not exist.
var ErrNotFound = errors.New("not found")

// ErrNoPaperIDs indicates an enqueue request carried no paper IDs.
var ErrNoPaperIDs = errors.New("no paper ids provided")

// ErrUnknownJobType indicates an enqueue request carried an unrecognized job type.
var ErrUnknownJobType = errors.New("unknown job type")

// ErrInvalidPaperID indicates an enqueue request carried a non-positive paper ID.
var ErrInvalidPaperID = errors.New("invalid paper id")
