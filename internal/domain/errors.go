package domain

import "errors"

// Failure classes. Stages wrap these with context and recover from them at
// their boundary; callers match with errors.Is.
var (
	ErrNetworkTransient     = errors.New("transient network failure")
	ErrNoCycleAvailable     = errors.New("no complete cycle available")
	ErrNotPublished         = errors.New("remote file not published")
	ErrMalformedMessage     = errors.New("malformed grid message")
	ErrNoMatchingParameters = errors.New("no matching parameters")
	ErrPlaceAssociation     = errors.New("no place associated with grid point")
	ErrPersistence          = errors.New("persistence failure")
	ErrLockHeld             = errors.New("run lock held by another process")
	ErrPlaceNotFound        = errors.New("place not found")
)
