package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and collaborator clients
// return these (optionally wrapped) so services and workers can translate
// them into outcomes without string matching.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store, or the feed knows nothing
// - ErrConflict: unique constraint hit (duplicate breach, concurrent cache write)
// - ErrUnauthorized: collaborator rejected our credentials; fatal config error
// - ErrRateLimited: feed throttled us after the single cooldown retry
// - ErrInvalidState: entity in wrong state for requested operation
// - ErrUnavailable: collaborator or resource temporarily unavailable
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrRateLimited  = errors.New("rate limited")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
