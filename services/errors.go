package services

import "errors"

// Sentinel errors shared across services. Handlers map these onto HTTP
// statuses; everything else surfaces as a 500.
var (
	// ErrNotFound means the requested record does not exist or belongs to another user
	ErrNotFound = errors.New("record not found")

	// ErrPlanSubmitted means the plan already has a generated schedule and cannot change
	ErrPlanSubmitted = errors.New("plan has already been submitted")

	// ErrPlanHasNoTopics means schedule generation was requested for a plan
	// with no subjects or no topics to distribute
	ErrPlanHasNoTopics = errors.New("plan has no topics to schedule")

	// ErrUpstreamUnavailable means the proposal API could not be reached or timed out
	ErrUpstreamUnavailable = errors.New("schedule proposal service unavailable")

	// ErrUpstreamMalformed means the proposal API answered, but with no usable JSON
	ErrUpstreamMalformed = errors.New("schedule proposal response is malformed")

	// ErrNoValidEntries means every proposed entry was rejected during validation
	ErrNoValidEntries = errors.New("no valid schedule entries in proposal")

	// ErrAlreadyFinalized means a terminal entry was asked to move to a
	// different terminal state
	ErrAlreadyFinalized = errors.New("entry already finalized")
)
