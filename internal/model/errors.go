package model

import "errors"

// Input errors. They are returned synchronously and never retried.
var (
	ErrInvalidTaskDescription = errors.New("invalid task description")
	ErrUnknownWorkflow        = errors.New("unknown workflow")
	ErrUnknownPlatform        = errors.New("unknown platform")
	ErrDuplicateID            = errors.New("duplicate id")
)

// ErrInsufficientPlatforms is returned when no platform is available to plan against.
var ErrInsufficientPlatforms = errors.New("insufficient platforms")

// ErrInvalidTransition is returned when a step or workflow status transition is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")
