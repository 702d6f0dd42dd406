package topic

import "errors"

var (
	// ErrInvalidTopic is returned when a publish topic is empty, contains a
	// wildcard or contains a NUL character.
	ErrInvalidTopic = errors.New("invalid topic")

	// ErrInvalidFilter is returned when a subscription filter is malformed.
	ErrInvalidFilter = errors.New("invalid topic filter")
)
