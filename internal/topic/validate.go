package topic

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ValidateTopic checks that topic is usable as a publish topic.
func ValidateTopic(topic string) error {
	if topic == "" {
		return fmt.Errorf("%w: empty", ErrInvalidTopic)
	}
	if HasWildcard(topic) {
		return fmt.Errorf("%w: %q contains a wildcard", ErrInvalidTopic, topic)
	}
	if reason := badChars(topic); reason != "" {
		return fmt.Errorf("%w: %q %s", ErrInvalidTopic, topic, reason)
	}
	return nil
}

// ValidateFilter checks that filter is a well-formed subscription filter.
//
// "#" may only appear as the whole final level and "+" only as a whole level.
func ValidateFilter(filter string) error {
	if filter == "" {
		return fmt.Errorf("%w: empty", ErrInvalidFilter)
	}
	if reason := badChars(filter); reason != "" {
		return fmt.Errorf("%w: %q %s", ErrInvalidFilter, filter, reason)
	}

	levels := strings.Split(filter, separator)
	for i, level := range levels {
		switch {
		case level == MultiLevel:
			if i != len(levels)-1 {
				return fmt.Errorf("%w: %q has # before the last level", ErrInvalidFilter, filter)
			}
		case level == SingleLevel:
		case strings.ContainsAny(level, SingleLevel+MultiLevel):
			return fmt.Errorf("%w: %q has a wildcard inside level %q", ErrInvalidFilter, filter, level)
		}
	}
	return nil
}

// HasWildcard reports whether name contains a wildcard character.
func HasWildcard(name string) bool {
	return strings.ContainsAny(name, SingleLevel+MultiLevel)
}

// badChars returns a description of the first character problem in s,
// or "" if there is none.
func badChars(s string) string {
	if !utf8.ValidString(s) {
		return "is not valid UTF-8"
	}
	if strings.ContainsRune(s, 0) {
		return "contains NUL"
	}
	return ""
}
