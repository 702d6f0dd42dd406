package topic

import "strings"

const (
	// SingleLevel is the single-level wildcard.
	SingleLevel = "+"

	// MultiLevel is the multi-level wildcard.
	MultiLevel = "#"

	separator = "/"
)

// Match reports whether topic matches filter.
//
// A "#" level matches the rest of the topic wherever it appears in the
// filter. Without one, filter and topic must have the same number of levels.
func Match(filter, topic string) bool {
	if filter == topic {
		return true
	}

	filterLevels := strings.Split(filter, separator)
	topicLevels := strings.Split(topic, separator)

	for i, level := range filterLevels {
		if level == MultiLevel {
			return true
		}
		if i >= len(topicLevels) {
			return false
		}
		if level == SingleLevel {
			if topicLevels[i] == "" {
				return false
			}
			continue
		}
		if level != topicLevels[i] {
			return false
		}
	}

	return len(filterLevels) == len(topicLevels)
}
