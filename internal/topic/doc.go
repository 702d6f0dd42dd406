// Package topic implements MQTT topic filter matching and validation.
//
// Filters are split on "/" into levels. "+" matches exactly one non-empty
// level and "#" matches the remainder of the topic, including zero levels:
//
//	topic.Match("sensors/+/temp", "sensors/kitchen/temp") // true
//	topic.Match("sensors/#", "sensors")                   // true
//	topic.Match("sensors/+", "sensors")                   // false
//
// Match is a pure function and never validates its arguments. Use
// ValidateFilter before subscribing and ValidateTopic before publishing.
package topic
