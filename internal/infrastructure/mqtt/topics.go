package mqtt

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// maxTopicLength is the MQTT limit on topic length in bytes.
const maxTopicLength = 65535

// ValidateTopicFilter checks a subscription filter.
//
// Rules:
//   - Non-empty, valid UTF-8, no NUL, at most 65535 bytes
//   - "+" must occupy a whole level
//   - "#" must occupy the whole last level
func ValidateTopicFilter(filter string) error {
	if err := validateTopicCommon(filter); err != nil {
		return err
	}

	levels := strings.Split(filter, "/")
	for i, level := range levels {
		if strings.Contains(level, "+") && level != "+" {
			return fmt.Errorf("%w: %q: '+' must occupy a whole level", ErrInvalidTopic, filter)
		}
		if strings.Contains(level, "#") && (level != "#" || i != len(levels)-1) {
			return fmt.Errorf("%w: %q: '#' must be the last level", ErrInvalidTopic, filter)
		}
	}
	return nil
}

// ValidatePublishTopic checks a topic name used for publishing.
// Wildcards are not allowed.
func ValidatePublishTopic(topic string) error {
	if err := validateTopicCommon(topic); err != nil {
		return err
	}
	if strings.ContainsAny(topic, "+#") {
		return fmt.Errorf("%w: %q: wildcards not allowed when publishing", ErrInvalidTopic, topic)
	}
	return nil
}

func validateTopicCommon(topic string) error {
	switch {
	case topic == "":
		return fmt.Errorf("%w: topic cannot be empty", ErrInvalidTopic)
	case len(topic) > maxTopicLength:
		return fmt.Errorf("%w: topic exceeds %d bytes", ErrInvalidTopic, maxTopicLength)
	case !utf8.ValidString(topic):
		return fmt.Errorf("%w: topic is not valid UTF-8", ErrInvalidTopic)
	case strings.ContainsRune(topic, 0):
		return fmt.Errorf("%w: topic contains NUL", ErrInvalidTopic)
	}
	return nil
}
