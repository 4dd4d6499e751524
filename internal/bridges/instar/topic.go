package instar

import (
	"strings"

	"github.com/nerrad567/gray-logic-instar/internal/infrastructure/mqtt"
)

// minTopicParts is root, deviceId, "status" and "alarm".
const minTopicParts = 4

// Topic is an accepted alarm topic.
type Topic struct {
	// DeviceID is the second topic segment, used verbatim.
	DeviceID string

	// Triggered is set for the ".../status/alarm/triggered" variant.
	// Both variants carry the same payload schema.
	Triggered bool
}

// ParseTopic accepts "<root>/<deviceId>/status/alarm[/triggered][/...]".
// Anything else is rejected with ok == false. Segments after the fifth are
// ignored and the root segment is not checked; the subscription pattern
// already scopes it.
func ParseTopic(topic string) (Topic, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) < minTopicParts {
		return Topic{}, false
	}
	if parts[2] != mqtt.InstarSegmentStatus || parts[3] != mqtt.InstarSegmentAlarm {
		return Topic{}, false
	}
	if parts[1] == "" {
		return Topic{}, false
	}

	return Topic{
		DeviceID:  parts[1],
		Triggered: len(parts) > minTopicParts && parts[4] == mqtt.InstarSegmentTriggered,
	}, true
}
