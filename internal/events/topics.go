package events

import (
	"fmt"
	"strings"

	"github.com/caddelle/ops-backend/pkg/enums"
)

// TopicTable maps event types to external broker topics. It is configuration
// only: entries come from the environment at boot and never change after.
// Resolution is a plain lookup; a miss means the event stays internal.
type TopicTable struct {
	topics map[enums.EventType]string
}

func NewTopicTable(entries map[string]string) (*TopicTable, error) {
	topics := make(map[enums.EventType]string, len(entries))
	for rawType, rawTopic := range entries {
		eventType := enums.EventType(strings.TrimSpace(rawType))
		topic := strings.TrimSpace(rawTopic)
		if eventType == "" || topic == "" {
			return nil, fmt.Errorf("topic mapping %q=%q is malformed", rawType, rawTopic)
		}
		topics[eventType] = topic
	}
	return &TopicTable{topics: topics}, nil
}

func (t *TopicTable) Resolve(eventType enums.EventType) (string, bool) {
	topic, ok := t.topics[eventType]
	return topic, ok
}

func (t *TopicTable) Len() int {
	return len(t.topics)
}
