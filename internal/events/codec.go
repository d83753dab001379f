package events

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/caddelle/ops-backend/pkg/enums"
)

// DecoderFunc turns an opaque ledger payload into its typed shape.
type DecoderFunc func(payload json.RawMessage) (any, error)

// Registry maps the event type discriminant to its payload decoder. The event
// hierarchy is a tagged union: one tag, one schema, no subclassing.
type Registry struct {
	mtx      sync.RWMutex
	decoders map[enums.EventType]DecoderFunc
}

func NewRegistry() *Registry {
	return &Registry{decoders: make(map[enums.EventType]DecoderFunc)}
}

func (r *Registry) Register(eventType enums.EventType, decoder DecoderFunc) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.decoders[eventType] = decoder
}

func (r *Registry) Decode(eventType enums.EventType, payload json.RawMessage) (any, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	if decoder, ok := r.decoders[eventType]; ok {
		return decoder(payload)
	}
	return nil, fmt.Errorf("decoder not registered for %s", eventType)
}
