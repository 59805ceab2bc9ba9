package statehub

import (
	"sync"

	"pushbridge/pkg/events"
)

// Hub is the in-memory shared-state service the bridge supplies to the
// extension. Configuration state is fed from configuration-response
// events; lifecycle state is set directly by the embedding application.
// Readers always receive copies, so a published state is effectively
// immutable.
type Hub struct {
	mu               sync.RWMutex
	configuration    map[string]interface{}
	configurationSet bool
	lifecycle        map[string]interface{}
	lifecycleSet     bool
}

func New() *Hub {
	return &Hub{}
}

// Apply folds an event into the hub. Only configuration-response events
// change state; everything else is ignored.
func (h *Hub) Apply(e *events.Event) {
	if e == nil || e.Type != events.TypeConfigurationResponse {
		return
	}
	h.SetConfiguration(e.Payload)
}

func (h *Hub) SetConfiguration(state map[string]interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.configuration = copyState(state)
	h.configurationSet = true
}

func (h *Hub) SetLifecycle(state map[string]interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lifecycle = copyState(state)
	h.lifecycleSet = true
}

func (h *Hub) ConfigurationState(e *events.Event) (map[string]interface{}, events.Status) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.configurationSet {
		return nil, events.StatusPending
	}
	return copyState(h.configuration), events.StatusSet
}

func (h *Hub) LifecycleState(e *events.Event) (map[string]interface{}, events.Status) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.lifecycleSet {
		return nil, events.StatusPending
	}
	return copyState(h.lifecycle), events.StatusSet
}

func copyState(state map[string]interface{}) map[string]interface{} {
	if state == nil {
		return nil
	}
	out := make(map[string]interface{}, len(state))
	for k, v := range state {
		out[k] = v
	}
	return out
}

var _ events.StateProvider = (*Hub)(nil)
