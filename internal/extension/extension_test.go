package extension

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pushbridge/internal/logger"
	"pushbridge/internal/netservice"
	"pushbridge/internal/registration"
	"pushbridge/internal/statehub"
	"pushbridge/pkg/events"
)

type fakeNetwork struct {
	mu       sync.Mutex
	requests []netservice.Request
}

func (f *fakeNetwork) Submit(ctx context.Context, req netservice.Request, done netservice.Completion) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
}

func (f *fakeNetwork) sent() []netservice.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]netservice.Request, len(f.requests))
	copy(out, f.requests)
	return out
}

func configuredHub() *statehub.Hub {
	hub := statehub.New()
	hub.SetConfiguration(map[string]interface{}{
		events.StateKeyIntegrationKey:  "key-123",
		events.StateKeyMarketingServer: "mkt.example.com",
		events.StateKeyTrackingServer:  "track.example.com",
		events.StateKeyPrivacyStatus:   "optedin",
	})
	return hub
}

func newTestExtension(hub *statehub.Hub, network *fakeNetwork) *Extension {
	return New(hub, network, registration.NewMemoryStore(), logger.NopLogger())
}

func clickEvent(id, deliveryID, broadlogID string) *events.Event {
	return events.NewBuilder(events.TypeRequestContent).
		WithID(id).
		WithPayloadField(events.KeyTrackClick, true).
		WithPayloadField(events.KeyTrackInfo, map[string]interface{}{
			events.KeyDeliveryID: deliveryID,
			events.KeyBroadlogID: broadlogID,
		}).
		Build()
}

func TestProcessPendingConfiguration(t *testing.T) {
	network := &fakeNetwork{}
	x := newTestExtension(statehub.New(), network)
	x.Register()
	defer x.Unregister()

	err := x.Process(context.Background(), clickEvent("e1", "D1", "B1"))
	assert.ErrorIs(t, err, ErrStatePending)
	assert.Empty(t, network.sent())
}

func TestProcessNotRegistered(t *testing.T) {
	network := &fakeNetwork{}
	x := newTestExtension(configuredHub(), network)

	err := x.Process(context.Background(), clickEvent("e1", "D1", "B1"))
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestProcessDispatchesTracking(t *testing.T) {
	network := &fakeNetwork{}
	x := newTestExtension(configuredHub(), network)
	x.Register()

	require.NoError(t, x.Process(context.Background(), clickEvent("e1", "D1", "B1")))
	x.Unregister()

	sent := network.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "GET", sent[0].Method)
	assert.Equal(t, "https://track.example.com/r/?id=hB1,D1,2", sent[0].URL)
}

func TestProcessDispatchesReceiveTracking(t *testing.T) {
	network := &fakeNetwork{}
	x := newTestExtension(configuredHub(), network)
	x.Register()

	e := events.NewBuilder(events.TypeRequestContent).
		WithID("e1").
		WithPayloadField(events.KeyTrackReceive, true).
		WithPayloadField(events.KeyTrackInfo, map[string]interface{}{
			events.KeyDeliveryID: "D2",
			events.KeyBroadlogID: "B2",
		}).
		Build()

	require.NoError(t, x.Process(context.Background(), e))
	x.Unregister()

	sent := network.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "https://track.example.com/r/?id=hB2,D2,1", sent[0].URL)
}

func TestProcessDispatchesRegistration(t *testing.T) {
	network := &fakeNetwork{}
	hub := configuredHub()
	hub.SetLifecycle(map[string]interface{}{"osversion": "17.2"})
	x := newTestExtension(hub, network)
	x.Register()

	e := events.NewBuilder(events.TypeRequestContent).
		WithID("e1").
		WithPayloadField(events.KeyRegisterDevice, true).
		WithPayloadField(events.KeyDeviceToken, "tok123").
		Build()

	require.NoError(t, x.Process(context.Background(), e))
	x.Unregister()

	sent := network.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "POST", sent[0].Method)
	assert.Equal(t, "https://mkt.example.com/nms/mobile/1/registerDevice.jssp", sent[0].URL)
	assert.Contains(t, string(sent[0].Body), "registrationToken=tok123")
	assert.Contains(t, string(sent[0].Body), "osversion=17.2")
}

func TestProcessIgnoresUnclassifiedEvents(t *testing.T) {
	network := &fakeNetwork{}
	x := newTestExtension(configuredHub(), network)
	x.Register()

	e := events.NewBuilder(events.TypeRequestContent).
		WithID("e1").
		WithPayloadField("unrelated", true).
		Build()

	require.NoError(t, x.Process(context.Background(), e))
	x.Unregister()

	assert.Empty(t, network.sent())
}

func TestProcessConfigurationResponseIsNoop(t *testing.T) {
	network := &fakeNetwork{}
	x := newTestExtension(configuredHub(), network)
	x.Register()

	e := events.NewBuilder(events.TypeConfigurationResponse).WithID("e1").Build()

	require.NoError(t, x.Process(context.Background(), e))
	x.Unregister()

	assert.Empty(t, network.sent())
}

func TestProcessPreservesArrivalOrder(t *testing.T) {
	network := &fakeNetwork{}
	x := newTestExtension(configuredHub(), network)
	x.Register()

	deliveries := []string{"D1", "D2", "D3", "D4", "D5"}
	for i, d := range deliveries {
		e := clickEvent(string(rune('a'+i)), d, "B1")
		require.NoError(t, x.Process(context.Background(), e))
	}
	x.Unregister()

	sent := network.sent()
	require.Len(t, sent, len(deliveries))
	for i, d := range deliveries {
		assert.Contains(t, sent[i].URL, ","+d+",")
	}
}

func TestUnregisterStopsProcessing(t *testing.T) {
	network := &fakeNetwork{}
	x := newTestExtension(configuredHub(), network)
	x.Register()
	x.Unregister()

	err := x.Process(context.Background(), clickEvent("e1", "D1", "B1"))
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestRunTaskAfterUnregisterIsDropped(t *testing.T) {
	x := newTestExtension(configuredHub(), &fakeNetwork{})
	x.Register()
	x.Unregister()

	assert.NotPanics(t, func() {
		x.RunTask(func() {
			t.Fatal("task must not run after unregister")
		})
	})
}

func TestRegisterIdempotent(t *testing.T) {
	x := newTestExtension(configuredHub(), &fakeNetwork{})
	x.Register()
	x.Register()
	x.Unregister()

	assert.NotPanics(t, func() {
		x.Unregister()
	})
}

func TestProcessNilEvent(t *testing.T) {
	x := newTestExtension(configuredHub(), &fakeNetwork{})
	x.Register()
	defer x.Unregister()

	assert.NoError(t, x.Process(context.Background(), nil))
}
