package registration

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pushbridge/internal/configuration"
	"pushbridge/internal/constants"
	"pushbridge/internal/logger"
	"pushbridge/internal/netservice"
	"pushbridge/pkg/events"
)

type fakeNetwork struct {
	mu       sync.Mutex
	requests []netservice.Request
	response *netservice.Response
}

func (f *fakeNetwork) Submit(ctx context.Context, req netservice.Request, done netservice.Completion) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.response != nil && done != nil {
		done(*f.response)
	}
}

func (f *fakeNetwork) sent() []netservice.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]netservice.Request, len(f.requests))
	copy(out, f.requests)
	return out
}

type inlineRunner struct{}

func (inlineRunner) RunTask(task func()) {
	task()
}

type failingStore struct {
	Store
	getErr error
	setErr error
}

func (s *failingStore) Get(ctx context.Context, key string) (string, bool, error) {
	if s.getErr != nil {
		return "", false, s.getErr
	}
	return s.Store.Get(ctx, key)
}

func (s *failingStore) Set(ctx context.Context, key, value string) error {
	if s.setErr != nil {
		return s.setErr
	}
	return s.Store.Set(ctx, key, value)
}

func optedInSnapshot() configuration.Snapshot {
	return configuration.Snapshot{
		IntegrationKey:  "key-123",
		MarketingServer: "mkt.example.com",
		Timeout:         constants.DefaultRequestTimeout,
		Privacy:         configuration.PrivacyOptedIn,
	}
}

func registerEvent(token string) *events.Event {
	b := events.NewBuilder(events.TypeRequestContent).
		WithID("e1").
		WithPayloadField(events.KeyRegisterDevice, true)
	if token != "" {
		b = b.WithPayloadField(events.KeyDeviceToken, token)
	}
	return b.Build()
}

func newTestService(network *fakeNetwork, store Store) *Service {
	return NewService(network, store, inlineRunner{}, logger.NopLogger())
}

func TestHandleEventGating(t *testing.T) {
	tests := []struct {
		name     string
		event    *events.Event
		snapshot configuration.Snapshot
	}{
		{
			name:     "missing device token",
			event:    registerEvent(""),
			snapshot: optedInSnapshot(),
		},
		{
			name:  "missing integration key",
			event: registerEvent("tok123"),
			snapshot: configuration.Snapshot{
				MarketingServer: "mkt.example.com",
				Privacy:         configuration.PrivacyOptedIn,
			},
		},
		{
			name:  "missing marketing server",
			event: registerEvent("tok123"),
			snapshot: configuration.Snapshot{
				IntegrationKey: "key-123",
				Privacy:        configuration.PrivacyOptedIn,
			},
		},
		{
			name:  "privacy opted out",
			event: registerEvent("tok123"),
			snapshot: configuration.Snapshot{
				IntegrationKey:  "key-123",
				MarketingServer: "mkt.example.com",
				Privacy:         configuration.PrivacyOptedOut,
			},
		},
		{
			name:  "privacy unknown",
			event: registerEvent("tok123"),
			snapshot: configuration.Snapshot{
				IntegrationKey:  "key-123",
				MarketingServer: "mkt.example.com",
				Privacy:         configuration.PrivacyUnknown,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			network := &fakeNetwork{}
			svc := newTestService(network, NewMemoryStore())

			svc.HandleEvent(context.Background(), tt.event, tt.snapshot, nil)

			assert.Empty(t, network.sent(), "no network call expected")
		})
	}
}

func TestHandleEventBuildsRequest(t *testing.T) {
	network := &fakeNetwork{}
	svc := newTestService(network, NewMemoryStore())

	lifecycle := map[string]interface{}{
		"osversion": "17.2",
		"appid":     "com.example.app",
	}
	svc.HandleEvent(context.Background(), registerEvent("tok123"), optedInSnapshot(), lifecycle)

	sent := network.sent()
	require.Len(t, sent, 1)

	req := sent[0]
	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "https://mkt.example.com/nms/mobile/1/registerDevice.jssp", req.URL)
	assert.Equal(t, constants.ContentTypeURLEncoded, req.Headers[constants.HeaderContentType])
	assert.Equal(t, strconv.Itoa(len(req.Body)), req.Headers[constants.HeaderContentLength])
	assert.Equal(t, constants.DefaultRequestTimeout, req.ConnectTimeout)
	assert.Equal(t, constants.DefaultRequestTimeout, req.ReadTimeout)

	body := string(req.Body)
	assert.Contains(t, body, "registrationToken=tok123")
	assert.Contains(t, body, "mobileAppId=key-123")
	assert.Contains(t, body, "osversion=17.2")
	assert.Contains(t, body, "appid=com.example.app")
}

func TestHandleEventDedup(t *testing.T) {
	store := NewMemoryStore()
	network := &fakeNetwork{response: &netservice.Response{Code: 200}}
	svc := newTestService(network, store)

	svc.HandleEvent(context.Background(), registerEvent("tok123"), optedInSnapshot(), nil)
	require.Len(t, network.sent(), 1)

	// Identical info: dedup suppresses the second call.
	svc.HandleEvent(context.Background(), registerEvent("tok123"), optedInSnapshot(), nil)
	assert.Len(t, network.sent(), 1)

	// Changing any one field issues a new call.
	svc.HandleEvent(context.Background(), registerEvent("tok456"), optedInSnapshot(), nil)
	assert.Len(t, network.sent(), 2)

	changedServer := optedInSnapshot()
	changedServer.MarketingServer = "mkt2.example.com"
	svc.HandleEvent(context.Background(), registerEvent("tok456"), changedServer, nil)
	assert.Len(t, network.sent(), 3)

	changedKey := optedInSnapshot()
	changedKey.IntegrationKey = "key-456"
	svc.HandleEvent(context.Background(), registerEvent("tok123"), changedKey, nil)
	assert.Len(t, network.sent(), 4)
}

func TestHandleEventFailureDoesNotMarkDedup(t *testing.T) {
	store := NewMemoryStore()
	network := &fakeNetwork{response: &netservice.Response{Code: 500}}
	svc := newTestService(network, store)

	svc.HandleEvent(context.Background(), registerEvent("tok123"), optedInSnapshot(), nil)
	require.Len(t, network.sent(), 1)

	_, found, err := store.Get(context.Background(), constants.RegistrationHashKey)
	require.NoError(t, err)
	assert.False(t, found)

	// Same info is retried on the next event because the first attempt
	// never succeeded.
	svc.HandleEvent(context.Background(), registerEvent("tok123"), optedInSnapshot(), nil)
	assert.Len(t, network.sent(), 2)
}

func TestHandleEventTransportErrorDoesNotMarkDedup(t *testing.T) {
	store := NewMemoryStore()
	network := &fakeNetwork{response: &netservice.Response{Err: errors.New("connection refused")}}
	svc := newTestService(network, store)

	svc.HandleEvent(context.Background(), registerEvent("tok123"), optedInSnapshot(), nil)
	require.Len(t, network.sent(), 1)

	_, found, _ := store.Get(context.Background(), constants.RegistrationHashKey)
	assert.False(t, found)
}

func TestHandleEventSuccessPersistsHash(t *testing.T) {
	store := NewMemoryStore()
	network := &fakeNetwork{response: &netservice.Response{Code: 200}}
	svc := newTestService(network, store)

	svc.HandleEvent(context.Background(), registerEvent("tok123"), optedInSnapshot(), nil)

	value, found, err := store.Get(context.Background(), constants.RegistrationHashKey)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, Hash("tok123", "key-123", "mkt.example.com"), value)
}

func TestHandleEventStoreReadErrorFailsOpen(t *testing.T) {
	store := &failingStore{
		Store:  NewMemoryStore(),
		getErr: fmt.Errorf("redis GET failed: connection refused"),
	}
	network := &fakeNetwork{}
	svc := newTestService(network, store)

	svc.HandleEvent(context.Background(), registerEvent("tok123"), optedInSnapshot(), nil)

	assert.Len(t, network.sent(), 1, "a broken store must not suppress registration")
}
