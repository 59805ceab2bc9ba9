package ingest

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pushbridge/internal/extension"
	"pushbridge/internal/logger"
	"pushbridge/internal/netservice"
	"pushbridge/internal/registration"
	"pushbridge/internal/statehub"
	"pushbridge/pkg/events"
)

type fakeSink struct {
	err    error
	events []*events.Event
}

func (s *fakeSink) Process(ctx context.Context, e *events.Event) error {
	s.events = append(s.events, e)
	return s.err
}

type fakeApplier struct {
	applied []*events.Event
}

func (a *fakeApplier) Apply(e *events.Event) {
	a.applied = append(a.applied, e)
}

func newTestRouter(sink Sink, applier StateApplier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(sink, applier, logger.NopLogger()).RegisterRoutes(router)
	return router
}

func postJSON(router *gin.Engine, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/events", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestPostEventAccepted(t *testing.T) {
	sink := &fakeSink{}
	applier := &fakeApplier{}
	router := newTestRouter(sink, applier)

	w := postJSON(router, `{"source":"sdk","payload":{"trackclick":true}}`)

	assert.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, sink.events, 1)
	assert.Equal(t, events.TypeRequestContent, sink.events[0].Type)
	assert.Equal(t, "sdk", sink.events[0].Source)
	assert.NotEmpty(t, sink.events[0].ID)
	assert.True(t, sink.events[0].BoolFlag(events.KeyTrackClick))
	assert.Len(t, applier.applied, 1)
}

func TestPostEventExplicitType(t *testing.T) {
	sink := &fakeSink{}
	applier := &fakeApplier{}
	router := newTestRouter(sink, applier)

	w := postJSON(router, `{"type":"configuration_response","payload":{"campaign.server":"mkt.example.com"}}`)

	assert.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, sink.events, 1)
	assert.Equal(t, events.TypeConfigurationResponse, sink.events[0].Type)
}

func TestPostEventInvalidBody(t *testing.T) {
	sink := &fakeSink{}
	router := newTestRouter(sink, &fakeApplier{})

	w := postJSON(router, `{not json`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, sink.events)
}

func TestPostEventStatePending(t *testing.T) {
	sink := &fakeSink{err: extension.ErrStatePending}
	router := newTestRouter(sink, &fakeApplier{})

	w := postJSON(router, `{"payload":{"trackclick":true}}`)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "STATE_PENDING")
}

func TestPostEventSinkError(t *testing.T) {
	sink := &fakeSink{err: extension.ErrNotRegistered}
	router := newTestRouter(sink, &fakeApplier{})

	w := postJSON(router, `{"payload":{"trackclick":true}}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

type capturingNetwork struct {
	submitted chan context.Context
}

func (n *capturingNetwork) Submit(ctx context.Context, req netservice.Request, done netservice.Completion) {
	n.submitted <- ctx
	if done != nil {
		done(netservice.Response{Code: http.StatusOK})
	}
}

// The dispatch triggered by an ingested event runs after the HTTP response
// is written; its context must not die with the request.
func TestPostEventDispatchOutlivesResponse(t *testing.T) {
	gin.SetMode(gin.TestMode)

	network := &capturingNetwork{submitted: make(chan context.Context, 1)}
	hub := statehub.New()
	hub.SetConfiguration(map[string]interface{}{
		events.StateKeyTrackingServer: "track.example.com",
		events.StateKeyPrivacyStatus:  "optedin",
	})

	ext := extension.New(hub, network, registration.NewMemoryStore(), logger.NopLogger())
	ext.Register()
	defer ext.Unregister()

	router := gin.New()
	NewHandler(ext, hub, logger.NopLogger()).RegisterRoutes(router)
	server := httptest.NewServer(router)
	defer server.Close()

	body := `{"payload":{"trackclick":true,"trackinfo":{"deliveryId":"D1","broadlogId":"B1"}}}`
	resp, err := http.Post(server.URL+"/v1/events", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var dispatchCtx context.Context
	select {
	case dispatchCtx = <-network.submitted:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for dispatch")
	}

	// The client has its response by now; the dispatch context must still
	// be alive.
	select {
	case <-dispatchCtx.Done():
		t.Fatalf("dispatch context canceled with response already written: %v", dispatchCtx.Err())
	case <-time.After(200 * time.Millisecond):
	}
	assert.NoError(t, dispatchCtx.Err())
}
