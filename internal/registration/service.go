package registration

import (
	"context"
	"net/http"
	"strconv"

	"pushbridge/internal/configuration"
	"pushbridge/internal/constants"
	"pushbridge/internal/logger"
	"pushbridge/internal/netservice"
	"pushbridge/pkg/events"
	"pushbridge/pkg/metrics"
)

// TaskRunner marshals work back onto the extension's serial queue. The
// dedup store is only written from that queue, so completion callbacks
// running on network-service goroutines never race the event handlers.
type TaskRunner interface {
	RunTask(task func())
}

// Service builds and dispatches device registration requests.
type Service struct {
	network netservice.Service
	store   Store
	queue   TaskRunner
	logger  logger.Logger
}

func NewService(network netservice.Service, store Store, queue TaskRunner, log logger.Logger) *Service {
	return &Service{
		network: network,
		store:   store,
		queue:   queue,
		logger:  log,
	}
}

// HandleEvent validates the event against the resolved configuration and,
// when every gate passes, issues one asynchronous POST. Every unmet
// precondition is a logged no-op; nothing propagates back to the event
// originator.
func (s *Service) HandleEvent(ctx context.Context, e *events.Event, snapshot configuration.Snapshot, lifecycle map[string]interface{}) {
	token := e.StringField(events.KeyDeviceToken)
	if token == "" {
		s.skip(ctx, "missing_device_token", "Registration event carries no device token")
		return
	}

	if snapshot.IntegrationKey == "" || snapshot.MarketingServer == "" {
		s.skip(ctx, "missing_configuration", "Integration key or marketing server not configured")
		return
	}

	if snapshot.Privacy != configuration.PrivacyOptedIn {
		s.skip(ctx, "privacy_not_opted_in", "Privacy status does not allow registration",
			"privacy", snapshot.Privacy.String())
		return
	}

	request := Request{
		DeviceToken:     token,
		IntegrationKey:  snapshot.IntegrationKey,
		MarketingServer: snapshot.MarketingServer,
		UserKey:         e.StringField(events.KeyUserKey),
		Lifecycle:       lifecycle,
	}

	hash := request.Hash()
	if s.unchanged(ctx, hash) {
		s.skip(ctx, "unchanged", "Registration info unchanged since last success, skipping")
		return
	}

	payload := []byte(request.EncodePayload())
	s.network.Submit(ctx, netservice.Request{
		Method: http.MethodPost,
		URL:    request.URL(),
		Headers: map[string]string{
			constants.HeaderContentType:   constants.ContentTypeURLEncoded,
			constants.HeaderContentLength: strconv.Itoa(len(payload)),
		},
		Body:           payload,
		ConnectTimeout: snapshot.Timeout,
		ReadTimeout:    snapshot.Timeout,
	}, func(resp netservice.Response) {
		s.onComplete(ctx, resp, hash)
	})

	metrics.RegistrationRequestsTotal.WithLabelValues("sent").Inc()
	s.logger.DebugwCtx(ctx, "Registration request dispatched",
		"server", snapshot.MarketingServer,
	)
}

// unchanged reports whether the tuple hash matches the last successful
// registration. Store errors fail open so a broken store never suppresses
// a registration.
func (s *Service) unchanged(ctx context.Context, hash string) bool {
	last, found, err := s.store.Get(ctx, constants.RegistrationHashKey)
	if err != nil {
		s.logger.DebugwCtx(ctx, "Dedup store read failed, treating registration info as changed",
			"error", err,
		)
		return false
	}
	return found && last == hash
}

func (s *Service) onComplete(ctx context.Context, resp netservice.Response, hash string) {
	if resp.Err != nil || resp.Code != constants.HTTPStatusOK {
		metrics.RegistrationRequestsTotal.WithLabelValues("failed").Inc()
		s.logger.DebugwCtx(ctx, "Registration request failed",
			"status", resp.Code,
			"error", resp.Err,
		)
		return
	}

	// Persist from the serial queue; this callback runs on a network
	// service goroutine.
	s.queue.RunTask(func() {
		if err := s.store.Set(context.Background(), constants.RegistrationHashKey, hash); err != nil {
			s.logger.Debugw("Failed to persist registration hash",
				"error", err,
			)
		}
	})

	metrics.RegistrationRequestsTotal.WithLabelValues("succeeded").Inc()
	s.logger.InfowCtx(ctx, "Device registration succeeded")
}

func (s *Service) skip(ctx context.Context, reason, msg string, keysAndValues ...interface{}) {
	metrics.RegistrationRequestsTotal.WithLabelValues("skipped_" + reason).Inc()
	s.logger.DebugwCtx(ctx, msg, keysAndValues...)
}
