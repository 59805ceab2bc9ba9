package tracking

import (
	"context"
	"net/http"

	"pushbridge/internal/configuration"
	"pushbridge/internal/constants"
	"pushbridge/internal/logger"
	"pushbridge/internal/netservice"
	"pushbridge/pkg/events"
	"pushbridge/pkg/metrics"
)

// Service builds and dispatches notification tracking requests.
type Service struct {
	network netservice.Service
	logger  logger.Logger
}

func NewService(network netservice.Service, log logger.Logger) *Service {
	return &Service{
		network: network,
		logger:  log,
	}
}

// HandleEvent validates the tracking event against the resolved
// configuration and, when every gate passes, issues one asynchronous GET
// with no body and no extra headers. Unmet preconditions are logged
// no-ops.
func (s *Service) HandleEvent(ctx context.Context, e *events.Event, snapshot configuration.Snapshot, tagID string) {
	if snapshot.TrackingServer == "" {
		s.skip(ctx, "missing_tracking_server", "Tracking server not configured")
		return
	}

	if snapshot.Privacy != configuration.PrivacyOptedIn {
		s.skip(ctx, "privacy_not_opted_in", "Privacy status does not allow tracking",
			"privacy", snapshot.Privacy.String())
		return
	}

	trackInfo, ok := e.MapField(events.KeyTrackInfo)
	if !ok {
		s.skip(ctx, "missing_track_info", "Tracking event carries no tracking info")
		return
	}

	deliveryID, _ := trackInfo[events.KeyDeliveryID].(string)
	if deliveryID == "" {
		s.skip(ctx, "missing_delivery_id", "Tracking info carries no delivery id")
		return
	}

	broadlogID, _ := trackInfo[events.KeyBroadlogID].(string)
	if broadlogID == "" {
		s.skip(ctx, "missing_broadlog_id", "Tracking info carries no broadlog id")
		return
	}

	normalized := NormalizeBroadlogID(broadlogID)
	if normalized != broadlogID {
		s.logger.DebugwCtx(ctx, "Normalized broadlog id",
			"from", broadlogID,
			"to", normalized,
		)
	}

	request := Request{
		DeliveryID:     deliveryID,
		BroadlogID:     normalized,
		TagID:          tagID,
		TrackingServer: snapshot.TrackingServer,
	}

	s.network.Submit(ctx, netservice.Request{
		Method:         http.MethodGet,
		URL:            request.URL(),
		ConnectTimeout: snapshot.Timeout,
		ReadTimeout:    snapshot.Timeout,
	}, func(resp netservice.Response) {
		s.onComplete(ctx, resp, tagID)
	})

	metrics.TrackingRequestsTotal.WithLabelValues("sent").Inc()
	s.logger.DebugwCtx(ctx, "Tracking request dispatched",
		"tag", tagID,
		"delivery_id", deliveryID,
	)
}

func (s *Service) onComplete(ctx context.Context, resp netservice.Response, tagID string) {
	if resp.Err != nil || resp.Code != constants.HTTPStatusOK {
		metrics.TrackingRequestsTotal.WithLabelValues("failed").Inc()
		s.logger.DebugwCtx(ctx, "Tracking request failed",
			"tag", tagID,
			"status", resp.Code,
			"error", resp.Err,
		)
		return
	}

	metrics.TrackingRequestsTotal.WithLabelValues("succeeded").Inc()
	s.logger.DebugwCtx(ctx, "Tracking request succeeded",
		"tag", tagID,
	)
}

func (s *Service) skip(ctx context.Context, reason, msg string, keysAndValues ...interface{}) {
	metrics.TrackingRequestsTotal.WithLabelValues("skipped_" + reason).Inc()
	s.logger.DebugwCtx(ctx, msg, keysAndValues...)
}
