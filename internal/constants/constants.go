package constants

import "time"

const (
	// RegistrationURLFormat takes the marketing server host.
	RegistrationURLFormat = "https://%s/nms/mobile/1/registerDevice.jssp"

	// TrackingURLFormat takes the tracking server host, broadlog id,
	// delivery id and tag id, in that order.
	TrackingURLFormat = "https://%s/r/?id=h%s,%s,%s"
)

const (
	TagReceive = "1"
	TagClick   = "2"
)

const (
	HeaderContentType   = "Content-Type"
	HeaderContentLength = "Content-Length"

	ContentTypeURLEncoded = "application/x-www-form-urlencoded;charset=UTF-8"
)

const (
	PayloadKeyRegistrationToken = "registrationToken"
	PayloadKeyMobileAppID       = "mobileAppId"
	PayloadKeyUserKey           = "userKey"
)

const (
	DefaultRequestTimeout = 30 * time.Second
)

const (
	// RegistrationHashKey is the persistent-store key holding the hash of
	// the last successfully registered device/config tuple.
	RegistrationHashKey = "registration:last"
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultInputTopic = "mobile_events"
)

const (
	HTTPStatusOK = 200
)
