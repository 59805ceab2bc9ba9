package extension

import "pushbridge/pkg/events"

// Kind is the request kind carried by an inbound event.
type Kind int

const (
	KindOther Kind = iota
	KindRegister
	KindTrackClick
	KindTrackReceive
)

func (k Kind) String() string {
	switch k {
	case KindRegister:
		return "register"
	case KindTrackClick:
		return "track_click"
	case KindTrackReceive:
		return "track_receive"
	default:
		return "other"
	}
}

// Classify inspects the payload flags of a request-content event. Absent
// or malformed flags read as false; register wins when several flags are
// set at once.
func Classify(e *events.Event) Kind {
	switch {
	case e.BoolFlag(events.KeyRegisterDevice):
		return KindRegister
	case e.BoolFlag(events.KeyTrackClick):
		return KindTrackClick
	case e.BoolFlag(events.KeyTrackReceive):
		return KindTrackReceive
	default:
		return KindOther
	}
}
