package models

import "time"

// Content types negotiated by the envelope codec.
const (
	ContentTypeJSON = "application/json"
	ContentTypeText = "text/plain"

	// ContentEncoding is stamped on every published message.
	ContentEncoding = "utf8"
)

// Kind identifies the message type carried in the delivery's "type" property.
type Kind string

const (
	// KindWorkRequest travels requester -> worker.
	KindWorkRequest Kind = "work-request"

	// Terminal results; exactly one closes out a work request.
	KindResultSuccess Kind = "result:success"
	KindResultError   Kind = "result:error"

	// Intermediate log updates; zero or more per work request.
	KindLogInfo    Kind = "log:info"
	KindLogWarning Kind = "log:warning"
	KindLogError   Kind = "log:error"
)

// Terminal reports whether the kind closes out a work request.
func (k Kind) Terminal() bool {
	return k == KindResultSuccess || k == KindResultError
}

// Known reports whether the kind is one this protocol version understands.
// Unknown kinds are logged and dropped by the requester, never fatal.
func (k Kind) Known() bool {
	switch k {
	case KindWorkRequest, KindResultSuccess, KindResultError,
		KindLogInfo, KindLogWarning, KindLogError:
		return true
	}
	return false
}

// Update is a decoded Update Envelope as surfaced to requester observers.
type Update struct {
	CorrelationID string
	Kind          Kind
	Payload       interface{}
	SenderAppID   string
	Timestamp     time.Time
}
