package normalize

import "time"

// UnknownValue is the explicit sentinel for optional fields the vendor did
// not provide. Consumers branch on this string, never on "".
const UnknownValue = "unknown"

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
	DirectionUnknown  Direction = "unknown"
)

type CallStatus string

const (
	CallStatusQueued     CallStatus = "queued"
	CallStatusRinging    CallStatus = "ringing"
	CallStatusInProgress CallStatus = "in_progress"
	CallStatusCompleted  CallStatus = "completed"
	CallStatusFailed     CallStatus = "failed"
	CallStatusNoAnswer   CallStatus = "no_answer"
	CallStatusBusy       CallStatus = "busy"
	CallStatusVoicemail  CallStatus = "voicemail"
	CallStatusCanceled   CallStatus = "canceled"
)

type MessageStatus string

const (
	MessageStatusQueued    MessageStatus = "queued"
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusReceived  MessageStatus = "received"
	MessageStatusFailed    MessageStatus = "failed"
)

// CallRecord is the provider-agnostic call shape used everywhere past the
// integration boundary.
//
// Multi-tenant invariant: TenantID is stamped by the facade before the
// record leaves the integration layer; normalization itself is tenant-blind.
//
// Identity: VendorID is the vendor-native record id and the dedup key. Two
// normalizations of the same vendor payload are byte-identical.
type CallRecord struct {
	VendorID string `json:"vendor_id"`
	TenantID string `json:"tenant_id,omitempty"`

	Direction Direction  `json:"direction"`
	From      string     `json:"from"`
	To        string     `json:"to"`
	Status    CallStatus `json:"status"`

	DurationSeconds int `json:"duration"`

	RecordingURL string `json:"recording_url,omitempty"`
	VoicemailURL string `json:"voicemail_url,omitempty"`

	// CustomerName is best-effort caller identification; UnknownValue when
	// the vendor has nothing.
	CustomerName string `json:"customer_name"`

	StartedAt time.Time `json:"started_at"`
}

// MessageRecord is the provider-agnostic message shape (SMS or mail-like).
type MessageRecord struct {
	VendorID string `json:"vendor_id"`
	TenantID string `json:"tenant_id,omitempty"`

	Direction Direction     `json:"direction"`
	From      string        `json:"from"`
	To        string        `json:"to"`
	Status    MessageStatus `json:"status"`

	// Body is the extracted content after part selection (HTML preferred
	// over plain text when both exist).
	Body string `json:"body"`

	CustomerName string `json:"customer_name"`

	CreatedAt time.Time `json:"created_at"`
}

// Warning is a recoverable data-quality finding produced during
// normalization. It never aborts a record or a batch; callers log it.
type Warning struct {
	VendorID string
	Field    string
	Reason   string
}
