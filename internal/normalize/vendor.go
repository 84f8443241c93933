package normalize

// Vendor wire shapes. These mirror the vendor's JSON as-is; keep them
// adapter-only. Business logic never touches these types.

// VendorParty is one leg of a call or message.
type VendorParty struct {
	PhoneNumber string `json:"phoneNumber"`
	Name        string `json:"name"`
}

// VendorRecording points at stored call media.
type VendorRecording struct {
	ContentURI string `json:"contentUri"`
}

// VendorCall is a single entry from the vendor's call-log API or an inbound
// call event. Timestamps are RFC3339 strings; duration is seconds.
type VendorCall struct {
	ID        string      `json:"id"`
	Direction string      `json:"direction"`
	From      VendorParty `json:"from"`
	To        VendorParty `json:"to"`

	// State is the vendor's status vocabulary; mapped through a closed
	// translation table.
	State string `json:"state"`

	StartTime string `json:"startTime"`
	Duration  int    `json:"duration"`

	Recording *VendorRecording `json:"recording,omitempty"`
	Voicemail *VendorRecording `json:"voicemail,omitempty"`
}

// VendorPart is one body part of a multi-part message payload.
type VendorPart struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

// VendorMessage is a single entry from the vendor's message-store API or an
// inbound message event.
type VendorMessage struct {
	ID        string      `json:"id"`
	Direction string      `json:"direction"`
	From      VendorParty `json:"from"`
	To        VendorParty `json:"to"`

	MessageStatus string `json:"messageStatus"`

	// Subject carries the whole body for plain SMS; Parts carries the
	// multi-part payload for mail-like messages.
	Subject string       `json:"subject"`
	Parts   []VendorPart `json:"parts,omitempty"`

	CreationTime string `json:"creationTime"`
}
