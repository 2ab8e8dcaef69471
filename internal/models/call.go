package models

// CallConnection is the server's attachment to one call leg.
type CallConnection struct {
	CallConnectionID string `json:"callConnectionId"`
	ServerCallID     string `json:"serverCallId"`
	CorrelationID    string `json:"correlationId,omitempty"` // empty until the first metadata frame
}

type Participant struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

// CallLocator identifies the call the automation client connects to.
type CallLocator struct {
	ServerCallID string
	RoomID       string
}
