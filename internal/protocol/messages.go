// Package protocol defines the WebSocket message protocol between clients
// and the relay.
package protocol

import "encoding/json"

// Message types from client to relay
const (
	TypeAnnounce     = "announce"
	TypeSearchRoster = "search_roster"
	TypeCallInvite   = "call_invite"
	TypeCallOffer    = "call_offer"
	TypeCallAnswer   = "call_answer"
	TypeIceCandidate = "ice_candidate"
	TypeCallEnd      = "call_end"
	TypeChatSend     = "chat_send"
)

// Message types from relay to client
const (
	TypeAnnounceAck   = "announce_ack"
	TypeCallInviteAck = "call_invite_ack"
	TypeRoster        = "roster"
	TypeRosterChanged = "roster_changed"
	TypeChatDeliver   = "chat_deliver"
	TypeChatAck       = "chat_ack"
	TypeError         = "error"
)

// BaseMessage contains common fields for all messages.
type BaseMessage struct {
	Type string `json:"type"`
	Ts   int64  `json:"ts,omitempty"`
}

// AnnounceMessage is sent by a client to bind its connection to an identity.
// The token is the bearer token issued at login.
type AnnounceMessage struct {
	BaseMessage
	Username string `json:"username"`
	Token    string `json:"token"`
}

// AnnounceAckMessage confirms a successful announce.
type AnnounceAckMessage struct {
	BaseMessage
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

// SearchRosterMessage requests a filtered roster for this client only.
type SearchRosterMessage struct {
	BaseMessage
	Query string `json:"query,omitempty"`
}

// RosterEntry is one row of the online/offline projection.
type RosterEntry struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Online      bool   `json:"online"`
}

// RosterMessage carries a roster snapshot, either as a reply to
// search_roster (TypeRoster) or as a push to all clients (TypeRosterChanged).
type RosterMessage struct {
	BaseMessage
	Entries []RosterEntry `json:"entries"`
}

// SignalMessage is one call-negotiation hop: call_invite, call_offer,
// call_answer, ice_candidate or call_end. Clients set Target; the relay
// rewrites the message with From before forwarding. Payload is opaque to
// the relay and is never parsed.
type SignalMessage struct {
	BaseMessage
	Target      string          `json:"target,omitempty"`
	From        string          `json:"from,omitempty"`
	DisplayName string          `json:"display_name,omitempty"` // sender's, on forwarded invites
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// CallInviteAckMessage confirms an invite was forwarded to its target.
type CallInviteAckMessage struct {
	BaseMessage
	Target string `json:"target"`
}

// ChatSendMessage is sent by a client to deliver a text message.
type ChatSendMessage struct {
	BaseMessage
	Target string `json:"target"`
	Text   string `json:"text"`
}

// ChatDeliverMessage is pushed to the recipient of a chat message.
type ChatDeliverMessage struct {
	BaseMessage
	From string `json:"from"`
	Text string `json:"text"`
}

// ChatAckMessage is pushed back to the sender once the message is durable.
type ChatAckMessage struct {
	BaseMessage
	Target string `json:"target"`
	Text   string `json:"text"`
}

// ErrorMessage reports a failed action to the originating client.
type ErrorMessage struct {
	BaseMessage
	For     string `json:"for,omitempty"` // type of the message that failed
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrorCodeInvalidMessage = "invalid_message"
	ErrorCodeUnauthorized   = "unauthorized"
	ErrorCodeNotLoggedIn    = "not_logged_in"
	ErrorCodeUserOffline    = "user_offline"
	ErrorCodeEmptyMessage   = "empty_message"
	ErrorCodeStorageFailure = "storage_error"
)
