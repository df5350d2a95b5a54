package realtime

import (
	"encoding/json"

	"github.com/tribeapp/tribe-server/internal/model"
)

// Client-to-server frame. Event selects the payload fields that matter.
type inboundFrame struct {
	Event      string                 `json:"event"`
	Content    string                 `json:"content,omitempty"`
	Type       model.MessageType      `json:"type,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	IsTyping   bool                   `json:"isTyping,omitempty"`
	MessageIDs []string               `json:"messageIds,omitempty"`
}

const (
	eventSendMessage = "send-message"
	eventTyping      = "typing"
	eventMarkRead    = "mark-read"
	eventLeaveRoom   = "leave-room"
)

type outboundFrame struct {
	Event      string         `json:"event"`
	Message    *model.Message `json:"message,omitempty"`
	MemberID   string         `json:"memberId,omitempty"`
	MessageID  string         `json:"messageId,omitempty"`
	MessageIDs []string       `json:"messageIds,omitempty"`
	IsTyping   *bool          `json:"isTyping,omitempty"`
	Error      string         `json:"error,omitempty"`
}

func marshalFrame(f outboundFrame) []byte {
	b, err := json.Marshal(f)
	if err != nil {
		return []byte(`{"event":"error","error":"encode failure"}`)
	}
	return b
}

func newMessageFrame(msg *model.Message) []byte {
	return marshalFrame(outboundFrame{Event: "new-message", Message: msg})
}

func memberJoinedFrame(memberID string) []byte {
	return marshalFrame(outboundFrame{Event: "member-joined", MemberID: memberID})
}

func memberLeftFrame(memberID string) []byte {
	return marshalFrame(outboundFrame{Event: "member-left", MemberID: memberID})
}

func typingFrame(memberID string, isTyping bool) []byte {
	return marshalFrame(outboundFrame{Event: "typing", MemberID: memberID, IsTyping: &isTyping})
}

func readReceiptFrame(memberID string, messageIDs []string) []byte {
	return marshalFrame(outboundFrame{Event: "read-receipt", MemberID: memberID, MessageIDs: messageIDs})
}

func messageDeletedFrame(messageID string) []byte {
	return marshalFrame(outboundFrame{Event: "message-deleted", MessageID: messageID})
}

func errorFrame(msg string) []byte {
	return marshalFrame(outboundFrame{Event: "error", Error: msg})
}
