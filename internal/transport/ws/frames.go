// Package ws carries the chat protocol over websockets: JSON frames, one
// connection per client, requests correlated by frame ID, pushes delivered as
// one-way frames.
package ws

import (
	"encoding/json"
	"fmt"

	"github.com/eldtechnologies/parley/internal/models"
)

// Request frame types (client → server).
const (
	TypeHello         = "hello"
	TypeCreateAccount = "create_account"
	TypeDeleteAccount = "delete_account"
	TypeCreateGroup   = "create_group"
	TypeDeleteGroup   = "delete_group"
	TypeListAccounts  = "list_accounts"
	TypeListGroups    = "list_groups"
	TypeLogin         = "login"
	TypeLogout        = "logout"
	TypeLoginStatus   = "login_status"
	TypeSendAccount   = "send_account"
	TypeSendGroup     = "send_group"
	TypeUndelivered   = "undelivered"
)

// Response and push frame types (server → client).
const (
	TypeResult         = "result"
	TypeMessageAccount = "message_account"
	TypeMessageGroup   = "message_group"
	TypeLoggedOut      = "logged_out"
)

// Frame is the single envelope for every message on the wire. Which fields
// are meaningful depends on Type; unused fields are omitted.
type Frame struct {
	Type string `json:"type"`
	ID   uint64 `json:"id,omitempty"` // request correlation, client-assigned

	ClientID  int64    `json:"client_id,omitempty"`
	Seq       uint64   `json:"seq,omitempty"` // client seq on requests, server seq on pushes
	Account   string   `json:"account,omitempty"`
	Pattern   string   `json:"pattern,omitempty"`
	Group     string   `json:"group,omitempty"`
	Members   []string `json:"members,omitempty"`
	Sender    string   `json:"sender,omitempty"`
	Recipient string   `json:"recipient,omitempty"`
	Body      string   `json:"body,omitempty"`
	Timestamp int64    `json:"ts,omitempty"`
	MsgID     string   `json:"msg_id,omitempty"`

	OK    bool     `json:"ok,omitempty"`
	Error string   `json:"error,omitempty"`
	Names []string `json:"names,omitempty"`
}

// ParseFrame decodes a wire frame.
func ParseFrame(raw []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Frame{}, fmt.Errorf("unmarshal frame: %w", err)
	}
	if f.Type == "" {
		return Frame{}, fmt.Errorf("frame missing type")
	}
	return f, nil
}

// PushFrame builds the push frame for a routed message.
func PushFrame(msg models.Message) Frame {
	t := TypeMessageAccount
	if msg.IsGroup() {
		t = TypeMessageGroup
	}
	return Frame{
		Type:      t,
		Seq:       msg.Seq,
		Group:     msg.Group,
		Sender:    msg.Sender,
		Recipient: msg.Recipient,
		Body:      msg.Body,
		Timestamp: msg.Timestamp,
		MsgID:     msg.ID,
	}
}

// PushMessage converts a push frame back into a message.
func (f Frame) PushMessage() models.Message {
	return models.Message{
		ID:        f.MsgID,
		Seq:       f.Seq,
		Group:     f.Group,
		Sender:    f.Sender,
		Recipient: f.Recipient,
		Body:      f.Body,
		Timestamp: f.Timestamp,
	}
}
