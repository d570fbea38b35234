package models

// Message is a chat message as routed by the server. The server stamps ID and
// Seq at the moment it pushes the message to a live client or appends it to
// an offline queue, never at send time.
type Message struct {
	ID        string `json:"id"`              // ULID
	Seq       uint64 `json:"seq"`             // server event sequence number
	Group     string `json:"group,omitempty"` // empty for direct messages
	Sender    string `json:"from"`
	Recipient string `json:"to"`
	Body      string `json:"body"`
	Timestamp int64  `json:"ts"` // sender-generated, Unix ms
}

// IsGroup reports whether the message was addressed to a group rather than
// directly to the recipient account.
func (m Message) IsGroup() bool {
	return m.Group != ""
}
