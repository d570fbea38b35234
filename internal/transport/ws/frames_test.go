package ws

import (
	"testing"

	"github.com/eldtechnologies/parley/internal/models"
)

func TestParseFrameRejectsBadInput(t *testing.T) {
	if _, err := ParseFrame([]byte("not json")); err == nil {
		t.Fatal("invalid JSON should not parse")
	}
	if _, err := ParseFrame([]byte(`{"id": 3}`)); err == nil {
		t.Fatal("frame without a type should not parse")
	}
}

func TestPushFramePicksTypeByGroup(t *testing.T) {
	direct := models.Message{ID: "m1", Seq: 1, Sender: "alice", Recipient: "bob", Body: "hi", Timestamp: 10}
	if f := PushFrame(direct); f.Type != TypeMessageAccount {
		t.Fatalf("direct push type = %q, want %q", f.Type, TypeMessageAccount)
	}

	group := direct
	group.Group = "team"
	if f := PushFrame(group); f.Type != TypeMessageGroup {
		t.Fatalf("group push type = %q, want %q", f.Type, TypeMessageGroup)
	}
}

func TestPushMessageInvertsPushFrame(t *testing.T) {
	want := models.Message{ID: "m9", Seq: 42, Group: "team", Sender: "alice", Recipient: "bob", Body: "hey", Timestamp: 99}

	got := PushFrame(want).PushMessage()
	if got != want {
		t.Fatalf("round trip changed message: got %+v, want %+v", got, want)
	}
}
