package chat

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/parley/internal/directory"
	"github.com/eldtechnologies/parley/internal/models"
	"github.com/eldtechnologies/parley/internal/queue"
)

// fakePusher stands in for a live client connection.
type fakePusher struct {
	mu      sync.Mutex
	msgs    []models.Message
	logouts int
	failAll bool
}

func (p *fakePusher) MessageFromAccount(msg models.Message) error {
	return p.record(msg)
}

func (p *fakePusher) MessageFromGroup(msg models.Message) error {
	return p.record(msg)
}

func (p *fakePusher) record(msg models.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failAll {
		return errors.New("client gone")
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *fakePusher) NotifyLogout() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logouts++
	return nil
}

func (p *fakePusher) received() []models.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.Message(nil), p.msgs...)
}

func newTestServer(t *testing.T) (*Server, *queue.MemoryStore) {
	t.Helper()
	q := queue.NewMemoryStore()
	return New(zerolog.Nop(), directory.NewMemoryStore(), q), q
}

func mustCreateAccount(t *testing.T, s *Server, name string) {
	t.Helper()
	created, err := s.CreateAccount(context.Background(), name)
	if err != nil || !created {
		t.Fatalf("CreateAccount(%q) = (%v, %v)", name, created, err)
	}
}

func TestRegisterClientIDsAreUnique(t *testing.T) {
	s, _ := newTestServer(t)

	seen := make(map[int64]bool)
	for i := 0; i < 100; i++ {
		id := s.RegisterClient()
		if seen[id] {
			t.Fatalf("client ID %d issued twice", id)
		}
		seen[id] = true
	}
}

func TestLoginUnknownAccount(t *testing.T) {
	s, _ := newTestServer(t)

	_, err := s.Login(context.Background(), 1, 0, &fakePusher{}, "ghost")
	if !errors.Is(err, ErrUnknownAccount) {
		t.Fatalf("Login for unknown account: err = %v, want ErrUnknownAccount", err)
	}
}

func TestSendRetransmitIsSuppressed(t *testing.T) {
	s, q := newTestServer(t)
	ctx := context.Background()
	mustCreateAccount(t, s, "bob")

	ok, err := s.SendToAccount(ctx, 5, 3, "alice", "bob", "hi", 100)
	if err != nil || !ok {
		t.Fatalf("first send = (%v, %v), want (true, nil)", ok, err)
	}
	ok, err = s.SendToAccount(ctx, 5, 3, "alice", "bob", "hi", 100)
	if err != nil || ok {
		t.Fatalf("retransmit = (%v, %v), want (false, nil)", ok, err)
	}

	msgs, _ := q.Drain(ctx, "bob")
	if len(msgs) != 1 {
		t.Fatalf("bob's queue holds %d messages, want 1", len(msgs))
	}
	if msgs[0].Body != "hi" || msgs[0].Sender != "alice" || msgs[0].Timestamp != 100 {
		t.Fatalf("queued message = %+v", msgs[0])
	}
	if msgs[0].ID == "" || msgs[0].Seq == 0 {
		t.Fatalf("queued message missing ID or server seq: %+v", msgs[0])
	}
}

func TestSendSameClientNextSeqDelivers(t *testing.T) {
	s, q := newTestServer(t)
	ctx := context.Background()

	s.SendToAccount(ctx, 5, 3, "alice", "bob", "hi", 100)
	ok, err := s.SendToAccount(ctx, 5, 4, "alice", "bob", "hi", 100)
	if err != nil || !ok {
		t.Fatalf("next-seq send = (%v, %v), want (true, nil)", ok, err)
	}

	msgs, _ := q.Drain(ctx, "bob")
	if len(msgs) != 2 {
		t.Fatalf("bob's queue holds %d messages, want 2", len(msgs))
	}
}

func TestLoginConflictEvictsAndStaleLogoutRejected(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()
	mustCreateAccount(t, s, "alice")

	p1 := &fakePusher{}
	p2 := &fakePusher{}

	ok, err := s.Login(ctx, 1, 0, p1, "alice")
	if err != nil || !ok {
		t.Fatalf("first login = (%v, %v)", ok, err)
	}
	ok, err = s.Login(ctx, 2, 0, p2, "alice")
	if err != nil || !ok {
		t.Fatalf("second login = (%v, %v)", ok, err)
	}
	if p1.logouts != 1 {
		t.Fatalf("evicted client notified %d times, want 1", p1.logouts)
	}

	// Client 1's session is gone, so its late logout changes nothing.
	if s.Logout(1, 1, "alice") {
		t.Fatal("logout from an evicted client should fail")
	}
	if got := s.LoginStatus(2); got != "alice" {
		t.Fatalf("LoginStatus(2) = %q, want alice", got)
	}
}

func TestLiveDeliveryBypassesQueue(t *testing.T) {
	s, q := newTestServer(t)
	ctx := context.Background()
	mustCreateAccount(t, s, "bob")

	p := &fakePusher{}
	if _, err := s.Login(ctx, 1, 0, p, "bob"); err != nil {
		t.Fatalf("login: %v", err)
	}

	ok, err := s.SendToAccount(ctx, 2, 0, "alice", "bob", "hello", 50)
	if err != nil || !ok {
		t.Fatalf("send = (%v, %v)", ok, err)
	}

	msgs := p.received()
	if len(msgs) != 1 || msgs[0].Body != "hello" {
		t.Fatalf("pushed messages = %+v, want one 'hello'", msgs)
	}
	n, _ := q.Pending(ctx)
	if n != 0 {
		t.Fatalf("queue holds %d messages after live push, want 0", n)
	}
}

func TestPushFailureDoesNotFailSend(t *testing.T) {
	s, q := newTestServer(t)
	ctx := context.Background()
	mustCreateAccount(t, s, "bob")

	gone := &fakePusher{failAll: true}
	s.Login(ctx, 1, 0, gone, "bob")

	ok, err := s.SendToAccount(ctx, 2, 0, "alice", "bob", "hello", 50)
	if err != nil || !ok {
		t.Fatalf("send to unreachable client = (%v, %v), want (true, nil)", ok, err)
	}
	// The message is lost, not queued: the session still looked live.
	n, _ := q.Pending(ctx)
	if n != 0 {
		t.Fatalf("queue holds %d messages, want 0", n)
	}
}

func TestGroupSendExcludesSender(t *testing.T) {
	s, q := newTestServer(t)
	ctx := context.Background()
	for _, name := range []string{"alice", "bob", "carol"} {
		mustCreateAccount(t, s, name)
	}
	if err := s.CreateGroup(ctx, "team", []string{"alice", "bob", "carol"}); err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}

	alice := &fakePusher{}
	bob := &fakePusher{}
	s.Login(ctx, 1, 0, alice, "alice")
	s.Login(ctx, 2, 0, bob, "bob")
	// carol stays offline

	ok, err := s.SendToGroup(ctx, 1, 1, "alice", "team", "standup", 200)
	if err != nil || !ok {
		t.Fatalf("group send = (%v, %v)", ok, err)
	}

	if len(alice.received()) != 0 {
		t.Fatalf("sender received own group message: %+v", alice.received())
	}
	bobMsgs := bob.received()
	if len(bobMsgs) != 1 {
		t.Fatalf("bob received %d messages, want 1", len(bobMsgs))
	}
	if bobMsgs[0].Group != "team" || bobMsgs[0].Recipient != "bob" || bobMsgs[0].Sender != "alice" {
		t.Fatalf("bob's message = %+v", bobMsgs[0])
	}

	carolMsgs, _ := q.Drain(ctx, "carol")
	if len(carolMsgs) != 1 || carolMsgs[0].Group != "team" {
		t.Fatalf("carol's queue = %+v, want one team message", carolMsgs)
	}

	// Each recipient's copy carries its own server sequence number.
	if bobMsgs[0].Seq == carolMsgs[0].Seq {
		t.Fatalf("recipient copies share server seq %d", bobMsgs[0].Seq)
	}
}

func TestGroupSendUnknownGroupIsNoOp(t *testing.T) {
	s, q := newTestServer(t)
	ctx := context.Background()

	ok, err := s.SendToGroup(ctx, 1, 0, "alice", "ghost", "anyone?", 10)
	if err != nil || !ok {
		t.Fatalf("send to unknown group = (%v, %v), want (true, nil)", ok, err)
	}
	n, _ := q.Pending(ctx)
	if n != 0 {
		t.Fatalf("queue holds %d messages, want 0", n)
	}
}

func TestUndeliveredDrainsOldestFirst(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()
	mustCreateAccount(t, s, "bob")

	s.SendToAccount(ctx, 1, 0, "alice", "bob", "first", 10)
	s.SendToAccount(ctx, 1, 1, "alice", "bob", "second", 20)

	p := &fakePusher{}
	ok, err := s.Undelivered(ctx, p, "bob")
	if err != nil || !ok {
		t.Fatalf("Undelivered = (%v, %v)", ok, err)
	}

	msgs := p.received()
	if len(msgs) != 2 {
		t.Fatalf("drained %d messages, want 2", len(msgs))
	}
	if msgs[0].Body != "first" || msgs[1].Body != "second" {
		t.Fatalf("drain order = [%q, %q], want [first, second]", msgs[0].Body, msgs[1].Body)
	}

	// A second drain finds nothing.
	p2 := &fakePusher{}
	s.Undelivered(ctx, p2, "bob")
	if len(p2.received()) != 0 {
		t.Fatalf("second drain pushed %d messages, want 0", len(p2.received()))
	}
}

func TestServerSeqIsMonotonic(t *testing.T) {
	s, q := newTestServer(t)
	ctx := context.Background()

	s.SendToAccount(ctx, 1, 0, "alice", "bob", "a", 1)
	s.SendToAccount(ctx, 1, 1, "alice", "bob", "b", 2)
	s.SendToAccount(ctx, 1, 2, "alice", "bob", "c", 3)

	msgs, _ := q.Drain(ctx, "bob")
	for i := 1; i < len(msgs); i++ {
		if msgs[i].Seq <= msgs[i-1].Seq {
			t.Fatalf("server seq not increasing: %d then %d", msgs[i-1].Seq, msgs[i].Seq)
		}
	}
}
