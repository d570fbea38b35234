package directory

import (
	"context"
	"reflect"
	"testing"
)

func TestAccountLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	created, err := s.CreateAccount(ctx, "alice")
	if err != nil || !created {
		t.Fatalf("CreateAccount = (%v, %v), want (true, nil)", created, err)
	}
	created, err = s.CreateAccount(ctx, "alice")
	if err != nil || created {
		t.Fatalf("duplicate CreateAccount = (%v, %v), want (false, nil)", created, err)
	}

	has, err := s.HasAccount(ctx, "alice")
	if err != nil || !has {
		t.Fatalf("HasAccount = (%v, %v), want (true, nil)", has, err)
	}

	deleted, err := s.DeleteAccount(ctx, "alice")
	if err != nil || !deleted {
		t.Fatalf("DeleteAccount = (%v, %v), want (true, nil)", deleted, err)
	}
	deleted, err = s.DeleteAccount(ctx, "alice")
	if err != nil || deleted {
		t.Fatalf("second DeleteAccount = (%v, %v), want (false, nil)", deleted, err)
	}

	has, _ = s.HasAccount(ctx, "alice")
	if has {
		t.Fatal("deleted account should not exist")
	}
}

func TestListAccountsSorted(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for _, name := range []string{"carol", "alice", "bob"} {
		s.CreateAccount(ctx, name)
	}

	names, err := s.ListAccounts(ctx, "")
	if err != nil {
		t.Fatalf("ListAccounts: %v", err)
	}
	want := []string{"alice", "bob", "carol"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("ListAccounts = %v, want %v", names, want)
	}

	n, _ := s.CountAccounts(ctx)
	if n != 3 {
		t.Fatalf("CountAccounts = %d, want 3", n)
	}
}

func TestCreateGroupReplacesMembers(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.CreateGroup(ctx, "team", []string{"alice", "bob"}); err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if err := s.CreateGroup(ctx, "team", []string{"carol"}); err != nil {
		t.Fatalf("replace CreateGroup: %v", err)
	}

	members, err := s.GroupMembers(ctx, "team")
	if err != nil {
		t.Fatalf("GroupMembers: %v", err)
	}
	if !reflect.DeepEqual(members, []string{"carol"}) {
		t.Fatalf("GroupMembers = %v, want [carol]", members)
	}
}

func TestGroupMembersUnknownGroupIsNil(t *testing.T) {
	s := NewMemoryStore()

	members, err := s.GroupMembers(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("GroupMembers: %v", err)
	}
	if members != nil {
		t.Fatalf("GroupMembers for unknown group = %v, want nil", members)
	}
}

func TestGroupMembersReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	s.CreateGroup(ctx, "team", []string{"alice", "bob"})
	members, _ := s.GroupMembers(ctx, "team")
	members[0] = "mallory"

	again, _ := s.GroupMembers(ctx, "team")
	if again[0] != "alice" {
		t.Fatalf("mutating a returned slice leaked into the store: %v", again)
	}
}

func TestDeleteGroup(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	s.CreateGroup(ctx, "team", []string{"alice"})

	deleted, err := s.DeleteGroup(ctx, "team")
	if err != nil || !deleted {
		t.Fatalf("DeleteGroup = (%v, %v), want (true, nil)", deleted, err)
	}
	deleted, err = s.DeleteGroup(ctx, "team")
	if err != nil || deleted {
		t.Fatalf("second DeleteGroup = (%v, %v), want (false, nil)", deleted, err)
	}

	names, _ := s.ListGroups(ctx, "")
	if len(names) != 0 {
		t.Fatalf("ListGroups after delete = %v, want empty", names)
	}
}
