package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSession(id int, name, room string) *Session {
	return &Session{ClientID: id, Name: name, Room: room}
}

func TestIssueIDNeverReuses(t *testing.T) {
	r := NewRegistry()
	first := r.IssueID()
	s := testSession(first, "alice", "lobby")
	r.Insert(s)
	r.Remove(first)

	second := r.IssueID()
	assert.Greater(t, second, first)
}

func TestInsertRemoveMaintainsRooms(t *testing.T) {
	r := NewRegistry()
	a := testSession(r.IssueID(), "alice", "lobby")
	b := testSession(r.IssueID(), "bob", "lobby")
	r.Insert(a)
	r.Insert(b)

	assert.Equal(t, 2, r.SessionCount())
	assert.Equal(t, 1, r.RoomCount())

	r.Remove(a.ClientID)
	assert.Equal(t, 1, r.SessionCount())
	assert.Equal(t, 1, r.RoomCount())

	r.Remove(b.ClientID)
	assert.Zero(t, r.RoomCount(), "empty room must disappear")
}

func TestRemoveUnknownIsNil(t *testing.T) {
	r := NewRegistry()
	assert.Nil(t, r.Remove(99))
}

func TestMembersOfIsSortedSnapshot(t *testing.T) {
	r := NewRegistry()
	var want []int
	for _, name := range []string{"a", "b", "c"} {
		s := testSession(r.IssueID(), name, "dev")
		r.Insert(s)
		want = append(want, s.ClientID)
	}

	members := r.MembersOf("dev")
	require.Len(t, members, 3)
	for i, m := range members {
		assert.Equal(t, want[i], m.ClientID)
	}
	assert.Empty(t, r.MembersOf("nowhere"))
}

func TestMoveSwitchesRoomsAndPrunes(t *testing.T) {
	r := NewRegistry()
	s := testSession(r.IssueID(), "alice", "lobby")
	r.Insert(s)

	old := r.Move(s, "dev")
	assert.Equal(t, "lobby", old)
	assert.Equal(t, "dev", s.Room)
	assert.Empty(t, r.MembersOf("lobby"))
	require.Len(t, r.MembersOf("dev"), 1)

	// Same-room move is a no-op.
	assert.Equal(t, "dev", r.Move(s, "dev"))
}

func TestSequencesAreContiguousPerRoom(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, 1, r.NextSequence("lobby"))
	assert.Equal(t, 2, r.NextSequence("lobby"))
	assert.Equal(t, 1, r.NextSequence("dev"), "sequences are per room")
	assert.Equal(t, 3, r.NextSequence("lobby"))
}

func TestSequencesSurviveEmptyRooms(t *testing.T) {
	r := NewRegistry()
	s := testSession(r.IssueID(), "alice", "lobby")
	r.Insert(s)
	r.NextSequence("lobby")
	r.NextSequence("lobby")
	r.Remove(s.ClientID)

	// Rejoining an emptied room continues its sequence.
	assert.Equal(t, 3, r.NextSequence("lobby"))
}

func TestMessageCounter(t *testing.T) {
	r := NewRegistry()
	assert.Zero(t, r.Messages())
	r.IncrementMessages()
	r.IncrementMessages()
	assert.EqualValues(t, 2, r.Messages())
}

func TestRoomNamesSorted(t *testing.T) {
	r := NewRegistry()
	for i, room := range []string{"zeta", "alpha", "mid"} {
		s := testSession(i+1, "u", room)
		r.Insert(s)
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, r.RoomNames())
}
