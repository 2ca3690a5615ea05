package chat

import (
	"fmt"
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"livechat/internal/app/user"
)

func TestRegistryAdmitKeepsInsertionOrder(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()

	for _, name := range []string{"alice", "bob", "carol"} {
		_, replaced := reg.Admit(newFakePeer("conn-"+name), accountSnapshot("id-"+name, name))
		req.False(replaced)
	}

	req.Equal([]string{"id-alice", "id-bob", "id-carol"}, snapshotIDs(reg.List()))
	req.Equal(3, reg.Len())
}

func TestRegistryAdmitReplacesInPlace(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()

	first := newFakePeer("conn-1")
	reg.Admit(first, accountSnapshot("id-alice", "alice"))
	reg.Admit(newFakePeer("conn-2"), accountSnapshot("id-bob", "bob"))

	second := newFakePeer("conn-3")
	replaced, ok := reg.Admit(second, accountSnapshot("id-alice", "alice2"))
	req.True(ok)
	req.Equal(first, replaced)

	list := reg.List()
	req.Len(list, 2)
	req.Equal("id-alice", list[0].ID)
	req.Equal("alice2", list[0].Username)

	peer, _, found := reg.Lookup("id-alice")
	req.True(found)
	req.Equal("conn-3", peer.ID())
}

func TestRegistryEvictIgnoresStaleAndUnknown(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()

	reg.Admit(newFakePeer("conn-old"), accountSnapshot("id-alice", "alice"))
	reg.Admit(newFakePeer("conn-new"), accountSnapshot("id-alice", "alice"))

	_, ok := reg.Evict("conn-old")
	req.False(ok)
	_, ok = reg.Evict("conn-missing")
	req.False(ok)
	req.Equal(1, reg.Len())

	snapshot, ok := reg.Evict("conn-new")
	req.True(ok)
	req.Equal("id-alice", snapshot.ID)
	req.Empty(reg.List())

	_, ok = reg.Evict("conn-new")
	req.False(ok)
}

func TestRegistryUpdateKeepsID(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()
	reg.Admit(newFakePeer("conn-1"), accountSnapshot("id-alice", "alice"))

	req.True(reg.Update("id-alice", func(s *user.Snapshot) {
		s.ID = "hijacked"
		s.Avatar = "https://cdn.example.com/a.png"
	}))
	req.False(reg.Update("id-bob", func(*user.Snapshot) {}))

	snapshot, ok := reg.LookupConn("conn-1")
	req.True(ok)
	req.Equal("id-alice", snapshot.ID)
	req.Equal("https://cdn.example.com/a.png", snapshot.Avatar)
}

// The registry is checked against a simple model over random admit/evict sequences:
// every admitted identity appears exactly once, in first-admission order.
func TestRegistryRandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := range 200 {
		reg := NewRegistry()

		order := []string{}
		current := map[string]string{} // user id -> conn id

		for step := range 30 {
			userID := fmt.Sprintf("user-%d", rng.Intn(5))

			if rng.Intn(3) > 0 {
				connID := fmt.Sprintf("conn-%d-%d", round, step)
				reg.Admit(newFakePeer(connID), accountSnapshot(userID, userID))
				if _, ok := current[userID]; !ok {
					order = append(order, userID)
				}
				current[userID] = connID
				continue
			}

			// Evict either the current connection or a stale one.
			connID := fmt.Sprintf("conn-stale-%d", step)
			if c, ok := current[userID]; ok && rng.Intn(2) == 0 {
				connID = c
			}
			_, evicted := reg.Evict(connID)
			if c, ok := current[userID]; ok && c == connID {
				require.True(t, evicted)
				delete(current, userID)
				order = slices.DeleteFunc(order, func(id string) bool { return id == userID })
			} else {
				require.False(t, evicted)
			}
		}

		ids := snapshotIDs(reg.List())
		require.Equal(t, order, ids)
		require.Len(t, reg.Peers(), len(current))
	}
}
