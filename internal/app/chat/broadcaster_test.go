package chat

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestBroadcaster() (*Registry, *Broadcaster, *fakePeer, *fakePeer) {
	reg := NewRegistry()
	alice := newFakePeer("conn-alice")
	bob := newFakePeer("conn-bob")
	reg.Admit(alice, accountSnapshot("id-alice", "alice"))
	reg.Admit(bob, accountSnapshot("id-bob", "bob"))
	return reg, NewBroadcaster(reg, zerolog.Nop()), alice, bob
}

func TestRelayMessageSkipsOrigin(t *testing.T) {
	req := require.New(t)
	reg, b, alice, bob := newTestBroadcaster()

	sender, _ := reg.LookupConn("conn-alice")
	msg := NewChatMessage(MessageDraft{Content: "hi"}, sender, time.Now())

	req.Equal(1, b.RelayMessage("conn-alice", msg))

	req.Empty(alice.received())
	frames := bob.framesOf(EventMessageReceived)
	req.Len(frames, 1)

	got := decodeMessage(t, frames[0])
	req.Equal("hi", got.Content)
	req.Equal("alice", got.Sender)
	req.Equal(sender.Avatar, got.SenderAvatar)
	req.Empty(got.Type)
}

func TestAnnouncePresenceReachesEveryone(t *testing.T) {
	req := require.New(t)
	reg, b, alice, bob := newTestBroadcaster()

	req.Equal(2, b.AnnouncePresence(reg.List()))

	for _, peer := range []*fakePeer{alice, bob} {
		frames := peer.framesOf(EventUsersUpdate)
		req.Len(frames, 1)
		req.Equal([]string{"id-alice", "id-bob"}, snapshotIDs(decodeSnapshots(t, frames[0])))
	}
}

func TestAnnouncePresenceEmptyListIsArray(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()
	peer := newFakePeer("conn-1")
	reg.Admit(peer, accountSnapshot("id-1", "alice"))

	NewBroadcaster(reg, zerolog.Nop()).AnnouncePresence(nil)

	frames := peer.framesOf(EventUsersUpdate)
	req.Len(frames, 1)
	req.JSONEq(`[]`, string(frames[0]))
}

func TestSystemNoticeExcludesConnection(t *testing.T) {
	req := require.New(t)
	_, b, alice, bob := newTestBroadcaster()

	req.Equal(1, b.AnnounceSystemNotice(EventUserJoined, joinedNotice("alice"), "conn-alice"))

	req.Empty(alice.received())
	frames := bob.framesOf(EventUserJoined)
	req.Len(frames, 1)

	notice := decodeMessage(t, frames[0])
	req.Equal("alice has joined the chat", notice.Content)
	req.Equal(MessageKindSystem, notice.Type)
	req.Empty(notice.Sender)
}

func TestAnnounceLeftSendsUsername(t *testing.T) {
	req := require.New(t)
	_, b, alice, bob := newTestBroadcaster()

	req.Equal(1, b.AnnounceLeft("alice", "conn-alice"))

	req.Empty(alice.received())
	frames := bob.framesOf(EventUserLeft)
	req.Len(frames, 1)
	req.JSONEq(`"alice"`, string(frames[0]))
}

func TestFanOutSkipsFailingPeer(t *testing.T) {
	req := require.New(t)
	reg, b, alice, bob := newTestBroadcaster()
	carol := newFakePeer("conn-carol")
	reg.Admit(carol, accountSnapshot("id-carol", "carol"))

	bob.failing = true

	req.Equal(2, b.AnnouncePresence(reg.List()))
	req.Len(alice.framesOf(EventUsersUpdate), 1)
	req.Empty(bob.received())
	req.Len(carol.framesOf(EventUsersUpdate), 1)
}
