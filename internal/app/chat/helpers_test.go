package chat

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"livechat/internal/app/user"
)

// fakePeer records every frame delivered to it.
type fakePeer struct {
	id string

	mu          sync.Mutex
	frames      [][]byte
	closeCode   int
	closeReason string
	failing     bool
}

func newFakePeer(id string) *fakePeer {
	return &fakePeer{id: id}
}

func (p *fakePeer) ID() string { return p.id }

func (p *fakePeer) Deliver(frame []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failing {
		return errors.New("peer unreachable")
	}
	p.frames = append(p.frames, frame)
	return nil
}

func (p *fakePeer) Close(code int, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closeCode == 0 {
		p.closeCode = code
		p.closeReason = reason
	}
}

func (p *fakePeer) closedWith() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeCode
}

func (p *fakePeer) received() []receivedFrame {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]receivedFrame, 0, len(p.frames))
	for _, raw := range p.frames {
		var f receivedFrame
		if err := json.Unmarshal(raw, &f); err == nil {
			out = append(out, f)
		}
	}
	return out
}

func (p *fakePeer) framesOf(event EventType) []json.RawMessage {
	var out []json.RawMessage
	for _, f := range p.received() {
		if f.Event == event {
			out = append(out, f.Data)
		}
	}
	return out
}

func (p *fakePeer) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frames = nil
}

type receivedFrame struct {
	Event EventType       `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func decodeSnapshots(t *testing.T, data json.RawMessage) []user.Snapshot {
	t.Helper()
	var list []user.Snapshot
	require.NoError(t, json.Unmarshal(data, &list))
	return list
}

func decodeMessage(t *testing.T, data json.RawMessage) ChatMessage {
	t.Helper()
	var msg ChatMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func snapshotIDs(list []user.Snapshot) []string {
	ids := make([]string, 0, len(list))
	for _, s := range list {
		ids = append(ids, s.ID)
	}
	return ids
}

func accountSnapshot(id, username string) user.Snapshot {
	return user.Snapshot{
		ID:       id,
		Username: username,
		Avatar:   user.DefaultAvatar(username),
		IsOnline: true,
	}
}

// offlineCall is one MarkOffline invocation seen by fakePresenceStore.
type offlineCall struct {
	id string
	at time.Time
}

type fakePresenceStore struct {
	mu    sync.Mutex
	calls []offlineCall
}

func (s *fakePresenceStore) MarkOffline(_ context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, offlineCall{id: id, at: at})
	return true, nil
}

func (s *fakePresenceStore) offlineIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.calls))
	for _, c := range s.calls {
		ids = append(ids, c.id)
	}
	return ids
}

// stalledPresenceStore blocks every write until its context is done.
type stalledPresenceStore struct {
	fakePresenceStore
}

func (s *stalledPresenceStore) MarkOffline(ctx context.Context, id string, at time.Time) (bool, error) {
	_, _ = s.fakePresenceStore.MarkOffline(ctx, id, at)
	<-ctx.Done()
	return false, ctx.Err()
}

// startHub runs a hub for the duration of the test.
func startHub(t *testing.T, store PresenceStore) *Hub {
	t.Helper()

	hub := NewHub(store)
	go hub.Run()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = hub.Shutdown(ctx)
	})
	return hub
}

// settle waits until the hub has processed every event submitted so far.
func settle(t *testing.T, hub *Hub) []user.Snapshot {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	list, err := hub.Online(ctx)
	require.NoError(t, err)
	return list
}
