package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"livechat/internal/app/user"
	"livechat/internal/pkg/logx"
	"livechat/internal/pkg/randx"
)

const (
	// hubEventBuffer is the capacity of the hub's event channel.
	hubEventBuffer = 1024

	// offlineWriteTimeout bounds a single offline write to the presence store.
	offlineWriteTimeout = 5 * time.Second
)

// ErrHubClosed is returned for events submitted after Shutdown.
var ErrHubClosed = errors.New("chat: hub is shut down")

// PresenceStore persists the offline transition of an account.
type PresenceStore interface {
	// MarkOffline applies only if the stored last-seen is not newer than at.
	MarkOffline(ctx context.Context, id string, at time.Time) (bool, error)
}

// hubEvent is one tagged request processed by the hub goroutine.
type hubEvent interface {
	apply(h *Hub)
}

type admitEvent struct {
	peer      Peer
	snapshot  user.Snapshot
	admission *Admission
}

type leaveEvent struct {
	connID string
	at     time.Time
}

type relayEvent struct {
	connID string
	draft  MessageDraft
	at     time.Time
}

type refreshEvent struct {
	snapshot user.Snapshot
}

type disconnectEvent struct {
	userID string
	code   int
	reason string
	reply  chan bool
}

type listEvent struct {
	reply chan []user.Snapshot
}

// Hub owns the registry and broadcaster. All registry mutations and fan-outs
// happen on the Run goroutine, in the order events were submitted.
type Hub struct {
	registry    *Registry
	broadcaster *Broadcaster
	store       PresenceStore

	events  chan hubEvent
	quit    chan struct{}
	stopped chan struct{}

	quitOnce    sync.Once
	shutdownCtx context.Context
	offline     sync.WaitGroup

	// pending counts handshakes per user id that are marked online but not
	// yet admitted.
	pendingMu sync.Mutex
	pending   map[string]int

	logger zerolog.Logger
}

// NewHub creates a hub. Offline transitions of account users are written to
// store; guests are never written.
func NewHub(store PresenceStore) *Hub {
	logger := logx.Component("hub")
	registry := NewRegistry()

	return &Hub{
		registry:    registry,
		broadcaster: NewBroadcaster(registry, logger),
		store:       store,
		events:      make(chan hubEvent, hubEventBuffer),
		quit:        make(chan struct{}),
		stopped:     make(chan struct{}),
		pending:     make(map[string]int),
		logger:      logger,
	}
}

// Run processes events until Shutdown is called.
func (h *Hub) Run() {
	defer close(h.stopped)

	h.logger.Info().Msg("Hub event loop started.")

	for {
		select {
		case ev := <-h.events:
			ev.apply(h)

		case <-h.quit:
			h.closeAll()
			h.offline.Wait()
			h.logger.Info().Msg("Hub event loop stopped.")
			return
		}
	}
}

// Shutdown closes every admitted connection, marks account users offline
// and waits for the Run loop to exit or ctx to expire.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.quitOnce.Do(func() {
		h.shutdownCtx = ctx
		close(h.quit)
	})

	select {
	case <-h.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) submit(ev hubEvent) error {
	select {
	case <-h.quit:
		return ErrHubClosed
	default:
	}

	select {
	case h.events <- ev:
		return nil
	case <-h.quit:
		return ErrHubClosed
	}
}

// Admit registers peer under snapshot. A previous connection of the same user
// is closed with CloseSessionReplaced.
func (h *Hub) Admit(peer Peer, snapshot user.Snapshot) error {
	return h.submit(admitEvent{peer: peer, snapshot: snapshot})
}

// Admission marks a handshake of userID that is between its online write and
// its admit event. While it is outstanding, a leave of an older connection of
// the same user does not write the user offline.
type Admission struct {
	hub    *Hub
	userID string
	once   sync.Once
}

// ExpectAdmission registers a pending admission for userID. Call it before the
// online write. The admission is settled by the admit event or by Withdraw.
func (h *Hub) ExpectAdmission(userID string) *Admission {
	h.pendingMu.Lock()
	h.pending[userID]++
	h.pendingMu.Unlock()

	return &Admission{hub: h, userID: userID}
}

// Withdraw settles an admission whose connection will never be admitted.
// It is safe to call more than once and after the admit.
func (a *Admission) Withdraw() {
	if a == nil {
		return
	}
	a.once.Do(func() { a.hub.settleAdmission(a.userID) })
}

func (h *Hub) settleAdmission(userID string) {
	h.pendingMu.Lock()
	defer h.pendingMu.Unlock()

	if h.pending[userID] <= 1 {
		delete(h.pending, userID)
		return
	}
	h.pending[userID]--
}

func (h *Hub) admissionPending(userID string) bool {
	h.pendingMu.Lock()
	defer h.pendingMu.Unlock()
	return h.pending[userID] > 0
}

func (h *Hub) admitWith(peer Peer, snapshot user.Snapshot, admission *Admission) error {
	return h.submit(admitEvent{peer: peer, snapshot: snapshot, admission: admission})
}

// Leave reports that connID has closed at the given time.
func (h *Hub) Leave(connID string, at time.Time) error {
	return h.submit(leaveEvent{connID: connID, at: at})
}

// Relay sends a message drafted on connID to every other admitted peer.
func (h *Hub) Relay(connID string, draft MessageDraft) error {
	return h.submit(relayEvent{connID: connID, draft: draft, at: time.Now()})
}

// RefreshProfile replaces the username and avatar of an admitted user and
// re-announces the presence list. It is a no-op for users without a connection.
func (h *Hub) RefreshProfile(snapshot user.Snapshot) error {
	return h.submit(refreshEvent{snapshot: snapshot})
}

// Disconnect closes the current connection of userID, if any, and reports
// whether there was one. The presence store is not written.
func (h *Hub) Disconnect(ctx context.Context, userID string, code int, reason string) (bool, error) {
	reply := make(chan bool, 1)
	if err := h.submit(disconnectEvent{userID: userID, code: code, reason: reason, reply: reply}); err != nil {
		return false, err
	}

	select {
	case closed := <-reply:
		return closed, nil
	case <-h.stopped:
		return false, ErrHubClosed
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Online returns the current presence list.
func (h *Hub) Online(ctx context.Context) ([]user.Snapshot, error) {
	reply := make(chan []user.Snapshot, 1)
	if err := h.submit(listEvent{reply: reply}); err != nil {
		return nil, err
	}

	select {
	case list := <-reply:
		return list, nil
	case <-h.stopped:
		return nil, ErrHubClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (e admitEvent) apply(h *Hub) {
	replaced, ok := h.registry.Admit(e.peer, e.snapshot)
	e.admission.Withdraw()

	logger := h.logger.With().
		Str("user_id", e.snapshot.ID).
		Str("conn_id", e.peer.ID()).
		Logger()

	if ok && replaced.ID() != e.peer.ID() {
		logger.Warn().
			Str("replaced_conn_id", replaced.ID()).
			Msg("User already connected. Closing old connection for replacement.")
		replaced.Close(CloseSessionReplaced, "Session replaced by new connection. Check other tabs.")
	}

	logger.Info().Int("total_users", h.registry.Len()).Msg("Connection admitted.")

	h.broadcaster.AnnouncePresence(h.registry.List())
	if !ok {
		h.broadcaster.AnnounceSystemNotice(EventUserJoined, joinedNotice(e.snapshot.Username), e.peer.ID())
	}
}

func (e leaveEvent) apply(h *Hub) {
	snapshot, ok := h.registry.Evict(e.connID)
	if !ok {
		h.logger.Debug().Str("conn_id", e.connID).Msg("Ignoring leave for stale or unknown connection.")
		return
	}

	h.logger.Info().
		Str("user_id", snapshot.ID).
		Str("conn_id", e.connID).
		Int("total_users", h.registry.Len()).
		Msg("Connection left.")

	h.announceDeparture(snapshot, e.connID)

	if snapshot.Guest {
		return
	}
	if h.admissionPending(snapshot.ID) {
		h.logger.Debug().Str("user_id", snapshot.ID).Msg("Skipping offline write: a new connection is being admitted.")
		return
	}
	h.markOfflineAsync(snapshot.ID, e.at)
}

func (e relayEvent) apply(h *Hub) {
	sender, ok := h.registry.LookupConn(e.connID)
	if !ok {
		h.logger.Debug().Str("conn_id", e.connID).Msg("Dropping message from connection that is no longer admitted.")
		return
	}

	h.broadcaster.RelayMessage(e.connID, NewChatMessage(e.draft, sender, e.at))
}

func (e refreshEvent) apply(h *Hub) {
	updated := h.registry.Update(e.snapshot.ID, func(s *user.Snapshot) {
		s.Username = e.snapshot.Username
		s.Avatar = e.snapshot.Avatar
	})
	if updated {
		h.broadcaster.AnnouncePresence(h.registry.List())
	}
}

func (e disconnectEvent) apply(h *Hub) {
	peer, snapshot, ok := h.registry.Lookup(e.userID)
	if !ok {
		e.reply <- false
		return
	}

	h.registry.Evict(peer.ID())
	peer.Close(e.code, e.reason)

	h.logger.Info().
		Str("user_id", e.userID).
		Str("conn_id", peer.ID()).
		Int("close_code", e.code).
		Msg("Connection closed by server.")

	h.announceDeparture(snapshot, peer.ID())
	e.reply <- true
}

func (e listEvent) apply(h *Hub) {
	e.reply <- h.registry.List()
}

func (h *Hub) announceDeparture(snapshot user.Snapshot, connID string) {
	h.broadcaster.AnnounceLeft(snapshot.Username, connID)
	h.broadcaster.AnnouncePresence(h.registry.List())
}

// markOfflineAsync writes the offline transition without blocking the event loop.
func (h *Hub) markOfflineAsync(userID string, at time.Time) {
	h.offline.Add(1)
	go func() {
		defer h.offline.Done()

		ctx, cancel := context.WithTimeout(context.Background(), offlineWriteTimeout)
		defer cancel()

		h.markOffline(ctx, userID, at)
	}()
}

func (h *Hub) markOffline(ctx context.Context, userID string, at time.Time) {
	if h.store == nil || randx.IsGuestID(userID) {
		return
	}

	applied, err := h.store.MarkOffline(ctx, userID, at)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to mark user offline.")
		return
	}
	if !applied {
		h.logger.Debug().Str("user_id", userID).Msg("Offline write superseded by a newer connection.")
	}
}

// closeAll runs on shutdown: every connection is closed and account users are
// marked offline before the loop exits. The writes run concurrently under one
// deadline bounded by the Shutdown context.
func (h *Hub) closeAll() {
	now := time.Now()

	parent := h.shutdownCtx
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, offlineWriteTimeout)
	defer cancel()

	var wg sync.WaitGroup
	for _, snapshot := range h.registry.List() {
		peer, _, _ := h.registry.Lookup(snapshot.ID)
		h.registry.Evict(peer.ID())
		peer.Close(CloseGoingAway, "Server is shutting down.")

		if snapshot.Guest {
			continue
		}

		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			h.markOffline(ctx, userID, now)
		}(snapshot.ID)
	}
	wg.Wait()
}
