package chat

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"livechat/internal/app/user"
)

// Broadcaster fans frames out to the peers of a registry. Each frame is encoded
// once per fan-out; a peer that fails to take it is logged and skipped.
type Broadcaster struct {
	registry *Registry
	logger   zerolog.Logger
}

// NewBroadcaster returns a broadcaster over registry.
func NewBroadcaster(registry *Registry, logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		registry: registry,
		logger:   logger,
	}
}

// RelayMessage sends msg to every admitted peer except the origin connection.
func (b *Broadcaster) RelayMessage(originConnID string, msg ChatMessage) int {
	return b.fanOut(EventMessageReceived, msg, originConnID)
}

// AnnouncePresence sends the presence list to every admitted peer.
func (b *Broadcaster) AnnouncePresence(snapshots []user.Snapshot) int {
	if snapshots == nil {
		snapshots = []user.Snapshot{}
	}
	return b.fanOut(EventUsersUpdate, snapshots, "")
}

// AnnounceSystemNotice sends a system message under event to every admitted
// peer except excludeConnID.
func (b *Broadcaster) AnnounceSystemNotice(event EventType, text string, excludeConnID string) int {
	return b.fanOut(event, SystemMessage(text, time.Now()), excludeConnID)
}

// AnnounceLeft sends user:left with the departed username as a bare string to
// every admitted peer except excludeConnID. Clients render the notice themselves.
func (b *Broadcaster) AnnounceLeft(username string, excludeConnID string) int {
	return b.fanOut(EventUserLeft, username, excludeConnID)
}

// fanOut returns the number of peers the frame was queued for.
func (b *Broadcaster) fanOut(event EventType, data any, excludeConnID string) int {
	frame, err := EncodeFrame(event, data)
	if err != nil {
		b.logger.Error().Err(err).Str("event", string(event)).Msg("Error marshaling frame for broadcast.")
		return 0
	}

	delivered := 0
	for _, peer := range b.registry.Peers() {
		if peer.ID() == excludeConnID {
			continue
		}

		if err := peer.Deliver(frame); err != nil {
			b.logger.Warn().
				Err(err).
				Str("event", string(event)).
				Str("conn_id", peer.ID()).
				Msg("Dropping frame for unreachable peer.")
			continue
		}
		delivered++
	}

	return delivered
}

func joinedNotice(username string) string {
	return fmt.Sprintf("%s has joined the chat", username)
}
