package chat

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"livechat/internal/app/user"
	"livechat/internal/pkg/auth/jwt"
	"livechat/internal/pkg/errs"
	"livechat/internal/pkg/logx"
	"livechat/internal/pkg/randx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a frame sent by the client.
	maxFrameSize = 8192

	// capacity of the per-connection outbound queue.
	sendBufferSize = 256

	// TokenRefreshWindow is how long before expiry a connected user gets a fresh token.
	TokenRefreshWindow = 10 * time.Minute
)

// Custom WebSocket close codes (4000-4999 range).
const (
	// CloseSessionReplaced tells the client a newer connection of the same user took over.
	CloseSessionReplaced = 4001

	// CloseSessionEnded tells the client the user logged out.
	CloseSessionEnded = 4003

	// CloseGoingAway is sent to every connection on server shutdown.
	CloseGoingAway = websocket.CloseGoingAway
)

var errClientClosed = errors.New("chat: client connection closed")

// connState is the lifecycle state of a connection.
type connState int32

const (
	stateUnauthenticated connState = iota
	stateAuthenticating
	stateAdmitted
	stateClosed
)

func (s connState) String() string {
	switch s {
	case stateUnauthenticated:
		return "unauthenticated"
	case stateAuthenticating:
		return "authenticating"
	case stateAdmitted:
		return "admitted"
	default:
		return "closed"
	}
}

// Session is the bearer token a connection was authenticated with. The write
// pump uses it to push a fresh token before the current one expires.
type Session struct {
	Secret string
	Expiry time.Time
}

// ClientOptions configures a new client.
type ClientOptions struct {
	// Identity is the verified account of a token connection. Nil for guests,
	// who must send user:join first.
	Identity *user.Snapshot

	// Session enables token refresh. Nil for guests.
	Session *Session

	// Admission is the pending admission registered for Identity, if any.
	Admission *Admission
}

// inboundHandler handles the data of one inbound event.
type inboundHandler func(c *Client, data json.RawMessage) *errs.CustomError

var inboundHandlers = map[EventType]inboundHandler{
	EventUserJoin:    (*Client).handleJoin,
	EventMessageSend: (*Client).handleMessageSend,
}

// Client represents one WebSocket connection.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn

	// identity is written before admission and only read afterwards.
	identity  user.Snapshot
	session   *Session
	admission *Admission
	state     atomic.Int32

	// a buffered channel used to queue frames waiting to be sent to the client.
	send chan []byte

	mu          sync.Mutex
	closed      bool
	closeCode   int
	closeReason string

	logger zerolog.Logger
}

// NewClient constructs and returns a new Client instance.
func NewClient(hub *Hub, conn *websocket.Conn, opts ClientOptions) *Client {
	id := randx.ConnectionID()

	c := &Client{
		id:      id,
		hub:     hub,
		conn:    conn,
		session:   opts.Session,
		admission: opts.Admission,
		send:      make(chan []byte, sendBufferSize),
	}

	logCtx := logx.Logger().With().Str("client_id", id)
	if opts.Identity != nil {
		c.identity = *opts.Identity
		c.setState(stateAuthenticating)
		logCtx = logCtx.Str("user_id", c.identity.ID)
	}
	c.logger = logCtx.Logger()

	return c
}

func (c *Client) ID() string { return c.id }

func (c *Client) getState() connState { return connState(c.state.Load()) }

func (c *Client) setState(s connState) { c.state.Store(int32(s)) }

// Start admits a pre-authenticated connection and starts both pumps.
func (c *Client) Start() error {
	if c.getState() == stateAuthenticating {
		if err := c.admit(); err != nil {
			return err
		}
	}

	go c.WritePump()
	go c.ReadPump()
	return nil
}

func (c *Client) admit() error {
	if err := c.hub.admitWith(c, c.identity, c.admission); err != nil {
		c.setState(stateClosed)
		return err
	}

	c.setState(stateAdmitted)
	return nil
}

// Deliver queues a frame for the write pump. A full queue drops the frame.
func (c *Client) Deliver(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errClientClosed
	}

	select {
	case c.send <- frame:
		return nil
	default:
		return errors.New("chat: client send queue full")
	}
}

// Close makes the write pump send a close frame with code and end the connection.
// Only the first call has an effect.
func (c *Client) Close(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	c.closeCode = code
	c.closeReason = reason
	close(c.send)
}

func (c *Client) closeFrame() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closeCode == 0 {
		return websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	}
	return websocket.FormatCloseMessage(c.closeCode, c.closeReason)
}

// ReadPump reads frames until the connection fails, then reports the leave to the hub.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxFrameSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading frame (client close/going away)")
			}
			return
		}

		c.processInbound(raw)
	}
}

// cleanupOnDisconnect runs when the read pump ends.
func (c *Client) cleanupOnDisconnect() {
	lastState := c.getState()
	wasAdmitted := lastState == stateAdmitted
	c.setState(stateClosed)

	c.Close(websocket.CloseNormalClosure, "")

	if wasAdmitted {
		if err := c.hub.Leave(c.id, time.Now()); err != nil {
			c.logger.Debug().Err(err).Msg("Hub unavailable for leave notification.")
		}
	}

	if err := c.conn.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Client connection close error")
	}

	c.logger.Info().Stringer("last_state", lastState).Msg("Client connection closed.")
}

// processInbound decodes a frame and dispatches it to the handler of its event.
func (c *Client) processInbound(raw []byte) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid JSON")
		c.SendError(errs.NewError(errs.ErrInvalidJSONFormat))
		return
	}

	handler, ok := inboundHandlers[frame.Event]
	if !ok {
		c.logger.Warn().Str("event", string(frame.Event)).Msg("Client sent unsupported event")
		c.SendError(errs.NewError(errs.ErrUnsupportedEvent, frame.Event))
		return
	}

	if customErr := handler(c, frame.Data); customErr != nil {
		c.SendError(customErr)
	}
}

// handleJoin admits a guest under the username it chose.
func (c *Client) handleJoin(data json.RawMessage) *errs.CustomError {
	if c.getState() != stateUnauthenticated {
		return errs.NewError(errs.ErrAlreadyJoined)
	}

	username, customErr := DecodeJoinName(data)
	if customErr != nil {
		return customErr
	}

	c.setState(stateAuthenticating)

	guestID, err := randx.GuestID()
	if err != nil {
		c.setState(stateUnauthenticated)
		return errs.NewError(errs.ErrUnknown, err)
	}

	c.identity = user.GuestSnapshot(guestID, username)
	c.logger.Info().Str("user_id", guestID).Str("username", username).Msg("Guest joining.")

	if err := c.admit(); err != nil {
		return errs.NewError(errs.ErrUnknown, err)
	}
	return nil
}

func (c *Client) handleMessageSend(data json.RawMessage) *errs.CustomError {
	if c.getState() != stateAdmitted {
		return errs.NewError(errs.ErrNotJoined)
	}

	draft, customErr := DecodeMessageDraft(data)
	if customErr != nil {
		return customErr
	}

	if err := c.hub.Relay(c.id, draft); err != nil {
		return errs.NewError(errs.ErrUnknown, err)
	}
	return nil
}

// SendError queues an error frame for this connection only.
func (c *Client) SendError(customErr *errs.CustomError) {
	frame, err := EncodeFrame(EventError, ErrorPayload{
		Code:    customErr.Code,
		Message: customErr.Message,
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to build error frame")
		return
	}

	if err := c.Deliver(frame); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to queue error frame")
	}
}

// WritePump writes queued frames, pings and token refreshes to the connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !c.writeQueuedFrame(frame, ok) {
				return
			}

		case <-ticker.C:
			if !c.writePing() {
				return
			}

			c.refreshTokenIfExpiring()
		}
	}
}

// writeQueuedFrame returns false when the write pump should stop.
func (c *Client) writeQueuedFrame(frame []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if !ok {
		if err := c.conn.WriteMessage(websocket.CloseMessage, c.closeFrame()); err != nil {
			c.logger.Debug().Err(err).Msg("Error writing close frame")
		}
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.logger.Error().Err(err).Msg("Error writing frame")
		return false
	}

	return true
}

func (c *Client) writePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Debug().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}

// refreshTokenIfExpiring sends a token:refresh frame once the session token
// is within TokenRefreshWindow of its expiry. It runs on the write pump.
func (c *Client) refreshTokenIfExpiring() {
	if c.session == nil || c.getState() != stateAdmitted {
		return
	}
	if time.Until(c.session.Expiry) > TokenRefreshWindow {
		return
	}

	c.logger.Info().
		Time("current_expiry", c.session.Expiry).
		Dur("refresh_window", TokenRefreshWindow).
		Msg("JWT token is nearing expiry, attempting refresh.")

	token, expiry, err := jwt.GenerateToken(&jwt.Payload{
		ID:       c.identity.ID,
		Username: c.identity.Username,
	}, c.session.Secret, jwt.UserIdentityExpiration)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to generate new token. Aborting refresh.")
		return
	}

	frame, err := EncodeFrame(EventTokenRefresh, TokenRefreshPayload{Token: token})
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to build token refresh frame.")
		return
	}

	if !c.writeQueuedFrame(frame, true) {
		return
	}

	c.session.Expiry = expiry
}
