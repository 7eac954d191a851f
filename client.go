package main

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 4096
	sendBufSize       = 256
	maxMessagesPerSec = 60
	maxNameLen        = 16
)

// outFrame is one queued websocket message
type outFrame struct {
	binary bool
	data   []byte
}

// Client represents a WebSocket connection
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan outFrame
	remoteAddr string
	msgCount   int
	msgResetAt time.Time

	room       *Room
	tankID     string
	accountKey string
	username   string
}

// NewClient creates a new Client
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan outFrame, sendBufSize),
		remoteAddr: remoteAddr,
	}
}

// ReadPump reads messages from the WebSocket connection
func (c *Client) ReadPump() {
	defer func() {
		c.hub.TrackDisconnect(c.remoteAddr)
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				Log.Warnw("ws read error", "addr", c.remoteAddr, "err", err)
			}
			break
		}

		now := time.Now()
		if now.After(c.msgResetAt) {
			c.msgCount = 0
			c.msgResetAt = now.Add(time.Second)
		}
		c.msgCount++
		if c.msgCount > maxMessagesPerSec {
			Log.Warnw("rate limit exceeded, disconnecting", "addr", c.remoteAddr)
			break
		}

		if msgType != websocket.TextMessage {
			c.SendJSON(errorEnvelope("expected a text frame"))
			continue
		}
		c.handleMessage(message)
	}
}

// WritePump writes messages to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			kind := websocket.TextMessage
			if frame.binary {
				kind = websocket.BinaryMessage
			}
			if err := c.conn.WriteMessage(kind, frame.data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendJSON queues a JSON message
func (c *Client) SendJSON(msg interface{}) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		Log.Errorw("marshal error", "err", err)
		return false
	}
	return c.enqueue(outFrame{data: data})
}

// SendBinary queues a binary message. The frame may be shared between
// clients and must not be modified afterwards.
func (c *Client) SendBinary(data []byte) bool {
	return c.enqueue(outFrame{binary: true, data: data})
}

func (c *Client) enqueue(f outFrame) (ok bool) {
	// the hub closes send on disconnect while rooms may still broadcast
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case c.send <- f:
		return true
	default:
		return false
	}
}

// handleMessage routes incoming messages
func (c *Client) handleMessage(raw []byte) {
	env, err := ParseEnvelope(raw)
	if err != nil {
		c.SendJSON(errorEnvelope(err.Error()))
		return
	}

	switch env.T {
	case MsgJoin:
		c.handleJoin(env.D)
	case MsgInput:
		c.handleInput(env.D)
	case MsgPing:
		c.handlePing(env.D)
	case MsgLeave:
		c.handleLeave()
	case MsgRegister:
		c.handleRegister(env.D)
	case MsgLogin:
		c.handleLogin(env.D)
	case MsgAuth:
		c.handleAuth(env.D)
	default:
		c.SendJSON(errorEnvelope(ErrUnknownMessage.Error()))
	}
}

func clampName(name, fallback string) string {
	if name == "" {
		name = fallback
	}
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}
	return name
}

func (c *Client) handleJoin(data json.RawMessage) {
	if c.room != nil {
		select {
		case <-c.room.Done():
			c.room, c.tankID = nil, ""
		default:
			c.SendJSON(errorEnvelope("already in a room"))
			return
		}
	}
	var msg JoinMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		c.SendJSON(errorEnvelope("bad join"))
		return
	}
	name := clampName(msg.Name, "Tank")

	if msg.Token != "" && c.hub.auth != nil {
		key, user, err := c.hub.auth.ValidateToken(msg.Token)
		if err != nil {
			c.SendJSON(errorEnvelope(ErrInvalidToken.Error()))
			return
		}
		c.accountKey, c.username = key, user
	}
	if c.accountKey == "" {
		c.accountKey = GuestKey()
	}
	acct, err := c.hub.ledger.GetOrCreate(c.accountKey, name)
	if err != nil {
		Log.Errorw("ledger account failed", "key", c.accountKey, "err", err)
		c.SendJSON(errorEnvelope("account unavailable"))
		return
	}

	balance := acct.Balance
	fee := c.hub.cfg.EntryFee
	if fee > 0 {
		balance, err = c.hub.ledger.ChargeEntry(c.accountKey, fee)
		if err != nil {
			if !errors.Is(err, ErrInsufficientFunds) {
				Log.Errorw("entry charge failed", "key", c.accountKey, "err", err)
			}
			c.SendJSON(errorEnvelope(err.Error()))
			return
		}
	}

	req := JoinRequest{
		Name:       name,
		Map:        msg.Map,
		Color:      -1,
		Team:       msg.Team,
		Bots:       -1,
		AccountKey: c.accountKey,
		Balance:    balance,
	}
	if msg.Color != nil && *msg.Color >= 0 && *msg.Color < PaletteSize {
		req.Color = *msg.Color
	}
	if msg.Bots != nil && *msg.Bots >= 0 {
		req.Bots = *msg.Bots
	}

	room, joined, err := c.hub.rooms.JoinMap(req, c)
	if err != nil {
		if fee > 0 {
			if _, rerr := c.hub.ledger.Refund(c.accountKey, fee); rerr != nil {
				Log.Errorw("entry refund failed", "key", c.accountKey, "err", rerr)
			}
		}
		Log.Infow("join refused", "addr", c.remoteAddr, "map", req.Map, "err", err)
		c.SendJSON(errorEnvelope(err.Error()))
		return
	}
	c.room = room
	c.tankID = joined.ID
	c.SendJSON(Envelope{T: MsgJoined, Data: joined})
}

func (c *Client) handleInput(data json.RawMessage) {
	if c.room == nil {
		return
	}
	in, err := ParseInput(data)
	if err != nil {
		c.SendJSON(errorEnvelope(err.Error()))
		return
	}
	c.room.Input(c.tankID, in)
}

func (c *Client) handlePing(data json.RawMessage) {
	var msg PingMsg
	if len(data) > 0 {
		if err := json.Unmarshal(data, &msg); err != nil {
			c.SendJSON(errorEnvelope("bad ping"))
			return
		}
	}
	c.SendJSON(Envelope{T: MsgPong, Data: PongMsg{TS: msg.TS, Server: time.Now().UnixMilli()}})
}

func (c *Client) handleLeave() {
	if c.room == nil {
		return
	}
	c.room.Leave(c.tankID)
	c.room = nil
	c.tankID = ""
}

func (c *Client) authOK(acct Account, token, username string) {
	c.accountKey = acct.Key
	c.username = username
	c.SendJSON(Envelope{T: MsgAuthOK, Data: AuthOKMsg{
		Token:    token,
		Username: username,
		Key:      acct.Key,
		Balance:  acct.Balance,
	}})
}

func (c *Client) handleRegister(data json.RawMessage) {
	if c.hub.auth == nil {
		c.SendJSON(errorEnvelope("accounts disabled"))
		return
	}
	var msg RegisterMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		c.SendJSON(errorEnvelope("bad register"))
		return
	}
	acct, token, err := c.hub.auth.Register(msg.Username, msg.Password)
	if err != nil {
		c.SendJSON(errorEnvelope(err.Error()))
		return
	}
	c.authOK(acct, token, msg.Username)
}

func (c *Client) handleLogin(data json.RawMessage) {
	if c.hub.auth == nil {
		c.SendJSON(errorEnvelope("accounts disabled"))
		return
	}
	var msg LoginMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		c.SendJSON(errorEnvelope("bad login"))
		return
	}
	acct, token, err := c.hub.auth.Login(msg.Username, msg.Password, c.remoteAddr)
	if err != nil {
		c.SendJSON(errorEnvelope(err.Error()))
		return
	}
	c.authOK(acct, token, msg.Username)
}

func (c *Client) handleAuth(data json.RawMessage) {
	if c.hub.auth == nil {
		c.SendJSON(errorEnvelope("accounts disabled"))
		return
	}
	var msg AuthMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		c.SendJSON(errorEnvelope("bad auth"))
		return
	}
	key, username, err := c.hub.auth.ValidateToken(msg.Token)
	if err != nil {
		c.SendJSON(errorEnvelope(ErrInvalidToken.Error()))
		return
	}
	acct, err := c.hub.ledger.GetOrCreate(key, username)
	if err != nil {
		c.SendJSON(errorEnvelope("account unavailable"))
		return
	}
	c.authOK(acct, msg.Token, username)
}
