package main

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrUnknownMessage = errors.New("unknown message type")
	ErrBadAngle       = errors.New("angle out of range")
)

// MsgKind is the closed set of envelope types
type MsgKind string

// Client -> Server message types
const (
	MsgJoin     MsgKind = "join"
	MsgInput    MsgKind = "input"
	MsgPing     MsgKind = "ping"
	MsgLeave    MsgKind = "leave"
	MsgRegister MsgKind = "register"
	MsgLogin    MsgKind = "login"
	MsgAuth     MsgKind = "auth"
)

// Server -> Client message types
const (
	MsgJoined       MsgKind = "joined"
	MsgState        MsgKind = "state" // binary frames only
	MsgKill         MsgKind = "kill"
	MsgPortalExit   MsgKind = "portal_exit"
	MsgGameOver     MsgKind = "game_over"
	MsgPong         MsgKind = "pong"
	MsgError        MsgKind = "error"
	MsgPlayerJoined MsgKind = "player_joined"
	MsgPlayerLeft   MsgKind = "player_left"
	MsgAuthOK       MsgKind = "auth_ok"
	MsgCapture      MsgKind = "capture"
)

var inboundKinds = map[MsgKind]bool{
	MsgJoin: true, MsgInput: true, MsgPing: true, MsgLeave: true,
	MsgRegister: true, MsgLogin: true, MsgAuth: true,
}

// Envelope wraps all outgoing messages with a type field
type Envelope struct {
	T    MsgKind     `json:"t"`
	Data interface{} `json:"d,omitempty"`
}

// InEnvelope is used for incoming messages
type InEnvelope struct {
	T MsgKind         `json:"t"`
	D json.RawMessage `json:"d,omitempty"`
}

// ParseEnvelope decodes an inbound envelope and rejects unknown kinds
func ParseEnvelope(raw []byte) (InEnvelope, error) {
	var env InEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, fmt.Errorf("bad envelope: %w", err)
	}
	if !inboundKinds[env.T] {
		return env, fmt.Errorf("%w: %q", ErrUnknownMessage, env.T)
	}
	return env, nil
}

// JoinMsg asks to join the room of a map
type JoinMsg struct {
	Name  string `json:"name"`
	Map   string `json:"map"`
	Color *int   `json:"color,omitempty"`
	Team  int    `json:"team,omitempty"`
	Bots  *int   `json:"bots,omitempty"`
	Token string `json:"token,omitempty"`
}

// InputMsg is the per-tick control state. Move is null when not moving.
type InputMsg struct {
	Tick    uint32   `json:"tick"`
	Seq     uint32   `json:"seq"`
	Move    *float64 `json:"move"`
	Aim     float64  `json:"aim"`
	Fire    bool     `json:"fire"`
	Shop    string   `json:"shop,omitempty"`
	Unstick bool     `json:"unstick,omitempty"`
}

// ParseInput converts a wire input into a simulation input
func ParseInput(data json.RawMessage) (Input, error) {
	var m InputMsg
	if err := json.Unmarshal(data, &m); err != nil {
		return Input{}, fmt.Errorf("bad input: %w", err)
	}
	if m.Move != nil && !inputAngle(*m.Move) {
		return Input{}, fmt.Errorf("bad input move: %w", ErrBadAngle)
	}
	if !inputAngle(m.Aim) {
		return Input{}, fmt.Errorf("bad input aim: %w", ErrBadAngle)
	}
	return Input{
		Tick:    m.Tick,
		Seq:     m.Seq,
		Move:    m.Move,
		Aim:     m.Aim,
		Fire:    m.Fire,
		Shop:    m.Shop,
		Unstick: m.Unstick,
	}, nil
}

type PingMsg struct {
	TS int64 `json:"ts"`
}

type PongMsg struct {
	TS     int64 `json:"ts"`
	Server int64 `json:"server"`
}

// RegisterMsg creates an account
type RegisterMsg struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginMsg authenticates with username/password
type LoginMsg struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthMsg authenticates with a stored token
type AuthMsg struct {
	Token string `json:"token"`
}

// AuthOKMsg confirms authentication
type AuthOKMsg struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Key      string `json:"key"`
	Balance  int    `json:"balance"`
}

// Participant maps a tank id to its wire index
type Participant struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Index uint8  `json:"index"`
	Team  int    `json:"team,omitempty"`
	Bot   bool   `json:"bot,omitempty"`
}

// JoinedMsg is sent to a player after joining
type JoinedMsg struct {
	Room         string        `json:"room"`
	ID           string        `json:"id"`
	Map          string        `json:"map"`
	Mode         string        `json:"mode"`
	Width        int           `json:"width"`
	Height       int           `json:"height"`
	Terrain      []MapRun      `json:"terrain"`
	Index        uint8         `json:"index"`
	Team         int           `json:"team,omitempty"`
	Stars        []StarState   `json:"stars"`
	Participants []Participant `json:"participants"`
	Balance      int           `json:"balance"`
}

// KillMsg is broadcast to all players in a room
type KillMsg struct {
	KillerID   string `json:"kid,omitempty"`
	KillerName string `json:"kn,omitempty"`
	VictimID   string `json:"vid"`
	VictimName string `json:"vn"`
}

// PortalExitMsg announces a player leaving through a portal
type PortalExitMsg struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Stars   int    `json:"stars"`
	Balance int    `json:"balance,omitempty"` // set on the credited player's copy
}

// CaptureMsg announces a captured flag
type CaptureMsg struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Team  int    `json:"team"`
	Score [2]int `json:"score"`
}

// GameOverMsg ends the match
type GameOverMsg struct {
	Winners   []string   `json:"winners"`
	Standings []Standing `json:"standings"`
}

// ErrorMsg sends error to client
type ErrorMsg struct {
	Msg string `json:"msg"`
}

func errorEnvelope(msg string) Envelope {
	return Envelope{T: MsgError, Data: ErrorMsg{Msg: msg}}
}
