package main

import (
	"bytes"
	"encoding/json"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ClientDir = ""
	cfg.DBPath = ""
	cfg.LogFile = ""
	cfg.PublicURL = "http://tanks.test"
	return cfg
}

// startServer runs a full server and returns its base URL
func startServer(t *testing.T, db *DB) (string, *Hub) {
	t.Helper()
	hub := NewHub(testConfig(), db)
	go hub.Run()
	srv := httptest.NewServer(SetupRouter(hub))
	t.Cleanup(func() {
		srv.Close()
		hub.Shutdown()
	})
	return srv.URL, hub
}

func dial(t *testing.T, base string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(base, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, kind MsgKind, data any) {
	t.Helper()
	msg := map[string]any{"t": kind}
	if data != nil {
		msg["d"] = data
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// readUntil skips frames until a text message of the given kind arrives
func readUntil(t *testing.T, conn *websocket.Conn, kind MsgKind) InEnvelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", kind, err)
		}
		if mt != websocket.TextMessage {
			continue
		}
		var env InEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("bad message %s: %v", data, err)
		}
		if env.T == kind {
			return env
		}
		if env.T == MsgError && kind != MsgError {
			t.Fatalf("waiting for %s, got error %s", kind, env.D)
		}
	}
}

func readBinary(t *testing.T, conn *websocket.Conn) []byte {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for state: %v", err)
		}
		if mt == websocket.BinaryMessage {
			return data
		}
	}
}

func TestIntegrationJoinAndState(t *testing.T) {
	base, _ := startServer(t, nil)
	conn := dial(t, base)

	send(t, conn, MsgJoin, map[string]any{"name": "alice", "map": "classic-1", "bots": 2})
	env := readUntil(t, conn, MsgJoined)
	var joined JoinedMsg
	if err := json.Unmarshal(env.D, &joined); err != nil {
		t.Fatal(err)
	}
	if joined.ID == "" || len(joined.Participants) != 3 {
		t.Fatalf("unexpected joined %+v", joined)
	}
	if joined.Balance != 9 {
		t.Errorf("entry fee should leave 9 coins, got %d", joined.Balance)
	}

	gc := NewGameClient(joined.ID, NewPredictor(NewSpatialIndex(), joined.Width, joined.Height))
	for _, p := range joined.Participants {
		gc.Bind(p.ID, p.Index)
	}
	if err := gc.HandleState(readBinary(t, conn)); err != nil {
		t.Fatalf("state decode: %v", err)
	}
	s, _ := gc.Latest()
	if _, ok := s.TankByID(joined.ID); !ok {
		t.Error("state should contain our tank")
	}

	send(t, conn, MsgInput, map[string]any{"move": 0, "aim": 0, "fire": true})
	send(t, conn, MsgJoin, map[string]any{"name": "again"})
	env = readUntil(t, conn, MsgError)
	if !strings.Contains(string(env.D), "already in a room") {
		t.Errorf("second join should fail, got %s", env.D)
	}
}

func TestIntegrationPingAndErrors(t *testing.T) {
	base, _ := startServer(t, nil)
	conn := dial(t, base)

	send(t, conn, MsgPing, map[string]any{"ts": 1234})
	env := readUntil(t, conn, MsgPong)
	var pong PongMsg
	json.Unmarshal(env.D, &pong)
	if pong.TS != 1234 || pong.Server == 0 {
		t.Errorf("unexpected pong %+v", pong)
	}

	send(t, conn, "teleport", nil)
	env = readUntil(t, conn, MsgError)
	if !strings.Contains(string(env.D), ErrUnknownMessage.Error()) {
		t.Errorf("expected unknown message error, got %s", env.D)
	}

	send(t, conn, MsgJoin, map[string]any{"map": "nowhere-1"})
	env = readUntil(t, conn, MsgError)
	if !strings.Contains(string(env.D), ErrUnknownMap.Error()) {
		t.Errorf("expected unknown map error, got %s", env.D)
	}

	send(t, conn, MsgRegister, map[string]any{"username": "alice", "password": "hunter22"})
	env = readUntil(t, conn, MsgError)
	if !strings.Contains(string(env.D), "accounts disabled") {
		t.Errorf("accounts need a database, got %s", env.D)
	}
}

func TestIntegrationAccounts(t *testing.T) {
	base, _ := startServer(t, openTestDB(t))
	conn := dial(t, base)

	send(t, conn, MsgRegister, map[string]any{"username": "alice", "password": "hunter22"})
	env := readUntil(t, conn, MsgAuthOK)
	var ok AuthOKMsg
	json.Unmarshal(env.D, &ok)
	if ok.Token == "" || ok.Balance != 10 {
		t.Fatalf("unexpected auth %+v", ok)
	}

	// a new connection resumes with the token
	conn2 := dial(t, base)
	send(t, conn2, MsgJoin, map[string]any{"name": "alice", "map": "boss-1", "bots": 0, "token": ok.Token})
	env = readUntil(t, conn2, MsgJoined)
	var joined JoinedMsg
	json.Unmarshal(env.D, &joined)
	if joined.Balance != 9 {
		t.Errorf("fee should be charged to the account, got %d", joined.Balance)
	}

	send(t, conn2, MsgJoin, map[string]any{"token": "forged"})
	readUntil(t, conn2, MsgError)
}

func TestIntegrationHTTP(t *testing.T) {
	base, _ := startServer(t, nil)

	resp, err := http.Get(base + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	var health map[string]any
	json.NewDecoder(resp.Body).Decode(&health)
	resp.Body.Close()
	if health["status"] != "ok" {
		t.Errorf("unexpected health %v", health)
	}

	resp, _ = http.Get(base + "/leaderboard?n=0")
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("n=0 should be rejected, got %d", resp.StatusCode)
	}
	resp, _ = http.Get(base + "/leaderboard")
	var top []Account
	json.NewDecoder(resp.Body).Decode(&top)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || top == nil {
		t.Errorf("leaderboard should return a list, got %d %v", resp.StatusCode, top)
	}

	resp, _ = http.Get(base + "/invite/ctf-1")
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("expected png, got %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	if got := resp.Header.Get("X-Invite-URL"); got != "http://tanks.test/?map=ctf-1" {
		t.Errorf("unexpected invite url %q", got)
	}
	img, err := png.Decode(bytes.NewReader(body))
	if err != nil || img.Bounds().Dx() != qrSize {
		t.Errorf("invite should be a %dpx png: %v", qrSize, err)
	}

	resp, _ = http.Get(base + "/invite/moon-1")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown map should 404, got %d", resp.StatusCode)
	}
}

func TestIntegrationRoomsAndMetrics(t *testing.T) {
	base, hub := startServer(t, nil)
	conn := dial(t, base)
	send(t, conn, MsgJoin, map[string]any{"map": "ctf-1", "bots": 0})
	readUntil(t, conn, MsgJoined)

	resp, _ := http.Get(base + "/rooms")
	var rooms []RoomInfo
	json.NewDecoder(resp.Body).Decode(&rooms)
	resp.Body.Close()
	if len(rooms) != 1 || rooms[0].Mode != "ctf" || rooms[0].Players != 1 {
		t.Errorf("unexpected rooms %+v", rooms)
	}

	resp, _ = http.Get(base + "/metrics")
	var m map[string]any
	json.NewDecoder(resp.Body).Decode(&m)
	resp.Body.Close()
	if m["connections"].(float64) != 1 {
		t.Errorf("expected one connection, got %v", m["connections"])
	}

	// leaving empties and closes the room
	send(t, conn, MsgLeave, nil)
	deadline := time.Now().Add(2 * time.Second)
	for len(hub.rooms.List()) > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := len(hub.rooms.List()); n != 0 {
		t.Errorf("empty room should close, %d left", n)
	}
}
