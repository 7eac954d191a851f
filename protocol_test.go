package main

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func TestParseEnvelope(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"t":"ping","d":{"ts":5}}`))
	if err != nil || env.T != MsgPing {
		t.Fatalf("expected ping, got %v %v", env.T, err)
	}
	var p PingMsg
	json.Unmarshal(env.D, &p)
	if p.TS != 5 {
		t.Errorf("expected ts 5, got %d", p.TS)
	}

	if _, err := ParseEnvelope([]byte(`{"t":"teleport"}`)); !errors.Is(err, ErrUnknownMessage) {
		t.Errorf("expected unknown message, got %v", err)
	}
	// server-only kinds are not accepted inbound
	if _, err := ParseEnvelope([]byte(`{"t":"joined"}`)); !errors.Is(err, ErrUnknownMessage) {
		t.Errorf("expected unknown message for joined, got %v", err)
	}
	if _, err := ParseEnvelope([]byte(`{"t":`)); err == nil {
		t.Error("broken json should fail")
	}
}

func TestParseInput(t *testing.T) {
	in, err := ParseInput(json.RawMessage(`{"tick":3,"seq":9,"move":null,"aim":1.5,"fire":true,"shop":"shield"}`))
	if err != nil {
		t.Fatal(err)
	}
	if in.Move != nil {
		t.Error("null move means standing still")
	}
	if in.Tick != 3 || in.Seq != 9 || in.Aim != 1.5 || !in.Fire || in.Shop != "shield" {
		t.Errorf("unexpected input %+v", in)
	}

	in, _ = ParseInput(json.RawMessage(`{"move":0.5}`))
	if in.Move == nil || *in.Move != 0.5 {
		t.Errorf("expected move 0.5, got %v", in.Move)
	}
	if _, err := ParseInput(json.RawMessage(`{"move":"up"}`)); err == nil {
		t.Error("wrong types should fail")
	}
	for _, raw := range []string{`{"aim":1e20}`, `{"move":-1e9}`, `{"aim":13}`} {
		if _, err := ParseInput(json.RawMessage(raw)); !errors.Is(err, ErrBadAngle) {
			t.Errorf("%s should be rejected, got %v", raw, err)
		}
	}
}

func TestValidAngle(t *testing.T) {
	if !validAngle(3) || validAngle(math.NaN()) || validAngle(math.Inf(1)) {
		t.Error("only finite angles are valid")
	}
	if !inputAngle(-4*math.Pi) || inputAngle(4*math.Pi+0.01) {
		t.Error("client angles are bounded to two full turns")
	}
}

func TestNormalizeAngle(t *testing.T) {
	cases := map[float64]float64{
		0:                0,
		3 * math.Pi / 2:  -math.Pi / 2,
		-5*math.Pi + 0.5: -math.Pi + 0.5,
		7:                7 - 2*math.Pi,
	}
	for in, want := range cases {
		if got := NormalizeAngle(in); !near(got, want, 1e-9) {
			t.Errorf("NormalizeAngle(%v) = %v, want %v", in, got, want)
		}
	}
	for _, huge := range []float64{1e9, 1e20, -1e300} {
		if got := NormalizeAngle(huge); got < -math.Pi || got > math.Pi {
			t.Errorf("NormalizeAngle(%v) = %v out of range", huge, got)
		}
	}
	if NormalizeAngle(math.NaN()) != 0 {
		t.Error("NaN wraps to 0")
	}
}

func TestEnvelopeJSON(t *testing.T) {
	data, err := json.Marshal(errorEnvelope("nope"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"t":"error","d":{"msg":"nope"}}` {
		t.Errorf("unexpected envelope %s", data)
	}
	data, _ = json.Marshal(Envelope{T: MsgPong})
	if string(data) != `{"t":"pong"}` {
		t.Errorf("empty data should be omitted, got %s", data)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("ENTRY_FEE", "3")
	t.Setenv("START_BALANCE", "oops")
	t.Setenv("DB_PATH", "from-env.db")

	cfg, err := LoadConfig([]string{"-addr", ":9999", "-db", ""})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != ":9999" || cfg.DBPath != "" {
		t.Errorf("flags should win over env, got %+v", cfg)
	}
	if cfg.EntryFee != 3 {
		t.Errorf("expected entry fee 3 from env, got %d", cfg.EntryFee)
	}
	if cfg.StartBalance != DefaultConfig().StartBalance {
		t.Errorf("invalid ints fall back to the default, got %d", cfg.StartBalance)
	}

	cfg, _ = LoadConfig([]string{"-entry-fee", "-4"})
	if cfg.EntryFee != 0 {
		t.Errorf("negative fees clamp to 0, got %d", cfg.EntryFee)
	}
	if _, err := LoadConfig([]string{"-no-such-flag"}); err == nil {
		t.Error("unknown flags should fail")
	}
}
