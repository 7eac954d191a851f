package main

// MatchPhase represents the lifecycle of a room's match
type MatchPhase uint8

const (
	PhasePlaying   MatchPhase = 0
	PhaseShrinking MatchPhase = 1
	PhaseGameOver  MatchPhase = 2
)

func (p MatchPhase) String() string {
	switch p {
	case PhasePlaying:
		return "playing"
	case PhaseShrinking:
		return "shrinking"
	case PhaseGameOver:
		return "game_over"
	}
	return "unknown"
}

// MapMode selects the rule set of a map
type MapMode uint8

const (
	ModeClassic MapMode = 0 // battle royale with shrinking zone
	ModeCTF     MapMode = 1 // two teams, capture the flag
	ModeBoss    MapMode = 2 // everyone against the boss, zone enabled
)

func (m MapMode) String() string {
	switch m {
	case ModeClassic:
		return "classic"
	case ModeCTF:
		return "ctf"
	case ModeBoss:
		return "boss"
	}
	return "unknown"
}

// TeamID constants
const (
	TeamNone = 0
	TeamRed  = 1
	TeamBlue = 2
)

// ModeConfig holds the rules derived from a map mode
type ModeConfig struct {
	Mode        MapMode
	Teams       bool
	ZoneEnabled bool
	Boss        bool
	MaxPlayers  int
	DefaultBots int
}

// ConfigForMode returns the rules for the given mode
func ConfigForMode(mode MapMode) ModeConfig {
	switch mode {
	case ModeCTF:
		return ModeConfig{
			Mode:        ModeCTF,
			Teams:       true,
			ZoneEnabled: false,
			MaxPlayers:  16,
			DefaultBots: 6,
		}
	case ModeBoss:
		return ModeConfig{
			Mode:        ModeBoss,
			ZoneEnabled: true,
			Boss:        true,
			MaxPlayers:  12,
			DefaultBots: 2,
		}
	default:
		return ModeConfig{
			Mode:        ModeClassic,
			ZoneEnabled: true,
			MaxPlayers:  20,
			DefaultBots: 6,
		}
	}
}

// AssignTeam returns the preferred team if valid, otherwise the team with
// fewer members (red on ties)
func (w *World) AssignTeam(preferred int) int {
	if !w.Config.Teams {
		return TeamNone
	}
	if preferred == TeamRed || preferred == TeamBlue {
		return preferred
	}
	var counts [3]int
	for _, t := range w.tanks {
		if t.Team == TeamRed || t.Team == TeamBlue {
			counts[t.Team]++
		}
	}
	if counts[TeamBlue] < counts[TeamRed] {
		return TeamBlue
	}
	return TeamRed
}

// respawnsAllowed reports whether dead tanks come back. Battle royale
// modes stop respawning once the zone starts closing.
func (w *World) respawnsAllowed() bool {
	switch w.phase {
	case PhaseGameOver:
		return false
	case PhaseShrinking:
		return w.Config.Mode == ModeCTF
	}
	return true
}
