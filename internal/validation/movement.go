// Package validation implements ValidationCore (§4.2): server-authoritative
// movement validation, action-budget rate limiting, and anti-cheat
// flagging. Grounded on the teacher's per-character state partitioning
// (internal/world/state.go) and its "everything about a character lives
// behind one struct, mutated only from the game loop" discipline, since
// the teacher trusts client-reported position outright and has no
// analogous validation layer of its own.
package validation

import (
	"math"
	"time"

	"github.com/duskhollow/realm/internal/config"
	"github.com/duskhollow/realm/internal/gameerr"
)

// Position is a point in world space.
type Position struct {
	X, Y, Z float64
}

func (p Position) distanceTo(o Position) float64 {
	dx, dy, dz := p.X-o.X, p.Y-o.Y, p.Z-o.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// MovementKind is the client-reported movement mode.
type MovementKind string

const (
	Walk     MovementKind = "walk"
	Run      MovementKind = "run"
	Teleport MovementKind = "teleport"
)

// abilityGraceMs is the §4.2.1 window during which a qualifying movement
// ability use lifts the speed cap entirely.
const abilityGraceMs = 1500

// movementAbilities is the §4.2.1 set of abilities that grant unlimited
// speed while recently used.
var movementAbilities = map[string]bool{
	"surge": true, "escape": true, "bladed_dive": true, "barge": true,
	"dive": true, "double_surge": true, "mobile_perk": true,
}

// NavmeshOracle answers walkability and ground-height queries. The engine
// treats it as an external collaborator (§6), implemented over whatever
// terrain data the DataCatalog loads.
type NavmeshOracle interface {
	PathWalkable(from, to Position) bool
	DestinationValid(pos Position) bool
	GroundHeight(x, y float64) float64
}

type abilityUse struct {
	ability string
	atMs    int64
}

// MovementState is the per-character movement bookkeeping named in §4.2.1.
type MovementState struct {
	Position        Position
	LastMovementMs  int64
	History         []Position
	RecentAbilities []abilityUse
	RubberBandCount int
	LastRubberBandMs int64
}

// NewMovementState seeds fresh state at a spawn position.
func NewMovementState(start Position, nowMs int64) *MovementState {
	return &MovementState{Position: start, LastMovementMs: nowMs}
}

// RecordAbilityUse notes a movement-ability activation for the 1500ms
// speed-cap exemption window.
func (s *MovementState) RecordAbilityUse(ability string, nowMs int64) {
	s.RecentAbilities = append(s.RecentAbilities, abilityUse{ability, nowMs})
}

func (s *MovementState) hasRecentMovementAbility(nowMs int64) bool {
	for _, u := range s.RecentAbilities {
		if movementAbilities[u.ability] && nowMs-u.atMs <= abilityGraceMs {
			return true
		}
	}
	return false
}

func (s *MovementState) gcAbilities(nowMs int64) {
	kept := s.RecentAbilities[:0]
	for _, u := range s.RecentAbilities {
		if nowMs-u.atMs <= 5000 {
			kept = append(kept, u)
		}
	}
	s.RecentAbilities = kept
}

// MoveRequest is an incoming movement packet (§4.2.1 "{pos', rot', t', kind}").
type MoveRequest struct {
	Position Position
	Rotation float64
	AtMs     int64
	Kind     MovementKind
}

// MoveOutcome is the validator's verdict.
type MoveOutcome struct {
	Accepted        bool
	CorrectedPos    Position
	Disconnect      bool
	Err             *gameerr.GameError
	ZoneTransition  bool
}

// Movement is the movement-validation half of ValidationCore.
type Movement struct {
	cfg    config.ValidationConfig
	oracle NavmeshOracle
}

func NewMovement(cfg config.ValidationConfig, oracle NavmeshOracle) *Movement {
	return &Movement{cfg: cfg, oracle: oracle}
}

// Validate implements §4.2.1 end to end: speed/teleport/wall-clip/fly-hack
// detection, rubber-banding, and history bookkeeping.
func (v *Movement) Validate(state *MovementState, req MoveRequest) MoveOutcome {
	if req.Kind == Teleport {
		if v.oracle != nil && !v.oracle.DestinationValid(req.Position) {
			return v.reject(state, req.AtMs, gameerr.TeleportHack)
		}
		v.commit(state, req)
		return MoveOutcome{Accepted: true, CorrectedPos: state.Position}
	}

	dt := req.AtMs - state.LastMovementMs
	if dt <= 0 {
		return v.reject(state, req.AtMs, gameerr.SpeedHack)
	}

	dist := state.Position.distanceTo(req.Position)
	speed := dist / (float64(dt) / 1000.0)

	abilityExempt := state.hasRecentMovementAbility(req.AtMs)

	if !abilityExempt {
		maxSpeed := v.cfg.BaseWalkSpeed
		if req.Kind == Run {
			maxSpeed = v.cfg.BaseRunSpeed
		}
		maxSpeed *= v.cfg.MaxSpeedMultiplier

		if speed > maxSpeed {
			return v.reject(state, req.AtMs, gameerr.SpeedHack)
		}
		if dist > v.cfg.TeleportThresholdUnits {
			return v.reject(state, req.AtMs, gameerr.TeleportHack)
		}
	}

	if v.oracle != nil && !v.oracle.PathWalkable(state.Position, req.Position) {
		return v.reject(state, req.AtMs, gameerr.WallClip)
	}

	if v.oracle != nil && !abilityExempt {
		groundZ := v.oracle.GroundHeight(req.Position.X, req.Position.Y)
		if req.Position.Z-groundZ > 50 {
			return v.reject(state, req.AtMs, gameerr.FlyHack)
		}
	}

	v.commit(state, req)
	return MoveOutcome{Accepted: true, CorrectedPos: state.Position}
}

func (v *Movement) commit(state *MovementState, req MoveRequest) {
	state.Position = req.Position
	state.LastMovementMs = req.AtMs
	state.History = append(state.History, req.Position)
	if len(state.History) > v.cfg.PositionHistorySamples {
		state.History = state.History[len(state.History)-v.cfg.PositionHistorySamples:]
	}
	state.gcAbilities(req.AtMs)
}

// reject applies the §4.2.1 rubber-band policy: reply with the authoritative
// position, track correction frequency, and request disconnect once the
// per-minute budget is exceeded. kind distinguishes the hack category for
// downstream anti-cheat aggregation.
func (v *Movement) reject(state *MovementState, nowMs int64, kind gameerr.Kind) MoveOutcome {
	if nowMs-state.LastRubberBandMs <= 60_000 {
		state.RubberBandCount++
	} else {
		state.RubberBandCount = 1
	}
	state.LastRubberBandMs = nowMs

	outcome := MoveOutcome{
		Accepted:     false,
		CorrectedPos: state.Position,
		Err:          gameerr.New(kind, "movement rejected"),
	}
	if state.RubberBandCount > v.cfg.MaxCorrectionsPerMinute {
		outcome.Disconnect = true
	}
	return outcome
}

// Now is a tiny convenience matching the teacher's style of passing
// explicit timestamps through the validation pipeline rather than calling
// time.Now() deep inside it (keeps Validate deterministic for tests).
func Now() int64 { return time.Now().UnixMilli() }
