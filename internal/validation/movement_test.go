package validation

import (
	"testing"

	"github.com/duskhollow/realm/internal/config"
	"github.com/duskhollow/realm/internal/gameerr"
)

type fakeOracle struct {
	walkable  bool
	destValid bool
	groundZ   float64
}

func (o fakeOracle) PathWalkable(from, to Position) bool { return o.walkable }
func (o fakeOracle) DestinationValid(pos Position) bool  { return o.destValid }
func (o fakeOracle) GroundHeight(x, y float64) float64   { return o.groundZ }

func testCfg() config.ValidationConfig {
	return config.ValidationConfig{
		MaxSpeedMultiplier:      1.15,
		TeleportThresholdUnits:  100,
		PositionHistorySamples:  60,
		MaxCorrectionsPerMinute: 5,
		BaseWalkSpeed:           220,
		BaseRunSpeed:            440,
		TickDurationMs:          600,
	}
}

func TestNormalWalkAccepted(t *testing.T) {
	mv := NewMovement(testCfg(), nil)
	state := NewMovementState(Position{0, 0, 0}, 1000)

	// 1 unit/sec walk, well under 220*1.15 cap.
	outcome := mv.Validate(state, MoveRequest{Position: Position{1, 0, 0}, AtMs: 2000, Kind: Walk})
	if !outcome.Accepted {
		t.Fatalf("outcome = %+v, want accepted", outcome)
	}
	if state.Position != (Position{1, 0, 0}) {
		t.Fatalf("position after accept = %+v, want {1 0 0}", state.Position)
	}
}

func TestSpeedHackRejectedAndRubberBanded(t *testing.T) {
	mv := NewMovement(testCfg(), nil)
	state := NewMovementState(Position{0, 0, 0}, 1000)

	// 1000 units in 1 second — far beyond any walk/run cap.
	outcome := mv.Validate(state, MoveRequest{Position: Position{1000, 0, 0}, AtMs: 2000, Kind: Walk})
	if outcome.Accepted {
		t.Fatal("speed-hack movement was accepted")
	}
	if outcome.CorrectedPos != (Position{0, 0, 0}) {
		t.Fatalf("corrected position = %+v, want original position", outcome.CorrectedPos)
	}
	if state.RubberBandCount != 1 {
		t.Fatalf("rubber band count = %d, want 1", state.RubberBandCount)
	}
	if outcome.Err == nil || outcome.Err.Kind != gameerr.SpeedHack {
		t.Fatalf("err = %+v, want SPEED_HACK", outcome.Err)
	}
}

func TestTeleportDestinationInvalidRejectedAsTeleportHack(t *testing.T) {
	mv := NewMovement(testCfg(), fakeOracle{destValid: false})
	state := NewMovementState(Position{0, 0, 0}, 1000)

	outcome := mv.Validate(state, MoveRequest{Position: Position{10, 0, 0}, AtMs: 2000, Kind: Teleport})
	if outcome.Accepted {
		t.Fatal("teleport to invalid destination was accepted")
	}
	if outcome.Err == nil || outcome.Err.Kind != gameerr.TeleportHack {
		t.Fatalf("err = %+v, want TELEPORT_HACK", outcome.Err)
	}
}

func TestTeleportDistanceRejectedAsTeleportHack(t *testing.T) {
	mv := NewMovement(testCfg(), nil)
	state := NewMovementState(Position{0, 0, 0}, 1000)

	// Slow enough speed to dodge the speed cap but still over the
	// teleport-distance threshold.
	outcome := mv.Validate(state, MoveRequest{Position: Position{150, 0, 0}, AtMs: 1600, Kind: Walk})
	if outcome.Accepted {
		t.Fatal("over-distance movement was accepted")
	}
	if outcome.Err == nil || outcome.Err.Kind != gameerr.TeleportHack {
		t.Fatalf("err = %+v, want TELEPORT_HACK", outcome.Err)
	}
}

func TestUnwalkablePathRejectedAsWallClip(t *testing.T) {
	mv := NewMovement(testCfg(), fakeOracle{walkable: false, destValid: true})
	state := NewMovementState(Position{0, 0, 0}, 1000)

	outcome := mv.Validate(state, MoveRequest{Position: Position{1, 0, 0}, AtMs: 2000, Kind: Walk})
	if outcome.Accepted {
		t.Fatal("unwalkable path movement was accepted")
	}
	if outcome.Err == nil || outcome.Err.Kind != gameerr.WallClip {
		t.Fatalf("err = %+v, want WALL_CLIP", outcome.Err)
	}
}

func TestAirborneAboveGroundRejectedAsFlyHack(t *testing.T) {
	mv := NewMovement(testCfg(), fakeOracle{walkable: true, destValid: true, groundZ: 0})
	state := NewMovementState(Position{0, 0, 0}, 1000)

	// 60 units up stays under the 100-unit teleport threshold, so the
	// fly-hack check is the one that fires.
	outcome := mv.Validate(state, MoveRequest{Position: Position{1, 0, 60}, AtMs: 2000, Kind: Walk})
	if outcome.Accepted {
		t.Fatal("movement far above ground was accepted")
	}
	if outcome.Err == nil || outcome.Err.Kind != gameerr.FlyHack {
		t.Fatalf("err = %+v, want FLY_HACK", outcome.Err)
	}
}

func TestRubberBandDisconnectAfterBudget(t *testing.T) {
	mv := NewMovement(testCfg(), nil)
	state := NewMovementState(Position{0, 0, 0}, 1000)

	var last MoveOutcome
	for i := 0; i < 6; i++ {
		last = mv.Validate(state, MoveRequest{Position: Position{1000, 0, 0}, AtMs: int64(2000 + i*100), Kind: Walk})
	}
	if !last.Disconnect {
		t.Fatalf("6th rejection within a minute should request disconnect, got %+v", last)
	}
}

func TestMovementAbilityExemptsSpeedCap(t *testing.T) {
	mv := NewMovement(testCfg(), nil)
	state := NewMovementState(Position{0, 0, 0}, 1000)
	state.RecordAbilityUse("surge", 1500)

	outcome := mv.Validate(state, MoveRequest{Position: Position{1000, 0, 0}, AtMs: 2000, Kind: Run})
	if !outcome.Accepted {
		t.Fatalf("movement within ability grace window should bypass speed cap, got %+v", outcome)
	}
}

func TestNonPositiveTimeDeltaRejected(t *testing.T) {
	mv := NewMovement(testCfg(), nil)
	state := NewMovementState(Position{0, 0, 0}, 1000)

	outcome := mv.Validate(state, MoveRequest{Position: Position{1, 0, 0}, AtMs: 1000, Kind: Walk})
	if outcome.Accepted {
		t.Fatal("zero time delta movement should be rejected")
	}
}
