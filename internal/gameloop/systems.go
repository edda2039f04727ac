package gameloop

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/duskhollow/realm/internal/core/event"
	coresys "github.com/duskhollow/realm/internal/core/system"
	"github.com/duskhollow/realm/internal/npcmgr"
)

// eventDispatchSystem swaps the event bus buffers and delivers last tick's
// events, mirroring the teacher's system.NewEventDispatchSystem — emitted
// events become visible to subscribers one tick after they're raised.
type eventDispatchSystem struct {
	bus *event.Bus
}

func (s *eventDispatchSystem) Phase() coresys.Phase { return coresys.PhasePreUpdate }
func (s *eventDispatchSystem) Update(dt time.Duration) {
	s.bus.SwapBuffers()
	s.bus.DispatchAll()
}

// simulationSystem runs NPCManager/ResourceManager sweeps (§4.11 step 1).
type simulationSystem struct {
	gl *GameLoop
}

func (s *simulationSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *simulationSystem) Update(dt time.Duration) {
	gl := s.gl
	now := gl.tick

	for _, inst := range gl.npc.PopRespawns(now) {
		gl.log.Debug("npc respawned", zap.Int64("instance", inst.ID), zap.Int32("zone", inst.ZoneID))
	}

	lookup := func(characterID int64) (x, y, z float64, ok bool) {
		for _, v := range gl.players.Snapshot() {
			if v.CharacterID == characterID {
				return v.X, v.Y, v.Z, true
			}
		}
		return 0, 0, 0, false
	}
	gl.npc.Update(now, npcmgr.TargetLookup(lookup), gl.rng)

	for _, node := range gl.res.PopRespawns(now) {
		gl.log.Debug("resource node respawned", zap.Int64("node", node.ID), zap.Int32("zone", node.ZoneID))
	}
}

// viewRefreshSystem broadcasts a zone-scoped position delta for every zone
// that has at least one connected player (§4.11 step 2:
// "enqueue a delta broadcast if non-empty").
type viewRefreshSystem struct {
	gl *GameLoop
}

func (s *viewRefreshSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *viewRefreshSystem) Update(dt time.Duration) {
	gl := s.gl
	if gl.broadcast.fn == nil {
		return
	}
	byZone := map[int32][]CharacterView{}
	for _, v := range gl.players.Snapshot() {
		byZone[v.ZoneID] = append(byZone[v.ZoneID], v)
	}
	for zoneID, views := range byZone {
		if len(views) == 0 {
			continue
		}
		gl.broadcast.fn(zoneID, "zone_view", views)
	}
}

// persistSystem fans out save requests every SAVE_INTERVAL ticks (§4.11
// step 3, ≈15s at 20Hz per the teacher's cfg.Persistence.BatchIntervalTicks).
type persistSystem struct {
	gl *GameLoop
}

func (s *persistSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *persistSystem) Update(dt time.Duration) {
	gl := s.gl
	if gl.cfg.SaveIntervalTicks <= 0 || gl.tick%gl.cfg.SaveIntervalTicks != 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, v := range gl.players.Snapshot() {
		if err := gl.store.SaveCharacter(ctx, v.CharacterID); err != nil {
			gl.log.Error("periodic save failed", zap.Int64("character", v.CharacterID), zap.Int64("tick", gl.tick), zap.Error(err))
		}
	}
}
