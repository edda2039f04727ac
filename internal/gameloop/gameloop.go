// Package gameloop implements the GameLoop (§4.11): a fixed-rate scheduler
// that advances NPCManager/ResourceManager each tick, refreshes per-player
// zone views, and periodically flushes dirty state to the Store. Grounded
// on the teacher's cmd/l1jgo/main.go tick loop and internal/core/system
// Phase-ordered Runner, simplified from the teacher's dual-rate
// (200ms system / 2ms input poll) split: that split existed to hide
// poll-loop input latency on a raw-socket accept loop, which this repo's
// goroutine-per-session netio.Session.readLoop makes unnecessary — inbound
// packets land on InQueue the instant they arrive, not on the next poll.
package gameloop

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/duskhollow/realm/internal/core/event"
	coresys "github.com/duskhollow/realm/internal/core/system"
	"github.com/duskhollow/realm/internal/metrics"
	"github.com/duskhollow/realm/internal/npcmgr"
	"github.com/duskhollow/realm/internal/resourcemgr"
	"github.com/duskhollow/realm/internal/scripting"
	"github.com/duskhollow/realm/internal/tickclock"
	"github.com/duskhollow/realm/internal/zone"
)

// CharacterView is the minimal per-player snapshot the view-refresh system
// needs: who they are, and where, so zone-scoped deltas can be built.
type CharacterView struct {
	CharacterID int64
	ZoneID      int32
	X, Y, Z     float64
}

// PlayerDirectory supplies the live set of connected characters. Backed by
// whatever session/character binding table the Router maintains.
type PlayerDirectory interface {
	Snapshot() []CharacterView
}

// SaveRequester is invoked once per SAVE_INTERVAL to persist one
// character's live state; failures are logged and do not stop the sweep.
type SaveRequester interface {
	SaveCharacter(ctx context.Context, characterID int64) error
}

// Broadcaster delivers a zone-scoped delta payload. kind names the event
// for the client-side dispatcher (e.g. "player_moved", "npc_killed").
type Broadcaster func(zoneID int32, kind string, payload any)

// Config bundles the tick-rate-dependent knobs GameLoop needs beyond what
// its collaborators already own.
type Config struct {
	SaveIntervalTicks int64
}

// GameLoop owns the single simulation tick and the Phase-ordered Runner
// that advances it (§5 "one simulation thread advances the tick loop").
type GameLoop struct {
	clock   *tickclock.Clock
	cfg     Config
	npc     *npcmgr.Manager
	res     *resourcemgr.Manager
	zones   *zone.Index
	players PlayerDirectory
	store   SaveRequester
	bus     *event.Bus
	script  *scripting.Engine
	metrics *metrics.Metrics
	log     *zap.Logger

	runner    *coresys.Runner
	rng       *rand.Rand
	tick      int64
	broadcast broadcastHolder
}

func New(clock *tickclock.Clock, cfg Config, npc *npcmgr.Manager, res *resourcemgr.Manager,
	zones *zone.Index, players PlayerDirectory, store SaveRequester, bus *event.Bus,
	script *scripting.Engine, rng *rand.Rand, log *zap.Logger, mx *metrics.Metrics) *GameLoop {

	gl := &GameLoop{
		clock: clock, cfg: cfg, npc: npc, res: res, zones: zones,
		players: players, store: store, bus: bus, script: script,
		rng: rng, log: log, metrics: mx, runner: coresys.NewRunner(),
	}
	gl.runner.Register(&eventDispatchSystem{bus: bus})
	gl.runner.Register(&simulationSystem{gl: gl})
	gl.runner.Register(&viewRefreshSystem{gl: gl})
	gl.runner.Register(&persistSystem{gl: gl})
	return gl
}

// broadcastHolder lets SetBroadcaster wire in a Broadcaster after
// construction, since the Router/server wiring closes over the live
// session registry that doesn't exist yet at GameLoop construction time.
type broadcastHolder struct{ fn Broadcaster }

func (gl *GameLoop) SetBroadcaster(fn Broadcaster) {
	gl.broadcast.fn = fn
}

// Run drives the tick loop until ctx is cancelled, matching the teacher's
// single select-loop shutdown pattern in cmd/l1jgo/main.go.
func (gl *GameLoop) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(gl.clock.TickDurationMs()) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			gl.tick++
			started := time.Now()
			func() {
				defer func() {
					if r := recover(); r != nil {
						gl.metrics.RecordTickPanic()
						gl.log.Error("tick panic recovered", zap.Int64("tick", gl.tick), zap.Any("panic", r))
					}
				}()
				gl.runner.Tick(time.Duration(gl.clock.TickDurationMs()) * time.Millisecond)
			}()
			gl.metrics.RecordTick(time.Since(started).Seconds())
		}
	}
}

// CurrentTick exposes the loop's own tick counter (distinct from
// tickclock.Clock.Now(), which derives from wall clock — the loop
// increments once per fired ticker event so respawn/AI pacing stays in
// lockstep with the select loop even under scheduler jitter).
func (gl *GameLoop) CurrentTick() int64 { return gl.tick }
