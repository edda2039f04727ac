package system

import "time"

// Phase defines execution ordering within a single tick of the GameLoop
// (§4.11): simulation advances, views refresh, broadcasts go out, then the
// tick's dirty state is flushed to the Store.
type Phase int

const (
	PhaseInput      Phase = iota // 0: drain inbound packet queues
	PhasePreUpdate               // 1: process last tick's event-bus deliveries
	PhaseUpdate                  // 2: NPCManager/ResourceManager/ExchangeEngine sweeps
	PhasePostUpdate              // 3: per-player view refresh, zone membership
	PhaseOutput                  // 4: flush broadcasts to sessions
	PhasePersist                 // 5: periodic Store flush (SAVE_INTERVAL)
	PhaseCleanup                 // 6: drop terminal/expired records
)

// System is the interface every tick-driven subsystem implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
