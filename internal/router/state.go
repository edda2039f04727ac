// Package router implements the §4.12 packet dispatch table: decoded
// plaintext packets map to a handler chain that runs ValidationCore,
// mutates subsystem state, and produces reply/broadcast packets. Grounded
// on the teacher's internal/handler package (one Deps struct threaded
// through stateless per-kind handler functions), restyled from the
// teacher's giant switch-by-opcode registry to one short switch over string
// packet kinds in Router.Handle since this domain's packet surface (§6 Packet type codes) is far
// narrower than the teacher's full MMO command set.
package router

import (
	"sync"

	"github.com/duskhollow/realm/internal/gameloop"
	"github.com/duskhollow/realm/internal/inventory"
	"github.com/duskhollow/realm/internal/skill"
	"github.com/duskhollow/realm/internal/validation"
)

// CharacterState is the per-character working set the Router mutates on
// every packet (§3 "Ownership": ValidationCore owns movement state and
// action buckets, keyed by character).
type CharacterState struct {
	CharacterID int64
	AccountID   int64
	Name        string
	SessionID   uint64
	ZoneID      int32
	Movement    *validation.MovementState
	Actions     *validation.ActionBucket
	Holdings    *inventory.Holdings
	Skills      map[skill.Name]*skill.Record
	AccessLevel int16
}

// Registry is the live table of bound characters, keyed by character id and
// by session id, single-writer from the Router's own goroutine.
type Registry struct {
	mu          sync.RWMutex
	byCharacter map[int64]*CharacterState
	bySession   map[uint64]*CharacterState
}

func NewRegistry() *Registry {
	return &Registry{
		byCharacter: make(map[int64]*CharacterState),
		bySession:   make(map[uint64]*CharacterState),
	}
}

func (r *Registry) Bind(state *CharacterState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byCharacter[state.CharacterID] = state
	r.bySession[state.SessionID] = state
}

func (r *Registry) Unbind(sessionID uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.bySession[sessionID]; ok {
		delete(r.byCharacter, st.CharacterID)
		delete(r.bySession, sessionID)
	}
}

func (r *Registry) BySession(sessionID uint64) (*CharacterState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.bySession[sessionID]
	return st, ok
}

func (r *Registry) ByCharacter(characterID int64) (*CharacterState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.byCharacter[characterID]
	return st, ok
}

// Count reports how many characters are currently bound to a session, for
// the connected-characters gauge.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byCharacter)
}

// Holdings implements ledger.CharacterLookup: the exchange ledger needs to
// reach a character's backpack to escrow/credit gold and items without
// depending on the router package directly.
func (r *Registry) Holdings(characterID int64) (*inventory.Holdings, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.byCharacter[characterID]
	if !ok {
		return nil, false
	}
	return st.Holdings, true
}

// Snapshot implements gameloop.PlayerDirectory: router sits above gameloop
// in the dependency graph as the one collaborator close enough to sessions
// to know live positions.
func (r *Registry) Snapshot() []gameloop.CharacterView {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]gameloop.CharacterView, 0, len(r.byCharacter))
	for _, st := range r.byCharacter {
		out = append(out, gameloop.CharacterView{
			CharacterID: st.CharacterID,
			ZoneID:      st.ZoneID,
			X:           st.Movement.Position.X,
			Y:           st.Movement.Position.Y,
			Z:           st.Movement.Position.Z,
		})
	}
	return out
}
