// Package npcmgr implements NPCManager (§4.5): templates, live instances,
// the per-tick AI state machine, drop rolls, and the respawn min-heap.
// Grounded on the teacher's internal/system/npc_ai.go state machine and
// internal/world/npc.go instance shape, generalized from the Lineage AI
// (chase/attack/return) to a six-state machine (Idle, Wandering, Chasing,
// Attacking, Returning, Dead).
package npcmgr

import (
	"math"
	"math/rand"
)

// AIState is one of the §4.5 NPC states.
type AIState int

const (
	Idle AIState = iota
	Wandering
	Chasing
	Attacking
	Returning
	Dead
)

// DropRow is one row of a template's drop table (§4.5).
type DropRow struct {
	ItemID   int32
	MinQty   int32
	MaxQty   int32
	Chance   float64 // 0..1
}

// Template is static NPC data loaded once from the DataCatalog (§6).
type Template struct {
	ID            int32
	Name          string
	MaxHP         int32
	Speed         float64 // stats.speed, used by Attacking's fire-rate
	Aggressive    bool
	RespawnSeconds int64
	Drops         []DropRow
}

// Instance is one live NPC (§3 NPCInstance).
type Instance struct {
	ID         int64
	TemplateID int32
	ZoneID     int32

	X, Y, Z float64
	SpawnX, SpawnY, SpawnZ float64
	Rotation float64

	HP, MaxHP int32
	State     AIState

	TargetCharID int64 // 0 = no target

	LastAttackTick int64
	LastMoveTick   int64
	RespawnAtTick  int64 // only meaningful while State == Dead

	lastWanderTick int64
}

// DropModifierFunc adjusts a rolled drop row's chance and bonus quantity,
// hooked up to a Lua modify_drop script by the caller. nil means "no
// modification" (identity multiplier, zero bonus).
type DropModifierFunc func(npcTemplateID int32, itemID int32, baseChance float64) (chanceMultiplier float64, quantityBonus int32)

// Manager owns the template table, live instances, and the respawn heap.
// Single-writer discipline: mutated only from the GameLoop goroutine.
type Manager struct {
	templates map[int32]*Template
	instances map[int64]*Instance
	nextID    int64

	respawns respawnHeap

	dropModifier DropModifierFunc

	// tickDurationMs converts a template's RespawnSeconds into tick counts.
	// Defaults to 1000 (one tick per second) so callers that never wire the
	// real tick rate, such as package-level tests, keep the old 1:1 mapping.
	tickDurationMs int64
}

func NewManager(templates []Template) *Manager {
	m := &Manager{
		templates:      make(map[int32]*Template, len(templates)),
		instances:      make(map[int64]*Instance),
		tickDurationMs: 1000,
	}
	for i := range templates {
		t := &templates[i]
		m.templates[t.ID] = t
	}
	return m
}

// SetDropModifier installs a script-backed drop modifier hook; passing nil
// reverts to unmodified drop rolls.
func (m *Manager) SetDropModifier(fn DropModifierFunc) { m.dropModifier = fn }

// SetTickDurationMs configures the real tick duration used to convert
// RespawnSeconds into tick counts (§4.5 "schedule respawn ... keyed by
// now + respawn_seconds", where "now" is a tick count). Must be called with
// the server's actual configured tick duration before ticks start; the
// GameLoop's clock is the source of truth for this value.
func (m *Manager) SetTickDurationMs(ms int64) {
	if ms > 0 {
		m.tickDurationMs = ms
	}
}

// Template returns a template by id, or nil if unknown.
func (m *Manager) Template(id int32) *Template { return m.templates[id] }

// Spawn creates a live instance from a template at the given position.
func (m *Manager) Spawn(templateID int32, zoneID int32, x, y, z float64) *Instance {
	tmpl := m.templates[templateID]
	if tmpl == nil {
		return nil
	}
	m.nextID++
	inst := &Instance{
		ID:         m.nextID,
		TemplateID: templateID,
		ZoneID:     zoneID,
		X:          x, Y: y, Z: z,
		SpawnX: x, SpawnY: y, SpawnZ: z,
		HP: tmpl.MaxHP, MaxHP: tmpl.MaxHP,
		State: Idle,
	}
	m.instances[inst.ID] = inst
	return inst
}

// Get returns a live instance by id, or nil.
func (m *Manager) Get(id int64) *Instance { return m.instances[id] }

// All returns every live instance for tick iteration. Safe only to range
// over from the GameLoop goroutine.
func (m *Manager) All() map[int64]*Instance { return m.instances }

func dist(ax, ay, az, bx, by, bz float64) float64 {
	dx, dy, dz := ax-bx, ay-by, az-bz
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// ApplyDamage records damage to an instance and transitions aggressive
// Idle/Wandering NPCs into Chasing with the attacker as target (§4.5
// "Damage application sets target and transitions aggressive NPCs").
func (m *Manager) ApplyDamage(inst *Instance, attackerCharID int64, amount int32) {
	if inst.State == Dead {
		return
	}
	inst.HP -= amount
	if inst.HP < 0 {
		inst.HP = 0
	}
	tmpl := m.templates[inst.TemplateID]
	if tmpl != nil && tmpl.Aggressive && (inst.State == Idle || inst.State == Wandering) {
		inst.State = Chasing
		inst.TargetCharID = attackerCharID
	}
}

// KillResult is returned by Kill, carrying the rolled drops for the caller
// (InventoryEngine / ground-item placement) to apply.
type KillResult struct {
	Drops []DropRow
}

// Kill transitions an instance to Dead, rolls its drop table, and schedules
// a respawn deadline on the min-heap (§4.5 "On kill").
func (m *Manager) Kill(inst *Instance, nowTick int64, r *rand.Rand) KillResult {
	inst.State = Dead
	inst.TargetCharID = 0
	inst.HP = 0

	tmpl := m.templates[inst.TemplateID]
	var rolled []DropRow
	if tmpl != nil {
		rolled = m.rollDrops(inst.TemplateID, tmpl.Drops, r)
		inst.RespawnAtTick = nowTick + m.respawnTicksFromSeconds(tmpl.RespawnSeconds)
	}
	pushRespawn(&m.respawns, respawnEntry{instanceID: inst.ID, deadline: inst.RespawnAtTick})

	return KillResult{Drops: rolled}
}

// respawnTicksFromSeconds converts a catalog respawn_seconds value into a
// tick count using the manager's configured tick duration.
func (m *Manager) respawnTicksFromSeconds(seconds int64) int64 {
	return seconds * 1000 / m.tickDurationMs
}

// rollDrops rolls each drop row, running it through the installed script
// hook first so content scripts can scale drop rate/quantity per template
// (e.g. level-scaled drop-rate events) without changing the base table.
func (m *Manager) rollDrops(templateID int32, rows []DropRow, r *rand.Rand) []DropRow {
	var out []DropRow
	for _, row := range rows {
		chance, bonusQty := row.Chance, int32(0)
		if m.dropModifier != nil {
			mult, bonus := m.dropModifier(templateID, row.ItemID, row.Chance)
			chance *= mult
			bonusQty = bonus
		}

		roll := skillRollFloat64(r)
		if roll >= chance {
			continue
		}
		qty := row.MinQty
		if row.MaxQty > row.MinQty {
			qty = row.MinQty + int32(skillRollFloat64(r)*float64(row.MaxQty-row.MinQty+1))
		}
		qty += bonusQty
		out = append(out, DropRow{ItemID: row.ItemID, MinQty: qty, MaxQty: qty, Chance: row.Chance})
	}
	return out
}

func skillRollFloat64(r *rand.Rand) float64 {
	if r != nil {
		return r.Float64()
	}
	return rand.Float64()
}

// PopRespawns restores every instance whose respawn deadline has passed,
// resetting it to spawn position with full health and Idle state (§4.5
// "Each tick, pop all deadlines <= now").
func (m *Manager) PopRespawns(nowTick int64) []*Instance {
	var restored []*Instance
	for m.respawns.Len() > 0 && m.respawns[0].deadline <= nowTick {
		entry := popRespawn(&m.respawns)
		inst := m.instances[entry.instanceID]
		if inst == nil {
			continue
		}
		inst.HP = inst.MaxHP
		inst.X, inst.Y, inst.Z = inst.SpawnX, inst.SpawnY, inst.SpawnZ
		inst.State = Idle
		inst.RespawnAtTick = 0
		restored = append(restored, inst)
	}
	return restored
}
