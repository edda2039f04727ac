package npcmgr

import (
	"math"
	"math/rand"
)

// aggroRange and leashRange bound the Chasing/Returning transitions; these
// mirror the teacher's fixed aggro/leash constants rather than per-template
// fields, since the spec does not make them data-driven.
const (
	aggroRange          = 8.0
	leashRange          = 15.0
	attackRange         = 1.5
	wanderRadius        = 5.0
	attackCooldownTicks = 2
	wanderIntervalTicks = 10

	// idleToWanderProb is the per-tick chance an Idle NPC starts Wandering.
	idleToWanderProb = 0.02
	// wanderToIdleProb is the chance a Wandering NPC settles back to Idle
	// instead of picking a new point, rolled each wander interval.
	wanderToIdleProb = 0.3
	// maxWanderDistance bounds how far a wander point may land from spawn.
	maxWanderDistance = 100.0
)

// TargetLookup resolves a character id to its current position and whether
// it is still a valid target (alive, connected, in the same zone).
type TargetLookup func(characterID int64) (x, y, z float64, ok bool)

// AcquireTarget transitions an Idle/Wandering aggressive NPC into Chasing
// once a candidate has been found within aggro range. The caller (GameLoop)
// is responsible for scanning zone membership and calling this once per
// candidate; ApplyDamage also calls this path directly on taking a hit.
func (m *Manager) AcquireTarget(inst *Instance, characterID int64, cx, cy, cz float64) {
	if inst.State != Idle && inst.State != Wandering {
		return
	}
	tmpl := m.templates[inst.TemplateID]
	if tmpl == nil || !tmpl.Aggressive {
		return
	}
	if dist(inst.X, inst.Y, inst.Z, cx, cy, cz) > aggroRange {
		return
	}
	inst.State = Chasing
	inst.TargetCharID = characterID
}

// Update advances every live, non-Dead instance's AI state machine by one
// tick (§4.5): Idle/Wandering NPCs occasionally wander, Chasing moves
// toward the target or gives up beyond leash range, Attacking fires when in
// range and cools down otherwise, Returning walks back to spawn and idles
// on arrival.
func (m *Manager) Update(nowTick int64, lookup TargetLookup, r *rand.Rand) {
	for _, inst := range m.instances {
		if inst.State == Dead {
			continue
		}
		m.updateOne(inst, nowTick, lookup, r)
	}
}

func (m *Manager) updateOne(inst *Instance, nowTick int64, lookup TargetLookup, r *rand.Rand) {
	switch inst.State {
	case Idle:
		if skillRollFloat64(r) < idleToWanderProb {
			inst.State = Wandering
			inst.lastWanderTick = nowTick
		}

	case Wandering:
		if nowTick-inst.lastWanderTick > wanderIntervalTicks {
			inst.lastWanderTick = nowTick
			if skillRollFloat64(r) < wanderToIdleProb {
				inst.State = Idle
				return
			}
			angle := skillRollFloat64(r) * 2 * math.Pi
			radius := skillRollFloat64(r) * wanderRadius
			nx := inst.SpawnX + radius*math.Cos(angle)
			ny := inst.SpawnY + radius*math.Sin(angle)
			if dist(inst.SpawnX, inst.SpawnY, inst.SpawnZ, nx, ny, inst.SpawnZ) <= maxWanderDistance {
				inst.X, inst.Y = nx, ny
			}
		}

	case Chasing:
		if inst.TargetCharID == 0 {
			inst.State = Returning
			return
		}
		tx, ty, tz, ok := lookup(inst.TargetCharID)
		if !ok {
			inst.TargetCharID = 0
			inst.State = Returning
			return
		}
		if dist(inst.X, inst.Y, inst.Z, inst.SpawnX, inst.SpawnY, inst.SpawnZ) > leashRange {
			inst.TargetCharID = 0
			inst.State = Returning
			return
		}
		if dist(inst.X, inst.Y, inst.Z, tx, ty, tz) <= attackRange {
			inst.State = Attacking
			return
		}
		stepToward(inst, tx, ty, tz)

	case Attacking:
		if inst.TargetCharID == 0 {
			inst.State = Returning
			return
		}
		tx, ty, tz, ok := lookup(inst.TargetCharID)
		if !ok {
			inst.TargetCharID = 0
			inst.State = Returning
			return
		}
		if dist(inst.X, inst.Y, inst.Z, tx, ty, tz) > attackRange {
			inst.State = Chasing
			return
		}
		cooldown := int64(attackCooldownTicks)
		if tmpl := m.templates[inst.TemplateID]; tmpl != nil && tmpl.Speed > 0 {
			// One attack every 1000/Speed ms, rounded up to whole ticks.
			cooldown = int64(math.Ceil(1000 / tmpl.Speed / float64(m.tickDurationMs)))
			if cooldown < 1 {
				cooldown = 1
			}
		}
		if nowTick-inst.LastAttackTick < cooldown {
			return
		}
		inst.LastAttackTick = nowTick
		// Actual damage application is driven by the combat subsystem,
		// which calls ApplyDamage on the target character; this state
		// machine only governs positioning and attack cadence.

	case Returning:
		if dist(inst.X, inst.Y, inst.Z, inst.SpawnX, inst.SpawnY, inst.SpawnZ) <= 0.5 {
			inst.X, inst.Y, inst.Z = inst.SpawnX, inst.SpawnY, inst.SpawnZ
			inst.State = Idle
			return
		}
		stepToward(inst, inst.SpawnX, inst.SpawnY, inst.SpawnZ)
	}
}

func stepToward(inst *Instance, tx, ty, tz float64) {
	const speed = 1.0
	dx, dy, dz := tx-inst.X, ty-inst.Y, tz-inst.Z
	d := dist(inst.X, inst.Y, inst.Z, tx, ty, tz)
	if d <= speed || d == 0 {
		inst.X, inst.Y, inst.Z = tx, ty, tz
		return
	}
	inst.X += dx / d * speed
	inst.Y += dy / d * speed
	inst.Z += dz / d * speed
}
