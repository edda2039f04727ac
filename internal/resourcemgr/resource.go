// Package resourcemgr implements ResourceManager (§4.6): harvestable
// resource nodes, yield rolls, depletion, and respawn scheduling. Grounded
// on the teacher's internal/world/drop.go yield tables and npcmgr's
// respawn min-heap, which this package reuses the same shape for.
package resourcemgr

import (
	"container/heap"
	"math/rand"
)

// Template is static resource-node data loaded from the DataCatalog (§6).
type Template struct {
	ID             int32
	Name           string
	Skill          string // matches a skill.Name string value
	LevelRequired  int
	BaseXP         float64
	RespawnTicks   int64
	DepletionChance float64 // 0 = never depletes (e.g. fishing spots)
	YieldItemID    int32
	YieldMinQty    int32
	YieldMaxQty    int32
}

// State is one of the two node states (§4.6).
type State int

const (
	Available State = iota
	Depleted
)

// Node is one live resource node instance (§3 ResourceNode).
type Node struct {
	ID         int64
	TemplateID int32
	ZoneID     int32
	X, Y, Z    float64
	State      State
	RespawnAtTick int64
}

// Manager owns templates, live nodes, and the respawn min-heap.
// Single-writer discipline: mutated only from the GameLoop goroutine.
type Manager struct {
	templates map[int32]*Template
	nodes     map[int64]*Node
	nextID    int64
	respawns  nodeRespawnHeap
}

func NewManager(templates []Template) *Manager {
	m := &Manager{
		templates: make(map[int32]*Template, len(templates)),
		nodes:     make(map[int64]*Node),
	}
	for i := range templates {
		t := &templates[i]
		m.templates[t.ID] = t
	}
	return m
}

// Template returns a template by id, or nil if unknown.
func (m *Manager) Template(id int32) *Template { return m.templates[id] }

// Place instantiates a live node from a template at a fixed position.
func (m *Manager) Place(templateID int32, zoneID int32, x, y, z float64) *Node {
	if m.templates[templateID] == nil {
		return nil
	}
	m.nextID++
	n := &Node{ID: m.nextID, TemplateID: templateID, ZoneID: zoneID, X: x, Y: y, Z: z, State: Available}
	m.nodes[n.ID] = n
	return n
}

// Get returns a live node by id, or nil.
func (m *Manager) Get(id int64) *Node { return m.nodes[id] }

// All returns every live node for tick iteration or broadcast snapshotting.
func (m *Manager) All() map[int64]*Node { return m.nodes }

// HarvestResult is returned by Harvest.
type HarvestResult struct {
	Success   bool
	XPGained  float64
	ItemID    int32
	Quantity  int32
	Depleted  bool
}

// Harvest resolves one harvest attempt against a node (§4.6 harvest
// pipeline): the node must be Available and the actor must meet the level
// requirement; success/depletion rolls are supplied by the caller for
// deterministic testing, matching the skill package's Resolve convention.
func (m *Manager) Harvest(node *Node, level int, nowTick int64, successRoll, depletionRoll float64) HarvestResult {
	if node.State != Available {
		return HarvestResult{}
	}
	tmpl := m.templates[node.TemplateID]
	if tmpl == nil || level < tmpl.LevelRequired {
		return HarvestResult{}
	}

	successP := 0.5 + 0.02*float64(level-tmpl.LevelRequired)
	if successP > 0.95 {
		successP = 0.95
	}
	if successRoll >= successP {
		return HarvestResult{}
	}

	qty := tmpl.YieldMinQty
	if tmpl.YieldMaxQty > tmpl.YieldMinQty {
		qty = tmpl.YieldMinQty + int32(depletionRoll*float64(tmpl.YieldMaxQty-tmpl.YieldMinQty+1))
	}

	result := HarvestResult{Success: true, XPGained: tmpl.BaseXP, ItemID: tmpl.YieldItemID, Quantity: qty}

	if tmpl.DepletionChance > 0 && depletionRoll < tmpl.DepletionChance {
		node.State = Depleted
		node.RespawnAtTick = nowTick + tmpl.RespawnTicks
		heap.Push(&m.respawns, nodeRespawnEntry{nodeID: node.ID, deadline: node.RespawnAtTick})
		result.Depleted = true
	}

	return result
}

// PopRespawns restores every node whose respawn deadline has passed back to
// Available (§4.6 "Each tick, pop all deadlines <= now").
func (m *Manager) PopRespawns(nowTick int64) []*Node {
	var restored []*Node
	for m.respawns.Len() > 0 && m.respawns[0].deadline <= nowTick {
		entry := heap.Pop(&m.respawns).(nodeRespawnEntry)
		node := m.nodes[entry.nodeID]
		if node == nil {
			continue
		}
		node.State = Available
		node.RespawnAtTick = 0
		restored = append(restored, node)
	}
	return restored
}

// RollFloat64 mirrors skill.RollFloat64 for callers that need a fresh
// source without threading one through from the GameLoop's rng.
func RollFloat64(r *rand.Rand) float64 {
	if r != nil {
		return r.Float64()
	}
	return rand.Float64()
}
