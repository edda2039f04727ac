// Package zone implements ZoneIndex (§4.4): immutable AABB zone records,
// point-in-zone lookup, and membership sets used to scope broadcasts.
// Grounded on the teacher's world.AOIGrid (cell-based spatial index) and
// world.State membership bookkeeping, generalized from "Chebyshev radius
// around a moving player" to "static named zone polygons."
package zone

// AABB is an axis-aligned bounding box over the three spatial axes.
type AABB struct {
	MinX, MinY, MinZ float64
	MaxX, MaxY, MaxZ float64
}

// Contains reports whether the point lies within the box, inclusive.
func (b AABB) Contains(x, y, z float64) bool {
	return x >= b.MinX && x <= b.MaxX &&
		y >= b.MinY && y <= b.MaxY &&
		z >= b.MinZ && z <= b.MaxZ
}

// Record is a static zone definition (§3 ZoneRecord).
type Record struct {
	ID          int32
	Name        string
	Bounds      AABB
	SafeZone    bool
	PvPEnabled  bool
	MinLevel    int
	MaxLevel    int
}

// Point is a 3D position.
type Point struct{ X, Y, Z float64 }

// Index holds immutable zone records plus mutable per-zone membership sets.
// Single-writer discipline: mutated only from the GameLoop goroutine.
type Index struct {
	records []Record
	byID    map[int32]*Record
	members map[int32]map[int64]struct{} // zone id -> character ids
}

// NewIndex builds an Index from a static list of zone records loaded once
// at startup from the DataCatalog.
func NewIndex(records []Record) *Index {
	idx := &Index{
		records: records,
		byID:    make(map[int32]*Record, len(records)),
		members: make(map[int32]map[int64]struct{}, len(records)),
	}
	for i := range records {
		r := &records[i]
		idx.byID[r.ID] = r
		idx.members[r.ID] = make(map[int64]struct{})
	}
	return idx
}

// Get returns a zone record by id, or nil if unknown.
func (idx *Index) Get(id int32) *Record {
	return idx.byID[id]
}

// ZoneOf returns the unique zone containing the point, or nil if none
// (§4.4 zoneOf). Zones are expected non-overlapping by data-catalog
// convention; the first match wins if that invariant is violated.
func (idx *Index) ZoneOf(p Point) *Record {
	for i := range idx.records {
		if idx.records[i].Bounds.Contains(p.X, p.Y, p.Z) {
			return &idx.records[i]
		}
	}
	return nil
}

// Join adds a character to a zone's membership set.
func (idx *Index) Join(zoneID int32, characterID int64) {
	set := idx.members[zoneID]
	if set == nil {
		set = make(map[int64]struct{})
		idx.members[zoneID] = set
	}
	set[characterID] = struct{}{}
}

// Leave removes a character from a zone's membership set.
func (idx *Index) Leave(zoneID int32, characterID int64) {
	if set := idx.members[zoneID]; set != nil {
		delete(set, characterID)
	}
}

// Members returns the character ids currently in a zone. The returned slice
// is a fresh copy safe for the caller to range over while broadcasting.
func (idx *Index) Members(zoneID int32) []int64 {
	set := idx.members[zoneID]
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// MemberCount reports the current population of a zone.
func (idx *Index) MemberCount(zoneID int32) int {
	return len(idx.members[zoneID])
}

// Transition moves a character's membership from one zone to another,
// returning true if the zone actually changed (§4.4: "Zone transitions are
// detected on movement commit").
func (idx *Index) Transition(characterID int64, from, to int32) bool {
	if from == to {
		return false
	}
	if from != 0 {
		idx.Leave(from, characterID)
	}
	if to != 0 {
		idx.Join(to, characterID)
	}
	return true
}
