package skill

import "math"

// MaxLevel is the absolute ceiling any skill can reach; elite skills use it,
// non-elite skills are clamped to NormalCap instead (§3).
const MaxLevel = 120

// NormalCap is the level ceiling for every skill outside the elite set.
const NormalCap = 99

// xpTable[L] holds the cumulative XP required to reach level L+1, indexed
// 0..MaxLevel-1, i.e. xpTable[0] is the XP for level 1 (always 0) and
// xpTable[98] is the XP for level 99 (13,034,431 — the classical value).
// Levels 100-120 extend the same generating formula rather than being an
// arbitrary continuation (§9 design notes, OQ resolved in SPEC_FULL §13).
var xpTable = buildXPTable()

func buildXPTable() [MaxLevel]int64 {
	var table [MaxLevel]int64
	var accum int64
	for level := 1; level <= MaxLevel; level++ {
		table[level-1] = accum / 4
		accum += int64(math.Floor(float64(level) + 300*math.Pow(2, float64(level)/7.0)))
	}
	return table
}

// LevelFromXP returns the greatest level L <= cap such that
// XP_TABLE[L-1] <= xp (§3, §8 boundary laws).
func LevelFromXP(xp int64, cap int) int {
	if cap > MaxLevel {
		cap = MaxLevel
	}
	if cap < 1 {
		cap = 1
	}
	level := 1
	for l := 1; l <= cap; l++ {
		if xpTable[l-1] <= xp {
			level = l
		} else {
			break
		}
	}
	return level
}

// XPForLevel returns the cumulative XP threshold for reaching the given
// level (1-indexed). Levels above MaxLevel clamp to the MaxLevel threshold.
func XPForLevel(level int) int64 {
	if level < 1 {
		level = 1
	}
	if level > MaxLevel {
		level = MaxLevel
	}
	return xpTable[level-1]
}

// MaxXP is the absolute XP ceiling any skill record may hold (§3).
const MaxXP int64 = 200_000_000
