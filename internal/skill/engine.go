// Package skill implements the SkillEngine (§4.7): the canonical XP table,
// level derivation, XP grants, combat level, and the shared skill-action
// pipeline (mine/chop/fish/cook/smith/generic). Grounded on the teacher's
// internal/system/skill.go action-processor pipeline, restyled for this
// domain's skill set (SPEC_FULL §13 OQ2).
package skill

import (
	"math"
	"math/rand"
)

// Name identifies one skill in the canonical registry (SPEC_FULL §13 OQ2).
type Name string

const (
	Attack        Name = "attack"
	Strength      Name = "strength"
	Defence       Name = "defence"
	Hitpoints     Name = "hitpoints"
	Ranged        Name = "ranged"
	Prayer        Name = "prayer"
	Magic         Name = "magic"
	Cooking       Name = "cooking"
	Woodcutting   Name = "woodcutting"
	Fletching     Name = "fletching"
	Fishing       Name = "fishing"
	Firemaking    Name = "firemaking"
	Crafting      Name = "crafting"
	Smithing      Name = "smithing"
	Mining        Name = "mining"
	Herblore      Name = "herblore"
	Agility       Name = "agility"
	Thieving      Name = "thieving"
	Slayer        Name = "slayer"
	Farming       Name = "farming"
	Runecrafting  Name = "runecrafting"
	Hunter        Name = "hunter"
	Construction  Name = "construction"
	Dungeoneering Name = "dungeoneering"
	Invention     Name = "invention"
)

// AllSkills enumerates the canonical registry in a stable order, used to
// seed a fresh character's skill set and to compute total_level.
var AllSkills = []Name{
	Attack, Strength, Defence, Hitpoints, Ranged, Prayer, Magic,
	Cooking, Woodcutting, Fletching, Fishing, Firemaking, Crafting,
	Smithing, Mining, Herblore, Agility, Thieving, Slayer, Farming,
	Runecrafting, Hunter, Construction, Dungeoneering, Invention,
}

// eliteSkills cap at MaxLevel (120) instead of NormalCap (99).
var eliteSkills = map[Name]bool{
	Invention:     true,
	Slayer:        true,
	Dungeoneering: true,
	Herblore:      true,
	Farming:       true,
}

// IsElite reports whether a skill uses the 120 level cap.
func IsElite(n Name) bool { return eliteSkills[n] }

// Cap returns the level cap for a given skill.
func Cap(n Name) int {
	if IsElite(n) {
		return MaxLevel
	}
	return NormalCap
}

// Record is one (character, skill) row (§3 Skill).
type Record struct {
	Skill Name
	Level int
	XP    int64
}

// NewDefaultRecord seeds a skill at its starting level/xp (§3: hitpoints
// starts at level 10/xp 1154, everything else at level 1/xp 0).
func NewDefaultRecord(n Name) Record {
	if n == Hitpoints {
		return Record{Skill: n, Level: 10, XP: 1154}
	}
	return Record{Skill: n, Level: 1, XP: 0}
}

// GrantResult is returned by Grant.
type GrantResult struct {
	Granted   int64
	LeveledUp bool
	NewLevel  int
}

// Grant applies an XP award to a skill record: effective = floor(base *
// multipliers), caps at MaxXP, recomputes level from the canonical table
// using the skill's cap (§4.7).
func Grant(rec *Record, base float64, multipliers float64) GrantResult {
	effective := int64(math.Floor(base * multipliers))
	if effective < 0 {
		effective = 0
	}
	oldLevel := rec.Level
	newXP := rec.XP + effective
	if newXP > MaxXP {
		newXP = MaxXP
	}
	granted := newXP - rec.XP
	rec.XP = newXP
	rec.Level = LevelFromXP(rec.XP, Cap(rec.Skill))

	return GrantResult{
		Granted:   granted,
		LeveledUp: rec.Level > oldLevel,
		NewLevel:  rec.Level,
	}
}

// TotalLevel sums every skill's level (§3 Character.total_level, §8).
func TotalLevel(records map[Name]*Record) int {
	total := 0
	for _, r := range records {
		total += r.Level
	}
	return total
}

// combatSkills is the set whose changes trigger a combat-level recompute.
var combatSkills = map[Name]bool{
	Attack: true, Strength: true, Defence: true, Hitpoints: true,
	Prayer: true, Ranged: true, Magic: true,
}

// AffectsCombatLevel reports whether a skill change should trigger a
// combat-level recompute (§4.7: "Recompute combat level when any of
// {attack, strength, defence, hitpoints, prayer, ranged, magic, summoning}
// changes" — this build has no summoning skill, so that entry is omitted).
func AffectsCombatLevel(n Name) bool { return combatSkills[n] }

// CombatLevel implements the §4.7 closed-form combat level formula.
// summoning is fixed at 0 since this skill set has no summoning skill.
func CombatLevel(attack, strength, defence, hitpoints, prayer, ranged, magic int) int {
	const summoning = 0
	base := (float64(defence) + float64(hitpoints) + math.Floor(float64(prayer)/2) + math.Floor(float64(summoning)/2)) * 0.25
	melee := float64(attack+strength) * 0.325
	rangedMagic := math.Max(math.Floor(float64(ranged)*1.5), math.Floor(float64(magic)*1.5)) * 0.325
	return int(math.Floor(base + math.Max(melee, rangedMagic)))
}

// ActionKind identifies one of the §4.7 skill action processors.
type ActionKind string

const (
	MineOre   ActionKind = "mine_ore"
	ChopTree  ActionKind = "chop_tree"
	CatchFish ActionKind = "catch_fish"
	CookFood  ActionKind = "cook_food"
	SmithItem ActionKind = "smith_item"
	Generic   ActionKind = "generic"
)

// ActionRequest describes one attempted skill action (§4.7 pipeline steps
// 2-4: position/tool/level preconditions are validated by the caller before
// Resolve is invoked — this keeps Resolve a pure function of already-
// validated inputs, easing testing).
type ActionRequest struct {
	Kind          ActionKind
	Skill         Name
	Level         int   // the actor's current level in Skill
	LevelRequired int   // the action/node's level requirement
	BaseXP        float64
	DepletionRoll float64 // caller-supplied entropy source for determinism in tests
	SuccessRoll   float64
}

// ActionResult is returned by Resolve (§4.7 step 6).
type ActionResult struct {
	Success          bool
	XPGained         float64
	ResourceDepleted bool
}

// SuccessProbability computes the §4.7 mining-style success chance:
// min(0.95, 0.5 + 0.02*(level-levelReq)). Other gathering kinds reuse the
// same curve; cook_food/smith_item treat it as a quality check in the
// same shape, matching the teacher's single-pipeline-many-kinds pattern.
func SuccessProbability(level, levelRequired int) float64 {
	p := 0.5 + 0.02*float64(level-levelRequired)
	if p > 0.95 {
		return 0.95
	}
	if p < 0.0 {
		return 0.0
	}
	return p
}

// depletionChance returns the §8 scenario-6 per-harvest depletion chance for
// a gathering action kind (30% for mining, otherwise left to the resource
// template's own respawn configuration — see internal/resourcemgr).
func depletionChance(kind ActionKind) float64 {
	switch kind {
	case MineOre:
		return 0.30
	default:
		return 0.0
	}
}

// Resolve runs steps 4-6 of the §4.7 pipeline: success roll, then on
// success a possible depletion roll. Callers are responsible for the
// rate-limit/position/precondition steps (1-3) and the XP grant/inventory
// mutation side effects.
func Resolve(req ActionRequest) ActionResult {
	successP := SuccessProbability(req.Level, req.LevelRequired)
	if req.SuccessRoll >= successP {
		return ActionResult{Success: false}
	}

	result := ActionResult{Success: true, XPGained: req.BaseXP}
	if dc := depletionChance(req.Kind); dc > 0 && req.DepletionRoll < dc {
		result.ResourceDepleted = true
	}
	return result
}

// RollFloat64 is a tiny indirection point so callers can inject a seeded
// rand.Rand in tests instead of the package-level source.
func RollFloat64(r *rand.Rand) float64 {
	if r != nil {
		return r.Float64()
	}
	return rand.Float64()
}
