// Package data loads the static game-data tables (§6 DataCatalog: NPC
// templates, resource templates, item definitions, zone records, skill
// definitions) from YAML files at startup into typed, read-only lookup
// tables. Grounded on the teacher's internal/data/mapdata.go
// LoadMapData(yamlPath) pattern, generalized from one file to five.
package data

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ItemDef is one entry of the item catalog (§6 DataCatalog: "including
// {tradeable, buyLimit, stackable, maxStack}").
type ItemDef struct {
	ID         int32  `yaml:"id"`
	Name       string `yaml:"name"`
	Stackable  bool   `yaml:"stackable"`
	MaxStack   int32  `yaml:"max_stack"`
	Tradeable  bool   `yaml:"tradeable"`
	BuyLimit   int64  `yaml:"buy_limit"`
}

// NpcTemplateDef is one entry of the NPC template catalog (§4.5).
type NpcTemplateDef struct {
	ID             int32   `yaml:"id"`
	Name           string  `yaml:"name"`
	MaxHP          int32   `yaml:"max_hp"`
	Speed          float64 `yaml:"speed"`
	Aggressive     bool    `yaml:"aggressive"`
	RespawnSeconds int64   `yaml:"respawn_seconds"`
	Drops          []struct {
		ItemID int32   `yaml:"item_id"`
		MinQty int32   `yaml:"min_qty"`
		MaxQty int32   `yaml:"max_qty"`
		Chance float64 `yaml:"chance"`
	} `yaml:"drops"`
}

// ResourceTemplateDef is one entry of the resource template catalog (§4.6).
type ResourceTemplateDef struct {
	ID              int32   `yaml:"id"`
	Name            string  `yaml:"name"`
	Skill           string  `yaml:"skill"`
	LevelRequired   int     `yaml:"level_required"`
	BonusLevelReq   int     `yaml:"bonus_level_required"`
	BaseXP          int64   `yaml:"base_xp"`
	RespawnTicks    int64   `yaml:"respawn_ticks"`
	DepletionChance float64 `yaml:"depletion_chance"`
	YieldItemID     int32   `yaml:"yield_item_id"`
	YieldMinQty     int32   `yaml:"yield_min_qty"`
	YieldMaxQty     int32   `yaml:"yield_max_qty"`
}

// ZoneDef is one entry of the zone record catalog (§3 ZoneRecord).
type ZoneDef struct {
	ID         int32   `yaml:"id"`
	Name       string  `yaml:"name"`
	MinX       float64 `yaml:"min_x"`
	MinY       float64 `yaml:"min_y"`
	MinZ       float64 `yaml:"min_z"`
	MaxX       float64 `yaml:"max_x"`
	MaxY       float64 `yaml:"max_y"`
	MaxZ       float64 `yaml:"max_z"`
	SafeZone   bool    `yaml:"safe_zone"`
	PvPEnabled bool    `yaml:"pvp_enabled"`
	MinLevel   int     `yaml:"min_level"`
	MaxLevel   int     `yaml:"max_level"`
}

// SkillDef is one entry of the skill definition catalog (§9 OQ2 registry).
type SkillDef struct {
	Name     string `yaml:"name"`
	MaxLevel int    `yaml:"max_level"`
	Elite    bool   `yaml:"elite"`
}

// Catalog is the immutable, startup-loaded DataCatalog (§6). No runtime
// mutation; a restart is required to pick up edited YAML.
type Catalog struct {
	items             map[int32]ItemDef
	npcTemplates      map[int32]NpcTemplateDef
	resourceTemplates map[int32]ResourceTemplateDef
	zones             map[int32]ZoneDef
	skills            map[string]SkillDef
}

func (c *Catalog) Item(id int32) *ItemDef {
	if v, ok := c.items[id]; ok {
		return &v
	}
	return nil
}

func (c *Catalog) NpcTemplate(id int32) *NpcTemplateDef {
	if v, ok := c.npcTemplates[id]; ok {
		return &v
	}
	return nil
}

func (c *Catalog) ResourceTemplate(id int32) *ResourceTemplateDef {
	if v, ok := c.resourceTemplates[id]; ok {
		return &v
	}
	return nil
}

// AllItems returns every loaded item definition, for callers that build
// their own lookup structures (e.g. an inventory.Catalog adapter).
func (c *Catalog) AllItems() []ItemDef {
	out := make([]ItemDef, 0, len(c.items))
	for _, it := range c.items {
		out = append(out, it)
	}
	return out
}

// AllNpcTemplates returns every loaded NPC template, for seeding npcmgr.Manager.
func (c *Catalog) AllNpcTemplates() []NpcTemplateDef {
	out := make([]NpcTemplateDef, 0, len(c.npcTemplates))
	for _, n := range c.npcTemplates {
		out = append(out, n)
	}
	return out
}

// AllResourceTemplates returns every loaded resource template, for seeding
// resourcemgr.Manager.
func (c *Catalog) AllResourceTemplates() []ResourceTemplateDef {
	out := make([]ResourceTemplateDef, 0, len(c.resourceTemplates))
	for _, r := range c.resourceTemplates {
		out = append(out, r)
	}
	return out
}

// AllSkills returns every loaded skill definition.
func (c *Catalog) AllSkills() []SkillDef {
	out := make([]SkillDef, 0, len(c.skills))
	for _, s := range c.skills {
		out = append(out, s)
	}
	return out
}

func (c *Catalog) Zones() []ZoneDef {
	out := make([]ZoneDef, 0, len(c.zones))
	for _, z := range c.zones {
		out = append(out, z)
	}
	return out
}

func (c *Catalog) Skill(name string) *SkillDef {
	if v, ok := c.skills[name]; ok {
		return &v
	}
	return nil
}

type itemsFile struct {
	Items []ItemDef `yaml:"items"`
}
type npcTemplatesFile struct {
	Npcs []NpcTemplateDef `yaml:"npcs"`
}
type resourceTemplatesFile struct {
	Resources []ResourceTemplateDef `yaml:"resources"`
}
type zonesFile struct {
	Zones []ZoneDef `yaml:"zones"`
}
type skillsFile struct {
	Skills []SkillDef `yaml:"skills"`
}

// Load reads items.yaml, npc_templates.yaml, resource_templates.yaml,
// zones.yaml and skills.yaml from dir, matching the teacher's one-file-per
// table convention (data/yaml/*.yaml, §10).
func Load(dir string) (*Catalog, error) {
	cat := &Catalog{
		items:             map[int32]ItemDef{},
		npcTemplates:      map[int32]NpcTemplateDef{},
		resourceTemplates: map[int32]ResourceTemplateDef{},
		zones:             map[int32]ZoneDef{},
		skills:            map[string]SkillDef{},
	}

	var items itemsFile
	if err := loadYAML(filepath.Join(dir, "items.yaml"), &items); err != nil {
		return nil, err
	}
	for _, it := range items.Items {
		cat.items[it.ID] = it
	}

	var npcs npcTemplatesFile
	if err := loadYAML(filepath.Join(dir, "npc_templates.yaml"), &npcs); err != nil {
		return nil, err
	}
	for _, n := range npcs.Npcs {
		cat.npcTemplates[n.ID] = n
	}

	var resources resourceTemplatesFile
	if err := loadYAML(filepath.Join(dir, "resource_templates.yaml"), &resources); err != nil {
		return nil, err
	}
	for _, r := range resources.Resources {
		cat.resourceTemplates[r.ID] = r
	}

	var zones zonesFile
	if err := loadYAML(filepath.Join(dir, "zones.yaml"), &zones); err != nil {
		return nil, err
	}
	for _, z := range zones.Zones {
		cat.zones[z.ID] = z
	}

	var skills skillsFile
	if err := loadYAML(filepath.Join(dir, "skills.yaml"), &skills); err != nil {
		return nil, err
	}
	for _, s := range skills.Skills {
		cat.skills[s.Name] = s
	}

	return cat, nil
}

func loadYAML(path string, out any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
