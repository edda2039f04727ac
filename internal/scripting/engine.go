// Package scripting wraps a gopher-lua VM for NPC behavior hooks: drop
// table modifiers and on-interact dialog scripts (SPEC_FULL §11 domain
// stack). Grounded on the teacher's internal/scripting/engine.go bridge
// pattern (single VM, directory-loaded scripts, table-in/table-out calls
// guarded with Protect:true), narrowed from the teacher's full combat/
// skill/potion/PK bridge surface to this repo's NPC-hook surface.
package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single Lua VM. The VM itself isn't safe for concurrent use,
// and this hook surface is called from two different goroutines in
// practice — ModifyDrop from the GameLoop tick and RunDialog from a
// connection's own goroutine via Router — so mu serializes every call the
// same way exchange.Engine and inventory.Holdings serialize theirs.
type Engine struct {
	vm  *lua.LState
	mu  sync.Mutex
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads every .lua file from dir (flat,
// unlike the teacher's per-feature subdirectories, since this repo's hook
// surface is narrow enough for one directory).
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{SkipOpenLibs: false})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}
	if err := e.loadDir(scriptsDir); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load scripts: %w", err)
	}
	return e, nil
}

func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// DropContext carries the roll inputs for a drop table modifier hook.
type DropContext struct {
	NpcTemplateID int32
	KillerLevel   int
	ItemID        int32
	BaseChance    float64
}

// DropModifierResult is the modified chance/quantity multiplier.
type DropModifierResult struct {
	ChanceMultiplier float64
	QuantityBonus    int32
}

// ModifyDrop calls Lua modify_drop(ctx) if defined, letting server-side
// scripts adjust a rolled drop row (e.g. level-scaled drop-rate events).
// Returns an identity result if no such function is loaded.
func (e *Engine) ModifyDrop(ctx DropContext) DropModifierResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	fn := e.vm.GetGlobal("modify_drop")
	if fn == lua.LNil {
		return DropModifierResult{ChanceMultiplier: 1.0}
	}

	t := e.vm.NewTable()
	t.RawSetString("npc_template_id", lua.LNumber(ctx.NpcTemplateID))
	t.RawSetString("killer_level", lua.LNumber(ctx.KillerLevel))
	t.RawSetString("item_id", lua.LNumber(ctx.ItemID))
	t.RawSetString("base_chance", lua.LNumber(ctx.BaseChance))

	if err := e.vm.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, t); err != nil {
		e.log.Error("lua modify_drop error", zap.Error(err))
		return DropModifierResult{ChanceMultiplier: 1.0}
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)
	rt, ok := result.(*lua.LTable)
	if !ok {
		return DropModifierResult{ChanceMultiplier: 1.0}
	}

	mult := float64(lua.LVAsNumber(rt.RawGetString("chance_multiplier")))
	if mult == 0 {
		mult = 1.0
	}
	return DropModifierResult{
		ChanceMultiplier: mult,
		QuantityBonus:    int32(lua.LVAsNumber(rt.RawGetString("quantity_bonus"))),
	}
}

// DialogContext carries the inputs for an on-interact dialog hook.
type DialogContext struct {
	NpcTemplateID int32
	CharacterID   int64
	StageID       int
}

// DialogResult is one step of a scripted NPC conversation.
type DialogResult struct {
	Text    string
	Options []string
	NextStage int
}

// RunDialog calls Lua npc_dialog(ctx) if defined for the template.
func (e *Engine) RunDialog(ctx DialogContext) *DialogResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	fn := e.vm.GetGlobal("npc_dialog")
	if fn == lua.LNil {
		return nil
	}

	t := e.vm.NewTable()
	t.RawSetString("npc_template_id", lua.LNumber(ctx.NpcTemplateID))
	t.RawSetString("character_id", lua.LNumber(ctx.CharacterID))
	t.RawSetString("stage_id", lua.LNumber(ctx.StageID))

	if err := e.vm.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, t); err != nil {
		e.log.Error("lua npc_dialog error", zap.Error(err))
		return nil
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)
	rt, ok := result.(*lua.LTable)
	if !ok {
		return nil
	}

	res := &DialogResult{
		Text:      lStr(rt, "text"),
		NextStage: lInt(rt, "next_stage"),
	}
	if optsVal, ok := rt.RawGetString("options").(*lua.LTable); ok {
		optsVal.ForEach(func(_, v lua.LValue) {
			res.Options = append(res.Options, lua.LVAsString(v))
		})
	}
	return res
}

func lInt(t *lua.LTable, key string) int {
	return int(lua.LVAsNumber(t.RawGetString(key)))
}

func lStr(t *lua.LTable, key string) string {
	return lua.LVAsString(t.RawGetString(key))
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
