package scripting

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func writeScript(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}
}

func TestModifyDropAppliesLuaMultiplier(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "drops.lua", `
function modify_drop(ctx)
  local result = {}
  if ctx.npc_template_id == 42 then
    result.chance_multiplier = 2.0
    result.quantity_bonus = 1
  else
    result.chance_multiplier = 1.0
    result.quantity_bonus = 0
  end
  return result
end
`)

	e, err := NewEngine(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer e.Close()

	got := e.ModifyDrop(DropContext{NpcTemplateID: 42, KillerLevel: 10, ItemID: 7, BaseChance: 0.1})
	if got.ChanceMultiplier != 2.0 {
		t.Fatalf("ChanceMultiplier = %v, want 2.0", got.ChanceMultiplier)
	}
	if got.QuantityBonus != 1 {
		t.Fatalf("QuantityBonus = %v, want 1", got.QuantityBonus)
	}

	identity := e.ModifyDrop(DropContext{NpcTemplateID: 99})
	if identity.ChanceMultiplier != 1.0 {
		t.Fatalf("ChanceMultiplier for unmatched template = %v, want 1.0", identity.ChanceMultiplier)
	}
}

func TestModifyDropWithoutScriptIsIdentity(t *testing.T) {
	e, err := NewEngine(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer e.Close()

	got := e.ModifyDrop(DropContext{NpcTemplateID: 1})
	if got.ChanceMultiplier != 1.0 || got.QuantityBonus != 0 {
		t.Fatalf("unexpected result with no script loaded: %+v", got)
	}
}

func TestRunDialogReturnsStagedResponse(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "dialog.lua", `
function npc_dialog(ctx)
  local result = {}
  if ctx.stage_id == 0 then
    result.text = "Greetings, traveler."
    result.next_stage = 1
    result.options = {"Ask about the town", "Leave"}
  else
    result.text = "Safe travels."
    result.next_stage = -1
    result.options = {}
  end
  return result
end
`)

	e, err := NewEngine(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer e.Close()

	res := e.RunDialog(DialogContext{NpcTemplateID: 5, CharacterID: 100, StageID: 0})
	if res == nil {
		t.Fatal("expected non-nil dialog result")
	}
	if res.Text != "Greetings, traveler." {
		t.Fatalf("Text = %q", res.Text)
	}
	if res.NextStage != 1 {
		t.Fatalf("NextStage = %d, want 1", res.NextStage)
	}
	if len(res.Options) != 2 {
		t.Fatalf("Options = %v, want 2 entries", res.Options)
	}
}

func TestRunDialogWithoutScriptReturnsNil(t *testing.T) {
	e, err := NewEngine(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer e.Close()

	if res := e.RunDialog(DialogContext{NpcTemplateID: 1}); res != nil {
		t.Fatalf("expected nil result with no script loaded, got %+v", res)
	}
}
