package router

import (
	"context"

	"go.uber.org/zap"

	"github.com/duskhollow/realm/internal/gameerr"
	"github.com/duskhollow/realm/internal/inventory"
	"github.com/duskhollow/realm/internal/persist"
	"github.com/duskhollow/realm/internal/skill"
	"github.com/duskhollow/realm/internal/validation"
)

// CharacterLoader hydrates a CharacterState from durable storage when a
// session selects a character to play (§6 "Store interface" consumed by
// the core at session-bind time, ahead of any §4.12 gameplay packet).
type CharacterLoader interface {
	LoadCharacterState(ctx context.Context, characterID int64, nowMs int64) (*CharacterState, error)
}

// StoreLoader is the default CharacterLoader, built directly on
// persist.Store.
type StoreLoader struct {
	store persist.Store
}

func NewStoreLoader(store persist.Store) *StoreLoader {
	return &StoreLoader{store: store}
}

func (l *StoreLoader) LoadCharacterState(ctx context.Context, characterID int64, nowMs int64) (*CharacterState, error) {
	charRow, err := l.store.LoadCharacter(ctx, characterID)
	if err != nil {
		return nil, err
	}
	if charRow == nil || charRow.DeletedAt != nil {
		return nil, nil
	}

	accountRow, err := l.store.LoadAccountByID(ctx, charRow.AccountID)
	if err != nil {
		return nil, err
	}
	var accessLevel int16
	if accountRow != nil {
		accessLevel = accountRow.AccessLevel
	}

	skillRows, err := l.store.LoadSkills(ctx, characterID)
	if err != nil {
		return nil, err
	}
	skills := make(map[skill.Name]*skill.Record, len(skill.AllSkills))
	for _, n := range skill.AllSkills {
		rec := skill.NewDefaultRecord(n)
		skills[n] = &rec
	}
	for _, row := range skillRows {
		rec, ok := skills[skill.Name(row.Skill)]
		if !ok {
			continue
		}
		rec.Level = row.Level
		rec.XP = row.XP
	}

	holdings := inventory.NewHoldings()
	if err := hydrateHoldings(ctx, l.store, characterID, holdings); err != nil {
		return nil, err
	}

	position := validation.Position{X: charRow.X, Y: charRow.Y, Z: charRow.Z}
	return &CharacterState{
		CharacterID: charRow.ID,
		AccountID:   charRow.AccountID,
		Name:        charRow.Name,
		ZoneID:      charRow.ZoneID,
		Movement:    validation.NewMovementState(position, nowMs),
		Actions:     validation.NewActionBucket(),
		Holdings:    holdings,
		Skills:      skills,
		AccessLevel: accessLevel,
	}, nil
}

func hydrateHoldings(ctx context.Context, store persist.Store, characterID int64, holdings *inventory.Holdings) error {
	invRows, err := store.LoadInventory(ctx, characterID)
	if err != nil {
		return err
	}
	for _, row := range invRows {
		if row.Slot < 0 || row.Slot >= inventory.BackpackSlots {
			continue
		}
		holdings.Backpack.Slots[row.Slot] = inventory.Stack{ItemID: row.ItemID, Quantity: int64(row.Quantity)}
	}

	bankRows, err := store.LoadBank(ctx, characterID)
	if err != nil {
		return err
	}
	for _, row := range bankRows {
		if row.Tab < 0 || row.Tab >= inventory.BankTabs || row.Slot < 0 || row.Slot >= inventory.BankSlotsPerTab {
			continue
		}
		holdings.Bank.Tabs[row.Tab][row.Slot] = inventory.Stack{ItemID: row.ItemID, Quantity: int64(row.Quantity)}
	}

	eqRows, err := store.LoadEquipment(ctx, characterID)
	if err != nil {
		return err
	}
	for _, row := range eqRows {
		holdings.Equipment.Worn[row.SlotName] = inventory.Stack{ItemID: row.ItemID, Quantity: 1}
	}
	return nil
}

func (r *Router) handleSelectCharacter(sessionID uint64, env Envelope, nowMs int64) Reply {
	if r.loader == nil {
		return errorReply(gameerr.New(gameerr.InternalError, "character loading unavailable"))
	}
	characterID := intField(env.Payload, "characterId")

	state, err := r.loader.LoadCharacterState(context.Background(), characterID, nowMs)
	if err != nil {
		r.log.Error("character load failed", zap.Int64("character", characterID), zap.Error(err))
		return errorReply(gameerr.New(gameerr.InternalError, "character load failed"))
	}
	if state == nil {
		return errorReply(gameerr.New(gameerr.InvalidAction, "unknown or deleted character"))
	}

	state.SessionID = sessionID
	r.registry.Bind(state)
	if r.zones != nil {
		r.zones.Join(state.ZoneID, state.CharacterID)
	}
	return Reply{Kind: "character_selected", Payload: map[string]any{
		"characterId": state.CharacterID,
		"zoneId":      state.ZoneID,
	}}
}
