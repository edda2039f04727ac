// Package inventory implements InventoryEngine (§4.8): the 28-slot
// backpack, the 10x50 bank, equipment, and atomic slot-to-slot transfers.
// Grounded on the teacher's internal/world/inventory.go (stacking, slot
// list) and internal/world/equipment.go (worn-item bookkeeping), adapted
// from the teacher's unbounded item list to the spec's fixed slot indices.
package inventory

import "sync"

const (
	BackpackSlots = 28
	BankTabs      = 10
	BankSlotsPerTab = 50
)

// Stack is one occupied or empty slot. An empty slot has ItemID == 0.
type Stack struct {
	ItemID   int32
	Quantity int64
}

func (s Stack) Empty() bool { return s.ItemID == 0 || s.Quantity <= 0 }

// ItemDef is the subset of catalog data the engine needs to decide
// stacking and capacity (§6 DataCatalog item fields).
type ItemDef struct {
	ID        int32
	MaxStack  int64
	Tradeable bool
}

// Catalog resolves item ids to their static definition.
type Catalog interface {
	Item(id int32) *ItemDef
}

// Backpack is a character's fixed-size inventory (§4.8).
type Backpack struct {
	Slots [BackpackSlots]Stack
}

// Bank is a character's 10-tab, 50-slot-per-tab storage (§4.8). Slots with
// Quantity == 0 and a non-zero ItemID are placeholders reserving a tab
// position for a known item the character has never deposited (§12
// supplemented feature: bank placeholders).
type Bank struct {
	Tabs [BankTabs][BankSlotsPerTab]Stack
}

// Equipment holds one item per worn slot, keyed by slot name (e.g. "weapon",
// "head", "body") rather than a fixed array, mirroring the teacher's
// name-keyed doll slots.
type Equipment struct {
	Worn map[string]Stack
}

func NewEquipment() *Equipment { return &Equipment{Worn: make(map[string]Stack)} }

// Holdings bundles one character's mutable item state behind a mutex so
// the engine can serialize concurrent mutations per character (§4.8 "all
// mutations are single-transaction... concurrent mutations for the same
// character are serialized").
type Holdings struct {
	mu        sync.Mutex
	Backpack  Backpack
	Bank      Bank
	Equipment *Equipment
}

func NewHoldings() *Holdings {
	return &Holdings{Equipment: NewEquipment()}
}

// Engine mutates Holdings against a Catalog for stacking/capacity rules.
type Engine struct {
	catalog Catalog
}

func NewEngine(catalog Catalog) *Engine {
	return &Engine{catalog: catalog}
}

// addToSlots implements the §4.8 add policy shared by backpack deposit and
// bank deposit: coalesce into the first existing stack up to maxStack, else
// allocate the lowest-index empty slot. Returns the quantity actually
// placed (may be less than requested if no further capacity exists).
func addToSlots(slots []Stack, itemID int32, qty int64, maxStack int64) int64 {
	remaining := qty

	for i := range slots {
		if remaining == 0 {
			break
		}
		if slots[i].ItemID == itemID && !slots[i].Empty() && slots[i].Quantity < maxStack {
			room := maxStack - slots[i].Quantity
			take := remaining
			if take > room {
				take = room
			}
			slots[i].Quantity += take
			remaining -= take
		}
	}

	for i := range slots {
		if remaining == 0 {
			break
		}
		// A placeholder (ItemID set, Quantity 0) only accepts its own item.
		if slots[i].Empty() && (slots[i].ItemID == 0 || slots[i].ItemID == itemID) {
			take := remaining
			if take > maxStack {
				take = maxStack
			}
			slots[i] = Stack{ItemID: itemID, Quantity: take}
			remaining -= take
		}
	}

	return qty - remaining
}

func removeFromSlots(slots []Stack, itemID int32, qty int64) int64 {
	remaining := qty
	for i := range slots {
		if remaining == 0 {
			break
		}
		if slots[i].ItemID != itemID || slots[i].Empty() {
			continue
		}
		take := remaining
		if take > slots[i].Quantity {
			take = slots[i].Quantity
		}
		slots[i].Quantity -= take
		remaining -= take
		if slots[i].Quantity == 0 {
			slots[i] = Stack{}
		}
	}
	return qty - remaining
}

func totalOf(slots []Stack, itemID int32) int64 {
	var total int64
	for _, s := range slots {
		if s.ItemID == itemID {
			total += s.Quantity
		}
	}
	return total
}

// AddToBackpack deposits qty of itemID into a character's backpack,
// returning the quantity actually placed.
func (e *Engine) AddToBackpack(h *Holdings, itemID int32, qty int64) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return e.addToBackpackLocked(h, itemID, qty)
}

func (e *Engine) addToBackpackLocked(h *Holdings, itemID int32, qty int64) int64 {
	def := e.catalog.Item(itemID)
	maxStack := int64(1)
	if def != nil && def.MaxStack > 0 {
		maxStack = def.MaxStack
	}
	return addToSlots(h.Backpack.Slots[:], itemID, qty, maxStack)
}

// RemoveFromBackpack withdraws up to qty of itemID, returning the quantity
// actually removed.
func (e *Engine) RemoveFromBackpack(h *Holdings, itemID int32, qty int64) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return removeFromSlots(h.Backpack.Slots[:], itemID, qty)
}

// BackpackTotal returns the total quantity of itemID held across all
// backpack slots.
func (e *Engine) BackpackTotal(h *Holdings, itemID int32) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return totalOf(h.Backpack.Slots[:], itemID)
}

// DepositToBank moves qty of itemID from backpack to a bank tab (§4.8
// "Bank deposit prefers existing stacks in the target tab").
func (e *Engine) DepositToBank(h *Holdings, tab int, itemID int32, qty int64) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if tab < 0 || tab >= BankTabs {
		return 0
	}
	removed := removeFromSlots(h.Backpack.Slots[:], itemID, qty)
	if removed == 0 {
		return 0
	}
	def := e.catalog.Item(itemID)
	maxStack := int64(1)
	if def != nil && def.MaxStack > 0 {
		maxStack = def.MaxStack
	}
	placed := addToSlots(h.Bank.Tabs[tab][:], itemID, removed, maxStack)
	if placed < removed {
		// Partial placement: refund what the bank tab could not accept.
		e.addToBackpackLocked(h, itemID, removed-placed)
	}
	return placed
}

// WithdrawFromBank moves qty of itemID from a bank tab back to the
// backpack, refunding the caller only when the backpack can accept the
// full requested quantity (§4.8).
func (e *Engine) WithdrawFromBank(h *Holdings, tab int, itemID int32, qty int64) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if tab < 0 || tab >= BankTabs {
		return 0
	}
	available := totalOf(h.Bank.Tabs[tab][:], itemID)
	if available < qty {
		return 0
	}
	placed := e.addToBackpackLocked(h, itemID, qty)
	if placed < qty {
		return 0
	}
	removeFromSlots(h.Bank.Tabs[tab][:], itemID, placed)
	return placed
}

// MoveBackpackSlot implements §4.8's move-is-swap-or-assign rule within the
// backpack: if the destination is occupied the two slots swap, otherwise
// the source moves into the empty destination.
func (e *Engine) MoveBackpackSlot(h *Holdings, from, to int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if from < 0 || from >= BackpackSlots || to < 0 || to >= BackpackSlots || from == to {
		return false
	}
	h.Backpack.Slots[from], h.Backpack.Slots[to] = h.Backpack.Slots[to], h.Backpack.Slots[from]
	return true
}

// Equip moves an item from the backpack into an equipment slot, swapping
// out and returning any previously worn item to the backpack.
func (e *Engine) Equip(h *Holdings, slot string, itemID int32) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	removed := removeFromSlots(h.Backpack.Slots[:], itemID, 1)
	if removed == 0 {
		return false
	}
	if prev, ok := h.Equipment.Worn[slot]; ok && !prev.Empty() {
		e.addToBackpackLocked(h, prev.ItemID, prev.Quantity)
	}
	h.Equipment.Worn[slot] = Stack{ItemID: itemID, Quantity: 1}
	return true
}

// Unequip returns a worn item to the backpack.
func (e *Engine) Unequip(h *Holdings, slot string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev, ok := h.Equipment.Worn[slot]
	if !ok || prev.Empty() {
		return false
	}
	placed := e.addToBackpackLocked(h, prev.ItemID, prev.Quantity)
	if placed < prev.Quantity {
		return false
	}
	delete(h.Equipment.Worn, slot)
	return true
}

// PlaceBankPlaceholder reserves a bank slot for an item the character has
// never deposited, without holding any quantity (§12 supplemented feature).
func (e *Engine) PlaceBankPlaceholder(h *Holdings, tab int, slotIndex int, itemID int32) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if tab < 0 || tab >= BankTabs || slotIndex < 0 || slotIndex >= BankSlotsPerTab {
		return false
	}
	if !h.Bank.Tabs[tab][slotIndex].Empty() {
		return false
	}
	h.Bank.Tabs[tab][slotIndex] = Stack{ItemID: itemID, Quantity: 0}
	return true
}
