// Package ledger implements exchange.Ledger over the live character
// holdings table: reserving and releasing gold/items escrows them out of
// and back into a character's backpack, and a matched buy's items sit in
// an escrow pool until the buyer issues an explicit collect (§4.9 "seller
// gold was already credited at match time but the offer record is retired
// on collect"). Grounded on the teacher's internal/system/trade.go escrow
// bookkeeping around a live inventory, restyled around InventoryEngine.
package ledger

import (
	"sync"

	"github.com/duskhollow/realm/internal/inventory"
)

// GoldItemID is the currency item id (§6 DataCatalog, "Gold Coins",
// tradeable=false since gold moves through escrow rather than the
// exchange order book itself).
const GoldItemID int32 = 200

// CharacterLookup resolves a character's live holdings, without the
// ledger needing to depend on the session/router package directly.
type CharacterLookup interface {
	Holdings(characterID int64) (*inventory.Holdings, bool)
}

// Ledger bridges exchange.Engine to InventoryEngine.
type Ledger struct {
	mu      sync.Mutex
	lookup  CharacterLookup
	inv     *inventory.Engine
	pending map[int64]map[int32]int64 // characterID -> itemID -> qty awaiting collection
}

func New(lookup CharacterLookup, inv *inventory.Engine) *Ledger {
	return &Ledger{lookup: lookup, inv: inv, pending: make(map[int64]map[int32]int64)}
}

func (l *Ledger) ReserveGold(characterID int64, amount int64) bool {
	return l.reserve(characterID, GoldItemID, amount)
}

func (l *Ledger) ReleaseGold(characterID int64, amount int64) {
	l.release(characterID, GoldItemID, amount)
}

func (l *Ledger) CreditGold(characterID int64, amount int64) {
	l.release(characterID, GoldItemID, amount)
}

func (l *Ledger) ReserveItems(characterID int64, itemID int32, qty int64) bool {
	return l.reserve(characterID, itemID, qty)
}

func (l *Ledger) ReleaseItems(characterID int64, itemID int32, qty int64) {
	l.release(characterID, itemID, qty)
}

func (l *Ledger) reserve(characterID int64, itemID int32, qty int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	h, ok := l.lookup.Holdings(characterID)
	if !ok {
		return false
	}
	if l.inv.BackpackTotal(h, itemID) < qty {
		return false
	}
	l.inv.RemoveFromBackpack(h, itemID, qty)
	return true
}

func (l *Ledger) release(characterID int64, itemID int32, qty int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	h, ok := l.lookup.Holdings(characterID)
	if !ok {
		return
	}
	l.inv.AddToBackpack(h, itemID, qty)
}

// HoldForCollection escrows a matched buy's items rather than depositing
// them immediately — the buyer may not be connected when the match runs.
func (l *Ledger) HoldForCollection(characterID int64, itemID int32, qty int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	byItem := l.pending[characterID]
	if byItem == nil {
		byItem = make(map[int32]int64)
		l.pending[characterID] = byItem
	}
	byItem[itemID] += qty
}

// Collect deposits everything held for characterID into their backpack.
// Returns nil if nothing was pending or the character isn't connected.
func (l *Ledger) Collect(characterID int64) map[int32]int64 {
	l.mu.Lock()
	byItem := l.pending[characterID]
	delete(l.pending, characterID)
	l.mu.Unlock()
	if len(byItem) == 0 {
		return nil
	}

	h, ok := l.lookup.Holdings(characterID)
	if !ok {
		l.mu.Lock()
		l.pending[characterID] = byItem
		l.mu.Unlock()
		return nil
	}
	for itemID, qty := range byItem {
		l.inv.AddToBackpack(h, itemID, qty)
	}
	return byItem
}
