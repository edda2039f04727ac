// Package exchange implements ExchangeEngine: the double-sided order book,
// price-time priority matching, escrow, buy-limit windows, and atomic
// settlement. Grounded on the teacher's single-writer-per-resource locking
// pattern (mirrored here from inventory.Holdings) and the general shape of
// internal/persist's transactional repo calls, since the teacher has no
// direct trading-post analog in the retrieved subset.
package exchange

import (
	"sort"
	"sync"
)

// Side is one of the two offer directions.
type Side int

const (
	Buy Side = iota
	Sell
)

// Status is the §4.9 state machine: active -> completed | cancelled | expired.
type Status int

const (
	Active Status = iota
	Completed
	Cancelled
	Expired
)

const MaxActiveOffersPerCharacter = 8

// Offer is one resting or matched order (§3 Offer).
type Offer struct {
	ID              int64
	CharacterID     int64
	Side            Side
	ItemID          int32
	Price           int64
	Quantity        int64
	QuantityFilled  int64
	Status          Status
	CreatedAtMs     int64
	SlotIndex       int
}

func (o *Offer) Remaining() int64 { return o.Quantity - o.QuantityFilled }

// Transaction records one matched fill between a buy and a sell (§3 Transaction).
type Transaction struct {
	ID           int64
	BuyOfferID   int64
	SellOfferID  int64
	ItemID       int32
	Quantity     int64
	PricePerUnit int64
	CreatedAtMs  int64
}

// ItemPolicy is the subset of catalog data a create validates against.
type ItemPolicy struct {
	Tradeable           bool
	MaxQuantityPerOffer int64
	MinPrice            int64
	MaxPrice            int64
	BuyLimit            int64 // 0 = unlimited
}

// Ledger escrows gold and items; the engine calls it to reserve/release/
// credit/debit rather than mutating InventoryEngine state directly, keeping
// ExchangeEngine storage-agnostic.
type Ledger interface {
	ReserveGold(characterID int64, amount int64) bool
	ReleaseGold(characterID int64, amount int64)
	CreditGold(characterID int64, amount int64)
	ReserveItems(characterID int64, itemID int32, qty int64) bool
	ReleaseItems(characterID int64, itemID int32, qty int64)
	HoldForCollection(characterID int64, itemID int32, qty int64)
}

// book is the per-item order book: active buys and sells kept sorted for
// matching.
type book struct {
	buys  []*Offer
	sells []*Offer
}

// Engine owns every item's order book plus the buy-limit windows. Every
// public method takes mu, the same single-lock-per-resource shape
// inventory.Holdings uses for its backpack/bank/equipment mutation: offers
// arrive concurrently from one goroutine per connected session, and a
// matching pass mutates several resting offers in the item's book as well as
// the per-character slot, active-count and buy-limit tables, which span all
// items, so per-item locking would still need to serialize against the rest
// of CreateOffer anyway.
type Engine struct {
	ledger Ledger

	mu sync.Mutex

	books      map[int32]*book
	offers     map[int64]*Offer
	nextID     int64
	nextTxID   int64

	activeCount map[int64]int    // character -> count of active offers
	activeSlots map[int64]uint8 // character -> bitmask of occupied slots 0-7

	buyWindowStart map[windowKey]int64
	buyWindowQty   map[windowKey]int64

	buyLimitWindowMs int64
}

type windowKey struct {
	characterID int64
	itemID      int32
}

func NewEngine(ledger Ledger, buyLimitWindowMs int64) *Engine {
	return &Engine{
		ledger:           ledger,
		books:            make(map[int32]*book),
		offers:           make(map[int64]*Offer),
		activeCount:      make(map[int64]int),
		activeSlots:      make(map[int64]uint8),
		buyWindowStart:   make(map[windowKey]int64),
		buyWindowQty:     make(map[windowKey]int64),
		buyLimitWindowMs: buyLimitWindowMs,
	}
}

// allocateSlot finds the lowest free slot in 0..MaxActiveOffersPerCharacter-1
// for characterID, marks it occupied, and returns it. Returns -1 if none
// free (callers are expected to have already checked activeCount).
func (e *Engine) allocateSlot(characterID int64) int {
	used := e.activeSlots[characterID]
	for i := 0; i < MaxActiveOffersPerCharacter; i++ {
		if used&(1<<uint(i)) == 0 {
			e.activeSlots[characterID] = used | (1 << uint(i))
			return i
		}
	}
	return -1
}

func (e *Engine) releaseSlot(characterID int64, slot int) {
	e.activeSlots[characterID] &^= 1 << uint(slot)
}

func (e *Engine) bookFor(itemID int32) *book {
	b := e.books[itemID]
	if b == nil {
		b = &book{}
		e.books[itemID] = b
	}
	return b
}

// CreateResult is returned by CreateOffer.
type CreateResult struct {
	Offer        *Offer
	Transactions []Transaction
	Rejected     bool
	RejectReason string
}

// CreateOffer validates, escrows, books, and immediately runs matching for
// a new offer (§4.9 "Matching runs immediately on each new offer").
func (e *Engine) CreateOffer(characterID int64, side Side, itemID int32, price, quantity int64, nowMs int64, policy ItemPolicy) CreateResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !policy.Tradeable {
		return CreateResult{Rejected: true, RejectReason: "ITEM_NOT_TRADEABLE"}
	}
	if quantity < 1 || quantity > policy.MaxQuantityPerOffer {
		return CreateResult{Rejected: true, RejectReason: "INVALID_QUANTITY"}
	}
	if price < policy.MinPrice || price > policy.MaxPrice {
		return CreateResult{Rejected: true, RejectReason: "INVALID_PRICE"}
	}
	if e.activeCount[characterID] >= MaxActiveOffersPerCharacter {
		return CreateResult{Rejected: true, RejectReason: "NO_AVAILABLE_SLOT"}
	}

	if side == Buy && policy.BuyLimit > 0 {
		if e.buyWindowQuantity(characterID, itemID, nowMs)+quantity > policy.BuyLimit {
			return CreateResult{Rejected: true, RejectReason: "BUY_LIMIT_EXCEEDED"}
		}
	}

	if side == Buy {
		if !e.ledger.ReserveGold(characterID, price*quantity) {
			return CreateResult{Rejected: true, RejectReason: "INSUFFICIENT_GOLD"}
		}
	} else {
		if !e.ledger.ReserveItems(characterID, itemID, quantity) {
			return CreateResult{Rejected: true, RejectReason: "INSUFFICIENT_ITEMS"}
		}
	}

	slot := e.allocateSlot(characterID)
	if slot < 0 {
		return CreateResult{Rejected: true, RejectReason: "NO_AVAILABLE_SLOT"}
	}

	e.nextID++
	offer := &Offer{
		ID: e.nextID, CharacterID: characterID, Side: side, ItemID: itemID,
		Price: price, Quantity: quantity, Status: Active, CreatedAtMs: nowMs,
		SlotIndex: slot,
	}
	e.offers[offer.ID] = offer
	e.activeCount[characterID]++

	b := e.bookFor(itemID)
	if side == Buy {
		b.buys = append(b.buys, offer)
	} else {
		b.sells = append(b.sells, offer)
	}

	txs := e.match(b, offer, nowMs)

	if side == Buy && len(txs) > 0 {
		var filled int64
		for _, tx := range txs {
			filled += tx.Quantity
		}
		e.recordBuyWindow(characterID, itemID, nowMs, filled)
	}

	return CreateResult{Offer: offer, Transactions: txs}
}

// match runs price-time priority matching for a freshly booked offer
// against the opposite side (§4.9).
func (e *Engine) match(b *book, incoming *Offer, nowMs int64) []Transaction {
	var txs []Transaction

	if incoming.Side == Buy {
		candidates := make([]*Offer, 0, len(b.sells))
		for _, o := range b.sells {
			if o.Status == Active && o.Price <= incoming.Price {
				candidates = append(candidates, o)
			}
		}
		sort.SliceStable(candidates, func(i, j int) bool {
			if candidates[i].Price != candidates[j].Price {
				return candidates[i].Price < candidates[j].Price
			}
			return candidates[i].CreatedAtMs < candidates[j].CreatedAtMs
		})
		for _, resting := range candidates {
			if incoming.Remaining() == 0 {
				break
			}
			txs = append(txs, e.fill(incoming, resting, nowMs)...)
		}
	} else {
		candidates := make([]*Offer, 0, len(b.buys))
		for _, o := range b.buys {
			if o.Status == Active && o.Price >= incoming.Price {
				candidates = append(candidates, o)
			}
		}
		sort.SliceStable(candidates, func(i, j int) bool {
			if candidates[i].Price != candidates[j].Price {
				return candidates[i].Price > candidates[j].Price
			}
			return candidates[i].CreatedAtMs < candidates[j].CreatedAtMs
		})
		for _, resting := range candidates {
			if incoming.Remaining() == 0 {
				break
			}
			txs = append(txs, e.fill(incoming, resting, nowMs)...)
		}
	}

	return txs
}

// fill executes one match between an incoming offer and a resting offer at
// the resting offer's price (§4.9 "transaction price equals the existing
// offer's price").
func (e *Engine) fill(incoming, resting *Offer, nowMs int64) []Transaction {
	qty := min64(incoming.Remaining(), resting.Remaining())
	if qty <= 0 {
		return nil
	}
	txPrice := resting.Price

	var buy, sell *Offer
	if incoming.Side == Buy {
		buy, sell = incoming, resting
	} else {
		buy, sell = resting, incoming
	}

	e.ledger.CreditGold(sell.CharacterID, qty*txPrice)
	e.ledger.HoldForCollection(buy.CharacterID, buy.ItemID, qty)

	if incoming.Side == Buy && incoming.Price > txPrice {
		e.ledger.ReleaseGold(incoming.CharacterID, (incoming.Price-txPrice)*qty)
	}

	buy.QuantityFilled += qty
	sell.QuantityFilled += qty
	if buy.Remaining() == 0 {
		e.completeOffer(buy)
	}
	if sell.Remaining() == 0 {
		e.completeOffer(sell)
	}

	e.nextTxID++
	return []Transaction{{
		ID: e.nextTxID, BuyOfferID: buy.ID, SellOfferID: sell.ID,
		ItemID: incoming.ItemID, Quantity: qty, PricePerUnit: txPrice, CreatedAtMs: nowMs,
	}}
}

func (e *Engine) completeOffer(o *Offer) {
	if o.Status != Active {
		return
	}
	o.Status = Completed
	e.activeCount[o.CharacterID]--
	e.releaseSlot(o.CharacterID, o.SlotIndex)
}

// CancelOffer releases the unfilled portion's escrow and retires the offer
// (§4.9 "only the owner may cancel").
func (e *Engine) CancelOffer(characterID, offerID int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	o := e.offers[offerID]
	if o == nil || o.CharacterID != characterID || o.Status != Active {
		return false
	}
	remaining := o.Remaining()
	if o.Side == Buy {
		e.ledger.ReleaseGold(characterID, remaining*o.Price)
	} else {
		e.ledger.ReleaseItems(characterID, o.ItemID, remaining)
	}
	o.Status = Cancelled
	e.activeCount[characterID]--
	e.releaseSlot(characterID, o.SlotIndex)
	return true
}

// CollectOffer retires a completed or cancelled offer record once the
// buyer has taken their filled items (§4.9 "seller gold was already
// credited at match time but the offer record is retired on collect").
func (e *Engine) CollectOffer(characterID, offerID int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	o := e.offers[offerID]
	if o == nil || o.CharacterID != characterID {
		return false
	}
	if o.Status != Completed && o.Status != Cancelled {
		return false
	}
	delete(e.offers, offerID)
	return true
}

// ActiveOfferCount reports how many offers are currently resting in the
// book, for the metrics gauge.
func (e *Engine) ActiveOfferCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := 0
	for _, o := range e.offers {
		if o.Status == Active {
			n++
		}
	}
	return n
}

func (e *Engine) buyWindowQuantity(characterID int64, itemID int32, nowMs int64) int64 {
	key := windowKey{characterID, itemID}
	windowStart := nowMs / e.buyLimitWindowMs
	if e.buyWindowStart[key] != windowStart {
		return 0
	}
	return e.buyWindowQty[key]
}

func (e *Engine) recordBuyWindow(characterID int64, itemID int32, nowMs int64, qty int64) {
	key := windowKey{characterID, itemID}
	windowStart := nowMs / e.buyLimitWindowMs
	if e.buyWindowStart[key] != windowStart {
		e.buyWindowStart[key] = windowStart
		e.buyWindowQty[key] = 0
	}
	e.buyWindowQty[key] += qty
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
