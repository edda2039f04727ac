package exchange

import "testing"

type fakeLedger struct {
	gold      map[int64]int64
	reserved  map[int64]int64
	items     map[int64]map[int32]int64
	itemsResv map[int64]map[int32]int64
	held      map[int64]map[int32]int64
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		gold: make(map[int64]int64), reserved: make(map[int64]int64),
		items: make(map[int64]map[int32]int64), itemsResv: make(map[int64]map[int32]int64),
		held: make(map[int64]map[int32]int64),
	}
}

func (l *fakeLedger) ReserveGold(characterID int64, amount int64) bool {
	if l.gold[characterID] < amount {
		return false
	}
	l.gold[characterID] -= amount
	l.reserved[characterID] += amount
	return true
}
func (l *fakeLedger) ReleaseGold(characterID int64, amount int64) {
	l.reserved[characterID] -= amount
	l.gold[characterID] += amount
}
func (l *fakeLedger) CreditGold(characterID int64, amount int64) { l.gold[characterID] += amount }
func (l *fakeLedger) ReserveItems(characterID int64, itemID int32, qty int64) bool {
	m := l.items[characterID]
	if m == nil || m[itemID] < qty {
		return false
	}
	m[itemID] -= qty
	if l.itemsResv[characterID] == nil {
		l.itemsResv[characterID] = make(map[int32]int64)
	}
	l.itemsResv[characterID][itemID] += qty
	return true
}
func (l *fakeLedger) ReleaseItems(characterID int64, itemID int32, qty int64) {
	l.itemsResv[characterID][itemID] -= qty
	if l.items[characterID] == nil {
		l.items[characterID] = make(map[int32]int64)
	}
	l.items[characterID][itemID] += qty
}
func (l *fakeLedger) HoldForCollection(characterID int64, itemID int32, qty int64) {
	if l.held[characterID] == nil {
		l.held[characterID] = make(map[int32]int64)
	}
	l.held[characterID][itemID] += qty
}

func defaultPolicy() ItemPolicy {
	return ItemPolicy{Tradeable: true, MaxQuantityPerOffer: 1000, MinPrice: 1, MaxPrice: 1_000_000, BuyLimit: 0}
}

func TestMatchAtRestingPriceWithRefund(t *testing.T) {
	ledger := newFakeLedger()
	ledger.items[2] = map[int32]int64{500: 10}
	ledger.gold[1] = 1000

	e := NewEngine(ledger, int64(4*60*60*1000))

	sellRes := e.CreateOffer(2, Sell, 500, 50, 10, 1000, defaultPolicy())
	if sellRes.Rejected {
		t.Fatalf("sell create rejected: %s", sellRes.RejectReason)
	}

	buyRes := e.CreateOffer(1, Buy, 500, 60, 10, 2000, defaultPolicy())
	if buyRes.Rejected {
		t.Fatalf("buy create rejected: %s", buyRes.RejectReason)
	}
	if len(buyRes.Transactions) != 1 {
		t.Fatalf("transactions = %d, want 1", len(buyRes.Transactions))
	}
	tx := buyRes.Transactions[0]
	if tx.PricePerUnit != 50 {
		t.Fatalf("tx price = %d, want 50 (resting offer price)", tx.PricePerUnit)
	}

	// buyer reserved 60*10=600, only 50*10=500 actually spent, 100 refunded
	if ledger.gold[1] != 500 {
		t.Fatalf("buyer gold after match = %d, want 500 (1000 - 600 reserved + 100 refund)", ledger.gold[1])
	}
	if ledger.gold[2] != 500 {
		t.Fatalf("seller gold after match = %d, want 500", ledger.gold[2])
	}
	if ledger.held[1][500] != 10 {
		t.Fatalf("buyer held items = %d, want 10", ledger.held[1][500])
	}
	if buyRes.Offer.Status != Completed || sellRes.Offer.Status != Completed {
		t.Fatalf("offers not both completed: buy=%v sell=%v", buyRes.Offer.Status, sellRes.Offer.Status)
	}
}

func TestPriceTimePriorityOrdersCheapestFirst(t *testing.T) {
	ledger := newFakeLedger()
	ledger.items[10] = map[int32]int64{1: 5}
	ledger.items[11] = map[int32]int64{1: 5}
	ledger.gold[1] = 10000

	e := NewEngine(ledger, int64(4*60*60*1000))
	e.CreateOffer(10, Sell, 1, 100, 5, 1000, defaultPolicy())
	e.CreateOffer(11, Sell, 1, 80, 5, 1001, defaultPolicy())

	res := e.CreateOffer(1, Buy, 1, 100, 5, 2000, defaultPolicy())
	if len(res.Transactions) != 1 {
		t.Fatalf("transactions = %d, want 1", len(res.Transactions))
	}
	if res.Transactions[0].SellOfferID != 2 {
		t.Fatalf("matched sell offer id = %d, want the cheaper offer (id 2)", res.Transactions[0].SellOfferID)
	}
}

func TestCancelReturnsEscrow(t *testing.T) {
	ledger := newFakeLedger()
	ledger.gold[1] = 1000

	e := NewEngine(ledger, int64(4*60*60*1000))
	res := e.CreateOffer(1, Buy, 1, 10, 5, 1000, defaultPolicy())
	if ledger.gold[1] != 950 {
		t.Fatalf("gold after reserve = %d, want 950", ledger.gold[1])
	}

	if !e.CancelOffer(1, res.Offer.ID) {
		t.Fatal("CancelOffer returned false")
	}
	if ledger.gold[1] != 1000 {
		t.Fatalf("gold after cancel = %d, want 1000 (escrow returned)", ledger.gold[1])
	}
	if res.Offer.Status != Cancelled {
		t.Fatalf("status = %v, want Cancelled", res.Offer.Status)
	}
}

func TestBuyLimitExceeded(t *testing.T) {
	ledger := newFakeLedger()
	ledger.gold[1] = 100000

	e := NewEngine(ledger, int64(4*60*60*1000))
	policy := defaultPolicy()
	policy.BuyLimit = 10

	res := e.CreateOffer(1, Buy, 1, 10, 11, 1000, policy)
	if !res.Rejected || res.RejectReason != "BUY_LIMIT_EXCEEDED" {
		t.Fatalf("result = %+v, want BUY_LIMIT_EXCEEDED rejection", res)
	}
}

func TestMaxActiveOffersEnforced(t *testing.T) {
	ledger := newFakeLedger()
	ledger.gold[1] = 1_000_000
	e := NewEngine(ledger, int64(4*60*60*1000))

	for i := 0; i < MaxActiveOffersPerCharacter; i++ {
		res := e.CreateOffer(1, Buy, int32(100+i), 10, 1, 1000, defaultPolicy())
		if res.Rejected {
			t.Fatalf("offer %d unexpectedly rejected: %s", i, res.RejectReason)
		}
	}
	res := e.CreateOffer(1, Buy, 999, 10, 1, 1000, defaultPolicy())
	if !res.Rejected || res.RejectReason != "NO_AVAILABLE_SLOT" {
		t.Fatalf("9th offer = %+v, want NO_AVAILABLE_SLOT", res)
	}
}

func TestOffersGetDistinctSlotIndices(t *testing.T) {
	ledger := newFakeLedger()
	ledger.gold[1] = 1_000_000
	e := NewEngine(ledger, int64(4*60*60*1000))

	seen := make(map[int]bool)
	for i := 0; i < MaxActiveOffersPerCharacter; i++ {
		res := e.CreateOffer(1, Buy, int32(100+i), 10, 1, 1000, defaultPolicy())
		if res.Rejected {
			t.Fatalf("offer %d unexpectedly rejected: %s", i, res.RejectReason)
		}
		if res.Offer.SlotIndex < 0 || res.Offer.SlotIndex >= MaxActiveOffersPerCharacter {
			t.Fatalf("offer %d slot index out of range: %d", i, res.Offer.SlotIndex)
		}
		if seen[res.Offer.SlotIndex] {
			t.Fatalf("slot index %d reused while still active", res.Offer.SlotIndex)
		}
		seen[res.Offer.SlotIndex] = true
	}
}

func TestCancelledSlotIsReusedByNextOffer(t *testing.T) {
	ledger := newFakeLedger()
	ledger.gold[1] = 1_000_000
	e := NewEngine(ledger, int64(4*60*60*1000))

	first := e.CreateOffer(1, Buy, 100, 10, 1, 1000, defaultPolicy())
	if first.Rejected {
		t.Fatalf("first offer rejected: %s", first.RejectReason)
	}
	freedSlot := first.Offer.SlotIndex

	if !e.CancelOffer(1, first.Offer.ID) {
		t.Fatal("CancelOffer returned false")
	}

	second := e.CreateOffer(1, Buy, 101, 10, 1, 2000, defaultPolicy())
	if second.Rejected {
		t.Fatalf("second offer rejected: %s", second.RejectReason)
	}
	if second.Offer.SlotIndex != freedSlot {
		t.Fatalf("second offer slot = %d, want reused slot %d", second.Offer.SlotIndex, freedSlot)
	}
}
