package persist

import "context"

// ExchangeRepo is the pgx-backed ExchangeStore implementation (§3
// GEOffer/GETransaction). Offers are upserted so the in-memory order book
// can be rebuilt from `LoadActiveOffers` on restart.
type ExchangeRepo struct {
	db *DB
}

func NewExchangeRepo(db *DB) *ExchangeRepo {
	return &ExchangeRepo{db: db}
}

func (r *ExchangeRepo) SaveOffer(ctx context.Context, row OfferRow) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO ge_offers (id, character_id, side, item_id, quantity_total, quantity_filled,
		                         price_per_unit, status, slot_index, created_at_ms)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		 ON CONFLICT (id) DO UPDATE SET quantity_filled = $6, status = $8`,
		row.ID, row.CharacterID, row.Side, row.ItemID, row.QuantityTotal, row.QuantityFilled,
		row.PricePerUnit, row.Status, row.SlotIndex, row.CreatedAtMs,
	)
	return err
}

func (r *ExchangeRepo) LoadActiveOffers(ctx context.Context) ([]OfferRow, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id, character_id, side, item_id, quantity_total, quantity_filled,
		        price_per_unit, status, slot_index, created_at_ms
		 FROM ge_offers WHERE status = 'active' ORDER BY created_at_ms`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OfferRow
	for rows.Next() {
		var o OfferRow
		if err := rows.Scan(&o.ID, &o.CharacterID, &o.Side, &o.ItemID, &o.QuantityTotal, &o.QuantityFilled,
			&o.PricePerUnit, &o.Status, &o.SlotIndex, &o.CreatedAtMs); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *ExchangeRepo) RecordTransaction(ctx context.Context, row TransactionRow) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO ge_transactions (id, buy_offer_id, sell_offer_id, item_id, quantity, price_per_unit, created_at_ms)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		row.ID, row.BuyOfferID, row.SellOfferID, row.ItemID, row.Quantity, row.PricePerUnit, row.CreatedAtMs,
	)
	return err
}
