package persist

import "context"

// InventoryRepo is the pgx-backed InventoryStore implementation, grounded
// on the teacher's internal/persist/warehouse_repo.go slot-table shape
// (§3 Inventory/Bank/Equipment).
type InventoryRepo struct {
	db *DB
}

func NewInventoryRepo(db *DB) *InventoryRepo {
	return &InventoryRepo{db: db}
}

func (r *InventoryRepo) LoadInventory(ctx context.Context, characterID int64) ([]InventorySlotRow, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT character_id, slot, item_id, quantity FROM inventory_slots WHERE character_id = $1`, characterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []InventorySlotRow
	for rows.Next() {
		var s InventorySlotRow
		if err := rows.Scan(&s.CharacterID, &s.Slot, &s.ItemID, &s.Quantity); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *InventoryRepo) SaveInventorySlot(ctx context.Context, row InventorySlotRow) error {
	if row.Quantity <= 0 {
		_, err := r.db.Pool.Exec(ctx,
			`DELETE FROM inventory_slots WHERE character_id = $1 AND slot = $2`, row.CharacterID, row.Slot)
		return err
	}
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO inventory_slots (character_id, slot, item_id, quantity)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (character_id, slot) DO UPDATE SET item_id = $3, quantity = $4`,
		row.CharacterID, row.Slot, row.ItemID, row.Quantity,
	)
	return err
}

func (r *InventoryRepo) LoadBank(ctx context.Context, characterID int64) ([]BankSlotRow, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT character_id, tab, slot, item_id, quantity FROM bank_slots WHERE character_id = $1`, characterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BankSlotRow
	for rows.Next() {
		var s BankSlotRow
		if err := rows.Scan(&s.CharacterID, &s.Tab, &s.Slot, &s.ItemID, &s.Quantity); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *InventoryRepo) SaveBankSlot(ctx context.Context, row BankSlotRow) error {
	// Quantity 0 is a valid placeholder row (§3 Bank), so unlike inventory
	// slots this never deletes on empty — only an explicit item_id of 0
	// clears the slot entirely.
	if row.ItemID == 0 {
		_, err := r.db.Pool.Exec(ctx,
			`DELETE FROM bank_slots WHERE character_id = $1 AND tab = $2 AND slot = $3`,
			row.CharacterID, row.Tab, row.Slot)
		return err
	}
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO bank_slots (character_id, tab, slot, item_id, quantity)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (character_id, tab, slot) DO UPDATE SET item_id = $4, quantity = $5`,
		row.CharacterID, row.Tab, row.Slot, row.ItemID, row.Quantity,
	)
	return err
}

func (r *InventoryRepo) LoadEquipment(ctx context.Context, characterID int64) ([]EquipmentRow, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT character_id, slot_name, item_id FROM equipment_slots WHERE character_id = $1`, characterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquipmentRow
	for rows.Next() {
		var e EquipmentRow
		if err := rows.Scan(&e.CharacterID, &e.SlotName, &e.ItemID); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *InventoryRepo) SaveEquipmentSlot(ctx context.Context, row EquipmentRow) error {
	if row.ItemID == 0 {
		_, err := r.db.Pool.Exec(ctx,
			`DELETE FROM equipment_slots WHERE character_id = $1 AND slot_name = $2`, row.CharacterID, row.SlotName)
		return err
	}
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO equipment_slots (character_id, slot_name, item_id)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (character_id, slot_name) DO UPDATE SET item_id = $3`,
		row.CharacterID, row.SlotName, row.ItemID,
	)
	return err
}
