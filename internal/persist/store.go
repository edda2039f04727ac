package persist

import (
	"context"
	"time"
)

// AccountRow mirrors the Account data model (§3): credential hash owned by
// the auth layer, membership class, and administrative status.
type AccountRow struct {
	ID           int64
	Email        string
	Username     string
	PasswordHash string
	AccessLevel  int16
	Status       string // active, suspended, banned
	CreatedAt    time.Time
	LastLoginAt  *time.Time
}

// CharacterRow mirrors the Character data model (§3).
type CharacterRow struct {
	ID           int64
	AccountID    int64
	Name         string
	Appearance   []byte // opaque blob, catalog-defined shape
	ZoneID       int32
	X, Y, Z      float64
	Rotation     float64
	HP, MaxHP    int32
	Mana, MaxMana int32
	Prayer, MaxPrayer int32
	GameMode     string // normal, ironman, hardcore, ultimate
	PlaytimeSecs int64
	DeletedAt    *time.Time
}

// SkillRow mirrors one (character, skill) pair of the Skill data model.
type SkillRow struct {
	CharacterID int64
	Skill       string
	Level       int
	XP          int64
}

// InventorySlotRow is one occupied slot in a character's backpack.
type InventorySlotRow struct {
	CharacterID int64
	Slot        int
	ItemID      int32
	Quantity    int32
}

// BankSlotRow is one occupied (or placeholder) slot in a character's bank.
type BankSlotRow struct {
	CharacterID int64
	Tab, Slot   int
	ItemID      int32
	Quantity    int32
}

// EquipmentRow is one worn item.
type EquipmentRow struct {
	CharacterID int64
	SlotName    string
	ItemID      int32
}

// OfferRow mirrors the GEOffer data model (§3).
type OfferRow struct {
	ID              int64
	CharacterID     int64
	Side            string // buy, sell
	ItemID          int32
	QuantityTotal   int64
	QuantityFilled  int64
	PricePerUnit    int64
	Status          string
	SlotIndex       int
	CreatedAtMs     int64
}

// TransactionRow mirrors the GETransaction data model (§3).
type TransactionRow struct {
	ID           int64
	BuyOfferID   int64
	SellOfferID  int64
	ItemID       int32
	Quantity     int64
	PricePerUnit int64
	CreatedAtMs  int64
}

// FlagRow mirrors the FlagRecord data model (§3).
type FlagRow struct {
	ID          int64
	CharacterID int64
	Kind        string
	Severity    string
	Details     string
	SessionID   int64
	CreatedAtMs int64
}

// Store is the durable-persistence collaborator (§6 "Store interface").
// The core consumes this interface; internal/persist's pgx-backed repos
// provide the concrete implementation. Partitioned per aggregate so a
// handler only depends on the slice of Store it actually touches.
type Store interface {
	AccountStore
	CharacterStore
	SkillStore
	InventoryStore
	ExchangeStore
	FlagStore
}

type AccountStore interface {
	LoadAccountByUsername(ctx context.Context, username string) (*AccountRow, error)
	LoadAccountByID(ctx context.Context, id int64) (*AccountRow, error)
	CreateAccount(ctx context.Context, row *AccountRow) error
	SetAccountStatus(ctx context.Context, accountID int64, status string) error
}

type CharacterStore interface {
	LoadCharacter(ctx context.Context, id int64) (*CharacterRow, error)
	LoadCharactersByAccount(ctx context.Context, accountID int64) ([]CharacterRow, error)
	CreateCharacter(ctx context.Context, row *CharacterRow) error
	SaveCharacter(ctx context.Context, row *CharacterRow) error
	SoftDeleteCharacter(ctx context.Context, id int64) error
}

type SkillStore interface {
	LoadSkills(ctx context.Context, characterID int64) ([]SkillRow, error)
	SaveSkill(ctx context.Context, row SkillRow) error
}

type InventoryStore interface {
	LoadInventory(ctx context.Context, characterID int64) ([]InventorySlotRow, error)
	SaveInventorySlot(ctx context.Context, row InventorySlotRow) error
	LoadBank(ctx context.Context, characterID int64) ([]BankSlotRow, error)
	SaveBankSlot(ctx context.Context, row BankSlotRow) error
	LoadEquipment(ctx context.Context, characterID int64) ([]EquipmentRow, error)
	SaveEquipmentSlot(ctx context.Context, row EquipmentRow) error
}

type ExchangeStore interface {
	SaveOffer(ctx context.Context, row OfferRow) error
	LoadActiveOffers(ctx context.Context) ([]OfferRow, error)
	RecordTransaction(ctx context.Context, row TransactionRow) error
}

type FlagStore interface {
	RecordFlag(ctx context.Context, row FlagRow) error
	CountFlagsSince(ctx context.Context, characterID int64, kind string, sinceMs int64) (int, error)
	PruneFlagsOlderThan(ctx context.Context, cutoffMs int64) (int64, error)
}
