package persist

// Repo bundles the per-aggregate repositories behind the single Store
// interface the core consumes (§6). Each embedded repo shares the
// connection pool; none hold their own state.
type Repo struct {
	*AccountRepo
	*CharacterRepo
	*SkillRepo
	*InventoryRepo
	*ExchangeRepo
	*FlagRepo
}

// NewRepo wires every repository onto one *DB, satisfying persist.Store.
func NewRepo(db *DB) *Repo {
	return &Repo{
		AccountRepo:   NewAccountRepo(db),
		CharacterRepo: NewCharacterRepo(db),
		SkillRepo:     NewSkillRepo(db),
		InventoryRepo: NewInventoryRepo(db),
		ExchangeRepo:  NewExchangeRepo(db),
		FlagRepo:      NewFlagRepo(db),
	}
}

var _ Store = (*Repo)(nil)
