package event

// Event types emitted by subsystems and delivered to subscribers one tick
// later (§9 design notes: "event-driven handlers replace callback chains").

type PlayerLoggedIn struct {
	CharacterID int64
	AccountID   int64
}

type PlayerDisconnected struct {
	CharacterID int64
	SessionID   uint64
}

type ZoneChanged struct {
	CharacterID int64
	FromZone    int32
	ToZone      int32
}

type NpcKilled struct {
	NpcInstanceID int64
	TemplateID    int32
	KillerCharID  int64
	ExpAwarded    int64
}

type SkillLeveledUp struct {
	CharacterID int64
	Skill       string
	NewLevel    int
}

type ResourceDepleted struct {
	NodeID int64
	ZoneID int32
}

type OfferMatched struct {
	TransactionID int64
	BuyOfferID    int64
	SellOfferID   int64
	ItemID        int32
	Quantity      int64
	PricePerUnit  int64
}

type FlagRaised struct {
	CharacterID int64
	Kind        string
	Severity    string
}
