// Package gameerr defines the closed error taxonomy of §7. Kinds are plain
// strings rather than sentinel error values because the Router needs to
// serialize them onto the wire verbatim as the rejected-packet's error code.
package gameerr

// Kind is one of the named error kinds from §7.
type Kind string

const (
	// Protocol kinds (§7 Protocol) — all terminate packet processing; the
	// last three additionally terminate the session.
	InvalidTimestamp Kind = "INVALID_TIMESTAMP"
	ReplayAttack     Kind = "REPLAY_ATTACK"
	SignatureMismatch Kind = "SIGNATURE_MISMATCH"
	SequenceViolation Kind = "SEQUENCE_VIOLATION"
	DecryptionFailed  Kind = "DECRYPTION_FAILED"
	SessionExpired    Kind = "SESSION_EXPIRED"
	SessionNotFound   Kind = "SESSION_NOT_FOUND"

	// Movement kinds (§7 Movement) — surfaced as position_correction.
	SpeedHack    Kind = "SPEED_HACK"
	TeleportHack Kind = "TELEPORT_HACK"
	WallClip     Kind = "WALL_CLIP"
	FlyHack      Kind = "FLY_HACK"

	// Action kinds (§7 Action) — surfaced as action-rejected.
	TickBudgetExceeded  Kind = "TICK_BUDGET_EXCEEDED"
	AbilityOnCooldown   Kind = "ABILITY_ON_COOLDOWN"
	GlobalCooldown      Kind = "GLOBAL_COOLDOWN"
	RateLimitExceeded   Kind = "RATE_LIMIT_EXCEEDED"
	InvalidAction       Kind = "INVALID_ACTION"
	InsufficientResources Kind = "INSUFFICIENT_RESOURCES"

	// Exchange kinds (§7 Exchange).
	InsufficientGold  Kind = "INSUFFICIENT_GOLD"
	InsufficientItems Kind = "INSUFFICIENT_ITEMS"
	NoAvailableSlot   Kind = "NO_AVAILABLE_SLOT"
	InvalidItem       Kind = "INVALID_ITEM"
	InvalidQuantity   Kind = "INVALID_QUANTITY"
	InvalidPrice      Kind = "INVALID_PRICE"
	ItemNotTradeable  Kind = "ITEM_NOT_TRADEABLE"
	BuyLimitExceeded  Kind = "BUY_LIMIT_EXCEEDED"
	RateLimited        Kind = "RATE_LIMITED"

	// Infrastructure — never leaked to the client in detail.
	InternalError Kind = "INTERNAL_ERROR"
)

// TerminatesSession reports whether a protocol-kind error must also close
// the underlying session (§4.1 validation order).
func (k Kind) TerminatesSession() bool {
	switch k {
	case DecryptionFailed, SessionExpired, SessionNotFound:
		return true
	default:
		return false
	}
}

// GameError is the typed error surfaced by every validation/simulation path.
// It never carries an internal error value into client-visible fields; wrap
// infrastructure errors separately with fmt.Errorf and log them instead.
type GameError struct {
	Kind    Kind
	Message string
	// CooldownRemainingMs is set for ABILITY_ON_COOLDOWN / GLOBAL_COOLDOWN.
	CooldownRemainingMs int64
}

func (e *GameError) Error() string {
	if e.Message != "" {
		return string(e.Kind) + ": " + e.Message
	}
	return string(e.Kind)
}

// New builds a GameError of the given kind with a message.
func New(kind Kind, message string) *GameError {
	return &GameError{Kind: kind, Message: message}
}

// WithCooldown attaches a remaining-cooldown hint to the error.
func (e *GameError) WithCooldown(ms int64) *GameError {
	e.CooldownRemainingMs = ms
	return e
}
