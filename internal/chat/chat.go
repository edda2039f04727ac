// Package chat implements ChatRouter (§4.10): channel scoping and fan-out,
// message trimming/length-bounding/filtering, and audit logging. Grounded
// on the teacher's internal/handler/chat.go multi-channel dispatch (normal
// /shout/world/trade/clan/party/whisper), restyled around the spec's named
// channels and using golang.org/x/text/cases for whisper name lookup so
// the cipher's dependency on the text module survives the rewrite.
package chat

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/duskhollow/realm/internal/zone"
)

// Channel identifies one of the §4.10 chat channels.
type Channel string

const (
	Local   Channel = "local"
	Zone    Channel = "zone"
	Global  Channel = "global"
	Trade   Channel = "trade"
	Guild   Channel = "guild"
	Party   Channel = "party"
	Whisper Channel = "whisper"
	System  Channel = "system"
)

const MaxMessageLength = 500

// Participant is the minimal view the router needs of a connected
// character, supplied by the caller (session/connection registry).
type Participant struct {
	CharacterID int64
	Name        string
	ZoneID      int32
}

// Directory resolves participants for fan-out. Implementations are
// expected to be backed by the live session table.
type Directory interface {
	ByCharacterID(id int64) (Participant, bool)
	ByName(name string) (Participant, bool)
	GuildMembers(characterID int64) []int64
	PartyMembers(characterID int64) []int64
	TradeSubscribers() []int64
	AllCharacterIDs() []int64
}

// Filter rejects or rewrites outgoing message text (profanity, spam, etc).
// Implementations are supplied by the caller; a no-op filter is fine for
// deployments that handle this upstream.
type Filter interface {
	Clean(text string) (string, bool)
}

// Deliverer is invoked once per recipient with the final rendered message.
// The router does not know about packet framing; it only decides who
// receives what.
type Deliverer func(recipientCharID int64, channel Channel, senderName, text string)

// AuditLogger persists non-system messages with a sender (§4.10 "All
// non-system messages with a sender are audit-logged").
type AuditLogger interface {
	LogChat(senderCharID int64, channel Channel, text string, atMs int64)
}

// Router fans messages out across channels.
type Router struct {
	dir     Directory
	zones   *zone.Index
	filter  Filter
	audit   AuditLogger
	deliver Deliverer
	log     *zap.Logger
	caser   cases.Caser

	mu      sync.Mutex
	blocked map[int64]map[int64]bool // recipientCharID -> blocked senderCharIDs
}

func NewRouter(dir Directory, zones *zone.Index, filter Filter, audit AuditLogger, deliver Deliverer, log *zap.Logger) *Router {
	return &Router{
		dir: dir, zones: zones, filter: filter, audit: audit, deliver: deliver, log: log,
		caser:   cases.Fold(),
		blocked: make(map[int64]map[int64]bool),
	}
}

// Block adds senderCharID to characterID's session-scoped whisper exclude
// list (§12 "Whisper / block-list interaction"), carried from the teacher's
// ExcludeList but kept in-memory only rather than persisted per-character.
func (r *Router) Block(characterID, senderCharID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.blocked[characterID] == nil {
		r.blocked[characterID] = make(map[int64]bool)
	}
	r.blocked[characterID][senderCharID] = true
}

// Unblock removes senderCharID from characterID's exclude list.
func (r *Router) Unblock(characterID, senderCharID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.blocked[characterID], senderCharID)
}

func (r *Router) isBlocked(recipientCharID, senderCharID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.blocked[recipientCharID][senderCharID]
}

func (r *Router) resolveName(name string) (Participant, bool) {
	if p, ok := r.dir.ByName(r.caser.String(name)); ok {
		return p, true
	}
	return r.dir.ByName(name)
}

// BlockByName resolves blockedName to a connected character and adds it to
// callerCharID's exclude list. Returns false if no connected character
// matches the name.
func (r *Router) BlockByName(callerCharID int64, blockedName string) bool {
	p, ok := r.resolveName(blockedName)
	if !ok {
		return false
	}
	r.Block(callerCharID, p.CharacterID)
	return true
}

// UnblockByName is the inverse of BlockByName.
func (r *Router) UnblockByName(callerCharID int64, blockedName string) bool {
	p, ok := r.resolveName(blockedName)
	if !ok {
		return false
	}
	r.Unblock(callerCharID, p.CharacterID)
	return true
}

// Send processes one outgoing message on behalf of senderCharID (§4.10).
// target is only consulted for Whisper (the recipient's display name).
func (r *Router) Send(senderCharID int64, channel Channel, text string, target string, nowMs int64) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	if len(text) > MaxMessageLength {
		text = text[:MaxMessageLength]
	}
	if r.filter != nil {
		cleaned, ok := r.filter.Clean(text)
		if !ok {
			return false
		}
		text = cleaned
	}

	sender, ok := r.dir.ByCharacterID(senderCharID)
	if !ok {
		return false
	}

	switch channel {
	case Local, Zone:
		for _, id := range r.zones.Members(sender.ZoneID) {
			r.deliver(id, channel, sender.Name, text)
		}
	case Global:
		for _, id := range r.dir.AllCharacterIDs() {
			r.deliver(id, channel, sender.Name, text)
		}
	case Trade:
		for _, id := range r.dir.TradeSubscribers() {
			r.deliver(id, channel, sender.Name, text)
		}
	case Guild:
		for _, id := range r.dir.GuildMembers(senderCharID) {
			r.deliver(id, channel, sender.Name, text)
		}
	case Party:
		for _, id := range r.dir.PartyMembers(senderCharID) {
			r.deliver(id, channel, sender.Name, text)
		}
	case Whisper:
		recipient, ok := r.resolveName(target)
		if !ok {
			return false
		}
		if r.isBlocked(recipient.CharacterID, senderCharID) {
			return false
		}
		r.deliver(recipient.CharacterID, Whisper, sender.Name, text)
		r.deliver(senderCharID, Whisper, sender.Name, text) // echo to sender
	default:
		r.log.Debug("unhandled chat channel", zap.String("channel", string(channel)))
		return false
	}

	if r.audit != nil {
		r.audit.LogChat(senderCharID, channel, text, nowMs)
	}
	return true
}

// Broadcast sends a server-originated system message, optionally scoped to
// a single zone (zoneID == 0 means server-wide) (§4.10 "system... global or
// zone-scoped"). There is no sender to audit-log.
func (r *Router) Broadcast(text string, zoneID int32) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if len(text) > MaxMessageLength {
		text = text[:MaxMessageLength]
	}
	if zoneID == 0 {
		for _, id := range r.dir.AllCharacterIDs() {
			r.deliver(id, System, "", text)
		}
		return
	}
	for _, id := range r.zones.Members(zoneID) {
		r.deliver(id, System, "", text)
	}
}

// NowMs is a small convenience for callers that don't already have a tick
// clock handy (tests, scripted system broadcasts).
func NowMs(t time.Time) int64 { return t.UnixMilli() }
