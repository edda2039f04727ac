package router

import (
	"math"
	"math/rand"

	"go.uber.org/zap"

	"github.com/duskhollow/realm/internal/chat"
	"github.com/duskhollow/realm/internal/exchange"
	"github.com/duskhollow/realm/internal/gameerr"
	"github.com/duskhollow/realm/internal/inventory"
	"github.com/duskhollow/realm/internal/ledger"
	"github.com/duskhollow/realm/internal/metrics"
	"github.com/duskhollow/realm/internal/npcmgr"
	"github.com/duskhollow/realm/internal/scripting"
	"github.com/duskhollow/realm/internal/skill"
	"github.com/duskhollow/realm/internal/validation"
	"github.com/duskhollow/realm/internal/zone"
)

// Packet kinds dispatched per §4.12. Only the kinds with a concrete handler
// chain in the core are listed; unknown kinds reply INVALID_ACTION.
const (
	KindMove          = "move"
	KindAttack        = "attack"
	KindSkillAction   = "skill_action"
	KindGECreateOffer = "ge_create_offer"
	KindGECancelOffer = "ge_cancel_offer"
	KindGECollect     = "ge_collect"
	KindEquipItem     = "equip_item"
	KindSwitchPrayer  = "switch_prayer"
	KindPing          = "ping"
	KindGMCommand     = "gm_command"
	KindSelectChar    = "select_character"
	KindChatSend      = "chat_send"
	KindChatBlock     = "chat_block"
	KindChatUnblock   = "chat_unblock"
	KindNpcTalk       = "npc_talk"
)

// Envelope is the decoded plaintext packet (post PacketCodec/Decrypt):
// {kind, seq, payload} riding inside the wire frame's payload field (§6).
type Envelope struct {
	Kind    string
	Payload map[string]any
}

// Reply is what a handler hands back to the caller for delivery to the
// originating session (and, for broadcast-worthy events, to the zone).
type Reply struct {
	Kind    string
	Payload map[string]any
	Err     *gameerr.GameError
}

// Router dispatches decoded packets to the subsystem handler chains named
// in §4.12, translating rejections into structured error replies and
// broadcasts into zone-scoped deliveries.
type Router struct {
	registry  *Registry
	movement  *validation.Movement
	rateLimit *validation.RateLimiter
	invEngine *inventory.Engine
	exchange  *exchange.Engine
	exPolicy  func(itemID int32) exchange.ItemPolicy
	ledger    *ledger.Ledger
	catalog   inventory.Catalog
	loader    CharacterLoader
	zones     *zone.Index
	scripts   *scripting.Engine
	rng       *rand.Rand
	log       *zap.Logger
	metrics   *metrics.Metrics

	Broadcast func(zoneID int32, kind string, payload map[string]any)
	Chat      *chat.Router
	NpcMgr    *npcmgr.Manager
	Kick      func(sessionID uint64)
}

func New(registry *Registry, movement *validation.Movement, rateLimit *validation.RateLimiter,
	invEngine *inventory.Engine, ex *exchange.Engine, exPolicy func(itemID int32) exchange.ItemPolicy,
	ldg *ledger.Ledger, catalog inventory.Catalog, loader CharacterLoader, zones *zone.Index,
	scripts *scripting.Engine, rng *rand.Rand, log *zap.Logger, mx *metrics.Metrics) *Router {
	return &Router{
		registry: registry, movement: movement, rateLimit: rateLimit,
		invEngine: invEngine, exchange: ex, exPolicy: exPolicy, ledger: ldg, catalog: catalog,
		loader: loader, zones: zones, scripts: scripts, rng: rng, log: log, metrics: mx,
	}
}

// Handle dispatches one decoded packet for the bound session, returning the
// reply to send back (never nil — even rejections produce a reply, §4.12
// "Any rejected packet produces a structured error reply").
func (r *Router) Handle(sessionID uint64, env Envelope, nowMs int64) Reply {
	if env.Kind == KindSelectChar {
		return r.handleSelectCharacter(sessionID, env, nowMs)
	}

	state, ok := r.registry.BySession(sessionID)
	if !ok {
		return errorReply(gameerr.New(gameerr.SessionNotFound, "no character bound to session"))
	}

	switch env.Kind {
	case KindPing:
		return r.handlePing(nowMs)
	case KindMove:
		return r.handleMove(state, env, nowMs)
	case KindAttack:
		return r.handleAttack(state, env, nowMs)
	case KindSkillAction:
		return r.handleSkillAction(state, env, nowMs)
	case KindGECreateOffer:
		return r.handleGECreateOffer(state, env, nowMs)
	case KindGECancelOffer:
		return r.handleGECancelOffer(state, env)
	case KindGECollect:
		return r.handleGECollect(state, env)
	case KindEquipItem:
		return r.handleEquipItem(state, env, nowMs)
	case KindSwitchPrayer:
		return r.handleSwitchPrayer(state, env, nowMs)
	case KindGMCommand:
		return r.handleGMCommand(state, env)
	case KindChatSend:
		return r.handleChatSend(state, env, nowMs)
	case KindChatBlock:
		return r.handleChatBlock(state, env)
	case KindChatUnblock:
		return r.handleChatUnblock(state, env)
	case KindNpcTalk:
		return r.handleNpcTalk(state, env)
	default:
		return errorReply(gameerr.New(gameerr.InvalidAction, "unknown packet kind: "+env.Kind))
	}
}

func errorReply(err *gameerr.GameError) Reply {
	return Reply{Kind: "error", Err: err}
}

func (r *Router) handlePing(nowMs int64) Reply {
	return Reply{Kind: "pong", Payload: map[string]any{"serverTimeMs": nowMs}}
}

// --- movement -----------------------------------------------------------

func (r *Router) handleMove(state *CharacterState, env Envelope, nowMs int64) Reply {
	req := validation.MoveRequest{
		Position: validation.Position{
			X: floatField(env.Payload, "x"),
			Y: floatField(env.Payload, "y"),
			Z: floatField(env.Payload, "z"),
		},
		Rotation: floatField(env.Payload, "rotation"),
		AtMs:     nowMs,
		Kind:     validation.MovementKind(stringField(env.Payload, "kind", "walk")),
	}
	outcome := r.movement.Validate(state.Movement, req)
	if !outcome.Accepted {
		r.metrics.RecordFlag(string(outcome.Err.Kind))
		reply := errorReply(outcome.Err)
		if outcome.Disconnect {
			reply.Payload = map[string]any{"disconnect": true}
		}
		return reply
	}

	if r.zones != nil {
		if rec := r.zones.ZoneOf(zone.Point{X: req.Position.X, Y: req.Position.Y, Z: req.Position.Z}); rec != nil {
			if r.zones.Transition(state.CharacterID, state.ZoneID, rec.ID) {
				state.ZoneID = rec.ID
			}
		}
	}

	if r.Broadcast != nil {
		r.Broadcast(state.ZoneID, "player_moved", map[string]any{
			"characterId": state.CharacterID,
			"x":           state.Movement.Position.X,
			"y":           state.Movement.Position.Y,
			"z":           state.Movement.Position.Z,
		})
	}
	return Reply{Kind: "move_ack", Payload: map[string]any{"accepted": true}}
}

// --- combat action budget (damage resolution itself is out of scope, §13 OQ1) --

func (r *Router) handleAttack(state *CharacterState, env Envelope, nowMs int64) Reply {
	outcome := r.rateLimit.Check(state.Actions, validation.ActionRequest{
		Kind: validation.ActionKind("attack"), NowMs: nowMs,
	})
	if !outcome.Accepted {
		r.metrics.RecordFlag(string(outcome.Err.Kind))
		return errorReply(outcome.Err)
	}
	ability := stringField(env.Payload, "ability", "")
	if ability != "" {
		state.Movement.RecordAbilityUse(ability, nowMs)
	}
	return Reply{Kind: "attack_ack", Payload: map[string]any{"accepted": true}}
}

// --- skills ---------------------------------------------------------------

// skillPositionToleranceUnits and skillInteractionRangeUnits are the §4.7
// step-2 bounds: the client-claimed position must be close to the
// authoritative one, and the target must be within interaction range.
const (
	skillPositionToleranceUnits = 10.0
	skillInteractionRangeUnits  = 10.0
)

func distance(a, b validation.Position) float64 {
	dx, dy, dz := a.X-b.X, a.Y-b.Y, a.Z-b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func (r *Router) handleSkillAction(state *CharacterState, env Envelope, nowMs int64) Reply {
	skillName := skill.Name(stringField(env.Payload, "skill", ""))
	rec, ok := state.Skills[skillName]
	if !ok {
		return errorReply(gameerr.New(gameerr.InvalidAction, "unknown skill"))
	}

	outcome := r.rateLimit.Check(state.Actions, validation.ActionRequest{
		Kind: validation.ActionKind("skill_action"), NowMs: nowMs,
	})
	if !outcome.Accepted {
		r.metrics.RecordFlag(string(outcome.Err.Kind))
		return errorReply(outcome.Err)
	}

	claimedPos := validation.Position{
		X: floatField(env.Payload, "x"), Y: floatField(env.Payload, "y"), Z: floatField(env.Payload, "z"),
	}
	if distance(claimedPos, state.Movement.Position) > skillPositionToleranceUnits {
		return errorReply(gameerr.New(gameerr.InvalidAction, "claimed position out of tolerance"))
	}
	targetPos := validation.Position{
		X: floatField(env.Payload, "targetX"), Y: floatField(env.Payload, "targetY"), Z: floatField(env.Payload, "targetZ"),
	}
	if distance(state.Movement.Position, targetPos) > skillInteractionRangeUnits {
		return errorReply(gameerr.New(gameerr.InvalidAction, "target out of interaction range"))
	}

	levelRequired := int(intField(env.Payload, "levelRequired"))
	baseXP := floatField(env.Payload, "baseXp")
	result := skill.Resolve(skill.ActionRequest{
		Kind:          skill.ActionKind(stringField(env.Payload, "actionKind", string(skill.Generic))),
		Skill:         skillName,
		Level:         rec.Level,
		LevelRequired: levelRequired,
		BaseXP:        baseXP,
		SuccessRoll:   skill.RollFloat64(r.rng),
		DepletionRoll: skill.RollFloat64(r.rng),
	})
	if !result.Success {
		r.metrics.RecordSkillAction(string(skillName), false)
		return Reply{Kind: "skill_action_result", Payload: map[string]any{"success": false}}
	}

	grant := skill.Grant(rec, result.XPGained, 1.0)
	r.metrics.RecordSkillAction(string(skillName), true)
	return Reply{Kind: "skill_action_result", Payload: map[string]any{
		"success":          true,
		"xpGained":         grant.Granted,
		"leveledUp":        grant.LeveledUp,
		"newLevel":         grant.NewLevel,
		"resourceDepleted": result.ResourceDepleted,
	}}
}

// --- grand exchange ---------------------------------------------------------

func (r *Router) handleGECreateOffer(state *CharacterState, env Envelope, nowMs int64) Reply {
	itemID := int32(intField(env.Payload, "itemId"))
	side := exchange.Sell
	if stringField(env.Payload, "side", "sell") == "buy" {
		side = exchange.Buy
	}
	price := intField(env.Payload, "price")
	qty := intField(env.Payload, "quantity")

	result := r.exchange.CreateOffer(state.CharacterID, side, itemID, price, qty, nowMs, r.exPolicy(itemID))
	if result.Rejected {
		r.metrics.RecordFlag(result.RejectReason)
		return errorReply(gameerr.New(gameerr.Kind(result.RejectReason), "offer rejected"))
	}
	r.metrics.SetOffersActive(r.exchange.ActiveOfferCount())
	return Reply{Kind: "ge_offer_created", Payload: map[string]any{
		"offerId":      result.Offer.ID,
		"transactions": len(result.Transactions),
	}}
}

func (r *Router) handleGECancelOffer(state *CharacterState, env Envelope) Reply {
	offerID := intField(env.Payload, "offerId")
	if !r.exchange.CancelOffer(state.CharacterID, offerID) {
		return errorReply(gameerr.New(gameerr.InvalidAction, "offer not active or not owned"))
	}
	r.metrics.SetOffersActive(r.exchange.ActiveOfferCount())
	return Reply{Kind: "ge_offer_cancelled", Payload: map[string]any{"offerId": offerID}}
}

func (r *Router) handleGECollect(state *CharacterState, env Envelope) Reply {
	offerID := intField(env.Payload, "offerId")
	if !r.exchange.CollectOffer(state.CharacterID, offerID) {
		return errorReply(gameerr.New(gameerr.InvalidAction, "nothing to collect"))
	}
	collected := r.ledger.Collect(state.CharacterID)
	return Reply{Kind: "ge_offer_collected", Payload: map[string]any{"offerId": offerID, "items": collected}}
}

// --- equipment / prayer -----------------------------------------------------

func (r *Router) handleEquipItem(state *CharacterState, env Envelope, nowMs int64) Reply {
	outcome := r.rateLimit.Check(state.Actions, validation.ActionRequest{
		Kind: validation.ActionKind("equip_item"), NowMs: nowMs,
	})
	if !outcome.Accepted {
		return errorReply(outcome.Err)
	}
	slot := stringField(env.Payload, "slot", "")
	itemID := int32(intField(env.Payload, "itemId"))
	if !r.invEngine.Equip(state.Holdings, slot, itemID) {
		return errorReply(gameerr.New(gameerr.InsufficientItems, "item not in backpack"))
	}
	return Reply{Kind: "equip_ack", Payload: map[string]any{"slot": slot, "itemId": itemID}}
}

func (r *Router) handleSwitchPrayer(state *CharacterState, env Envelope, nowMs int64) Reply {
	outcome := r.rateLimit.Check(state.Actions, validation.ActionRequest{
		Kind: validation.ActionKind("switch_prayer"), NowMs: nowMs, IsPrayer: true,
	})
	if !outcome.Accepted {
		return errorReply(outcome.Err)
	}
	return Reply{Kind: "prayer_ack", Payload: map[string]any{"prayer": stringField(env.Payload, "prayer", "")}}
}

// --- administrative path (§12 supplemented feature) -------------------------

const gmAccessLevel = 100

func (r *Router) handleGMCommand(state *CharacterState, env Envelope) Reply {
	if state.AccessLevel < gmAccessLevel {
		return errorReply(gameerr.New(gameerr.InvalidAction, "insufficient access level"))
	}
	cmd := stringField(env.Payload, "command", "")
	switch cmd {
	case "teleport_self":
		state.Movement.Position = validation.Position{
			X: floatField(env.Payload, "x"), Y: floatField(env.Payload, "y"), Z: floatField(env.Payload, "z"),
		}
		return Reply{Kind: "gm_ack", Payload: map[string]any{"command": cmd}}
	case "grant_item":
		itemID := int32(intField(env.Payload, "itemId"))
		qty := intField(env.Payload, "quantity")
		r.invEngine.AddToBackpack(state.Holdings, itemID, qty)
		return Reply{Kind: "gm_ack", Payload: map[string]any{"command": cmd}}
	case "spawn_npc":
		if r.NpcMgr == nil {
			return errorReply(gameerr.New(gameerr.InternalError, "npc manager unavailable"))
		}
		templateID := int32(intField(env.Payload, "templateId"))
		inst := r.NpcMgr.Spawn(templateID, state.ZoneID,
			floatField(env.Payload, "x"), floatField(env.Payload, "y"), floatField(env.Payload, "z"))
		if inst == nil {
			return errorReply(gameerr.New(gameerr.InvalidAction, "unknown npc template"))
		}
		return Reply{Kind: "gm_ack", Payload: map[string]any{"command": cmd, "instanceId": inst.ID}}
	case "kick_session":
		targetCharID := int64(intField(env.Payload, "targetCharacterId"))
		target, ok := r.registry.ByCharacter(targetCharID)
		if !ok {
			return errorReply(gameerr.New(gameerr.InvalidAction, "target character not connected"))
		}
		if r.Kick != nil {
			r.Kick(target.SessionID)
		}
		return Reply{Kind: "gm_ack", Payload: map[string]any{"command": cmd}}
	default:
		return errorReply(gameerr.New(gameerr.InvalidAction, "unknown gm command: "+cmd))
	}
}

// --- chat -------------------------------------------------------------------

func (r *Router) handleChatSend(state *CharacterState, env Envelope, nowMs int64) Reply {
	if r.Chat == nil {
		return errorReply(gameerr.New(gameerr.InternalError, "chat unavailable"))
	}
	channel := chat.Channel(stringField(env.Payload, "channel", string(chat.Local)))
	text := stringField(env.Payload, "text", "")
	target := stringField(env.Payload, "target", "")

	if !r.Chat.Send(state.CharacterID, channel, text, target, nowMs) {
		return errorReply(gameerr.New(gameerr.InvalidAction, "message rejected"))
	}
	return Reply{Kind: "chat_sent", Payload: map[string]any{"channel": string(channel)}}
}

func (r *Router) handleChatBlock(state *CharacterState, env Envelope) Reply {
	if r.Chat == nil {
		return errorReply(gameerr.New(gameerr.InternalError, "chat unavailable"))
	}
	name := stringField(env.Payload, "name", "")
	if !r.Chat.BlockByName(state.CharacterID, name) {
		return errorReply(gameerr.New(gameerr.InvalidAction, "no connected character by that name"))
	}
	return Reply{Kind: "chat_blocked", Payload: map[string]any{"name": name}}
}

func (r *Router) handleChatUnblock(state *CharacterState, env Envelope) Reply {
	if r.Chat == nil {
		return errorReply(gameerr.New(gameerr.InternalError, "chat unavailable"))
	}
	name := stringField(env.Payload, "name", "")
	if !r.Chat.UnblockByName(state.CharacterID, name) {
		return errorReply(gameerr.New(gameerr.InvalidAction, "no connected character by that name"))
	}
	return Reply{Kind: "chat_unblocked", Payload: map[string]any{"name": name}}
}

// --- npc interaction ----------------------------------------------------------

func (r *Router) handleNpcTalk(state *CharacterState, env Envelope) Reply {
	if r.scripts == nil {
		return errorReply(gameerr.New(gameerr.InternalError, "scripting unavailable"))
	}
	result := r.scripts.RunDialog(scripting.DialogContext{
		NpcTemplateID: int32(intField(env.Payload, "npcTemplateId")),
		CharacterID:   state.CharacterID,
		StageID:       int(intField(env.Payload, "stageId")),
	})
	if result == nil {
		return errorReply(gameerr.New(gameerr.InvalidAction, "no dialog for npc"))
	}
	return Reply{Kind: "npc_dialog", Payload: map[string]any{
		"text":      result.Text,
		"options":   result.Options,
		"nextStage": result.NextStage,
	}}
}

// --- payload field helpers ---------------------------------------------------

func floatField(m map[string]any, key string) float64 {
	if v, ok := m[key]; ok {
		switch n := v.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		case int64:
			return float64(n)
		}
	}
	return 0
}

func intField(m map[string]any, key string) int64 {
	return int64(floatField(m, key))
}

func stringField(m map[string]any, key, def string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}
