package main

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/duskhollow/realm/internal/chat"
	"github.com/duskhollow/realm/internal/config"
	"github.com/duskhollow/realm/internal/data"
	"github.com/duskhollow/realm/internal/exchange"
	"github.com/duskhollow/realm/internal/gameerr"
	"github.com/duskhollow/realm/internal/inventory"
	"github.com/duskhollow/realm/internal/netio"
	"github.com/duskhollow/realm/internal/npcmgr"
	"github.com/duskhollow/realm/internal/persist"
	"github.com/duskhollow/realm/internal/resourcemgr"
	"github.com/duskhollow/realm/internal/router"
	"github.com/duskhollow/realm/internal/validation"
	"github.com/duskhollow/realm/internal/zone"
)

// catalogAdapter exposes data.Catalog as inventory.Catalog: the inventory
// engine only needs stacking/capacity facts, not the full item record.
type catalogAdapter struct {
	cat *data.Catalog
}

func (a *catalogAdapter) Item(id int32) *inventory.ItemDef {
	def := a.cat.Item(id)
	if def == nil {
		return nil
	}
	maxStack := int64(def.MaxStack)
	if maxStack <= 0 {
		maxStack = 1
	}
	return &inventory.ItemDef{ID: def.ID, MaxStack: maxStack, Tradeable: def.Tradeable}
}

// zoneNavmesh is the flat-world NavmeshOracle: any point inside a known
// zone is walkable, and ground height is 0 everywhere. A
// terrain-aware navmesh is out of scope (§9 OQ1, combat/terrain geometry
// deferred).
type zoneNavmesh struct {
	zones *zone.Index
}

func (n *zoneNavmesh) PathWalkable(from, to validation.Position) bool {
	return n.zones.ZoneOf(zone.Point{X: to.X, Y: to.Y, Z: to.Z}) != nil
}

func (n *zoneNavmesh) DestinationValid(pos validation.Position) bool {
	return n.zones.ZoneOf(zone.Point{X: pos.X, Y: pos.Y, Z: pos.Z}) != nil
}

func (n *zoneNavmesh) GroundHeight(x, y float64) float64 {
	return 0
}

// characterSaver implements gameloop.SaveRequester over persist.Store,
// writing back whatever CharacterState the router currently holds for a
// connected character (§4.11 periodic save sweep).
type characterSaver struct {
	repo     persist.Store
	registry *router.Registry
}

func (s *characterSaver) SaveCharacter(ctx context.Context, characterID int64) error {
	state, ok := s.registry.ByCharacter(characterID)
	if !ok {
		return nil
	}
	return saveCharacterState(ctx, s.repo, state)
}

func saveCharacterState(ctx context.Context, repo persist.Store, state *router.CharacterState) error {
	existing, err := repo.LoadCharacter(ctx, state.CharacterID)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}
	existing.ZoneID = state.ZoneID
	existing.X = state.Movement.Position.X
	existing.Y = state.Movement.Position.Y
	existing.Z = state.Movement.Position.Z
	if err := repo.SaveCharacter(ctx, existing); err != nil {
		return err
	}

	for name, rec := range state.Skills {
		if err := repo.SaveSkill(ctx, persist.SkillRow{
			CharacterID: state.CharacterID, Skill: string(name), Level: rec.Level, XP: rec.XP,
		}); err != nil {
			return err
		}
	}

	// Holdings' internal mutex is package-private; the periodic save sweep
	// takes a best-effort snapshot rather than serializing against live
	// backpack mutation, same as the teacher's own save-tick read pattern.
	for i, stack := range state.Holdings.Backpack.Slots {
		if err := repo.SaveInventorySlot(ctx, persist.InventorySlotRow{
			CharacterID: state.CharacterID, Slot: i, ItemID: stack.ItemID, Quantity: int32(stack.Quantity),
		}); err != nil {
			return err
		}
	}
	for tab, slots := range state.Holdings.Bank.Tabs {
		for slot, stack := range slots {
			if stack.ItemID == 0 {
				continue
			}
			if err := repo.SaveBankSlot(ctx, persist.BankSlotRow{
				CharacterID: state.CharacterID, Tab: tab, Slot: slot, ItemID: stack.ItemID, Quantity: int32(stack.Quantity),
			}); err != nil {
				return err
			}
		}
	}
	for slotName, stack := range state.Holdings.Equipment.Worn {
		if err := repo.SaveEquipmentSlot(ctx, persist.EquipmentRow{
			CharacterID: state.CharacterID, SlotName: slotName, ItemID: stack.ItemID,
		}); err != nil {
			return err
		}
	}
	return nil
}

// drainAndSaveAll persists every connected character once, on shutdown.
func drainAndSaveAll(ctx context.Context, repo persist.Store, registry *router.Registry, log *zap.Logger) {
	for _, view := range registry.Snapshot() {
		state, ok := registry.ByCharacter(view.CharacterID)
		if !ok {
			continue
		}
		if err := saveCharacterState(ctx, repo, state); err != nil {
			log.Error("shutdown save failed", zap.Int64("character", view.CharacterID), zap.Error(err))
		}
	}
}

// catalogZoneRecords/catalogNpcTemplates/catalogResourceTemplates translate
// the YAML-loaded catalog rows into the shape each manager's constructor
// wants, resolved once at startup.
func catalogZoneRecords(cat *data.Catalog) []zone.Record {
	defs := cat.Zones()
	out := make([]zone.Record, 0, len(defs))
	for _, d := range defs {
		out = append(out, zone.Record{
			ID:   d.ID,
			Name: d.Name,
			Bounds: zone.AABB{
				MinX: d.MinX, MinY: d.MinY, MinZ: d.MinZ,
				MaxX: d.MaxX, MaxY: d.MaxY, MaxZ: d.MaxZ,
			},
			SafeZone:   d.SafeZone,
			PvPEnabled: d.PvPEnabled,
			MinLevel:   d.MinLevel,
			MaxLevel:   d.MaxLevel,
		})
	}
	return out
}

func catalogNpcTemplates(cat *data.Catalog) []npcmgr.Template {
	defs := cat.AllNpcTemplates()
	out := make([]npcmgr.Template, 0, len(defs))
	for _, d := range defs {
		drops := make([]npcmgr.DropRow, 0, len(d.Drops))
		for _, dr := range d.Drops {
			drops = append(drops, npcmgr.DropRow{
				ItemID: dr.ItemID, MinQty: dr.MinQty, MaxQty: dr.MaxQty, Chance: dr.Chance,
			})
		}
		out = append(out, npcmgr.Template{
			ID: d.ID, Name: d.Name, MaxHP: d.MaxHP, Speed: d.Speed,
			Aggressive: d.Aggressive, RespawnSeconds: d.RespawnSeconds, Drops: drops,
		})
	}
	return out
}

func catalogResourceTemplates(cat *data.Catalog) []resourcemgr.Template {
	defs := cat.AllResourceTemplates()
	out := make([]resourcemgr.Template, 0, len(defs))
	for _, d := range defs {
		out = append(out, resourcemgr.Template{
			ID: d.ID, Name: d.Name, Skill: d.Skill, LevelRequired: d.LevelRequired,
			BaseXP: float64(d.BaseXP), RespawnTicks: d.RespawnTicks, DepletionChance: d.DepletionChance,
			YieldItemID: d.YieldItemID, YieldMinQty: d.YieldMinQty, YieldMaxQty: d.YieldMaxQty,
		})
	}
	return out
}

// exchangePolicy builds the per-item exchange.ItemPolicy lookup out of the
// operator-configured global caps and each item's own tradeability/buy
// limit (§4.9).
func exchangePolicy(cfg config.ExchangeConfig, cat *data.Catalog) func(itemID int32) exchange.ItemPolicy {
	return func(itemID int32) exchange.ItemPolicy {
		def := cat.Item(itemID)
		if def == nil {
			return exchange.ItemPolicy{}
		}
		return exchange.ItemPolicy{
			Tradeable:           def.Tradeable,
			MaxQuantityPerOffer: int64(cfg.MaxQuantityPerOffer),
			MinPrice:            int64(cfg.MinPricePerItem),
			MaxPrice:            int64(cfg.MaxPricePerItem),
			BuyLimit:            def.BuyLimit,
		}
	}
}

// wireEnvelope is the JSON shape of the application packet riding inside
// one decrypted frame (§6 Packet: {kind, payload}).
type wireEnvelope struct {
	Kind    string         `json:"kind"`
	Payload map[string]any `json:"payload,omitempty"`
}

// wireReply mirrors wireEnvelope for outbound delivery, adding the
// optional error block for rejected packets (§4.12).
type wireReply struct {
	Kind    string         `json:"kind"`
	Payload map[string]any `json:"payload,omitempty"`
	Error   *wireError     `json:"error,omitempty"`
}

type wireError struct {
	Kind                string `json:"kind"`
	Message             string `json:"message"`
	CooldownRemainingMs int64  `json:"cooldownRemainingMs,omitempty"`
}

// handleInbound is the full inbound pipeline for one raw websocket frame:
// decode the wire Envelope, run it through Session.Decode (§4.1's full
// validation order), dispatch the decrypted packet to the Router, and
// encode/send the reply back over the same session.
func handleInbound(rt *router.Router, server *netio.Server, vcfg config.ValidationConfig, sessionID uint64, raw []byte, log *zap.Logger) {
	sess, ok := server.Registry().Get(sessionID)
	if !ok {
		return
	}
	nowMs := time.Now().UnixMilli()

	env, err := netio.DecodeFrame(raw)
	if err != nil {
		log.Debug("malformed frame", zap.Uint64("session", sessionID), zap.Error(err))
		sess.Close()
		return
	}

	plaintext, err := sess.Decode(env, nowMs, vcfg)
	if err != nil {
		decErr, _ := err.(*netio.DecodeError)
		kind := gameerr.DecryptionFailed
		if decErr != nil {
			kind = decErr.Kind
		}
		sendReply(sess, nowMs, wireReply{Kind: "error", Error: &wireError{Kind: string(kind), Message: "packet rejected"}}, log)
		if kind.TerminatesSession() {
			sess.Close()
		}
		return
	}

	var in wireEnvelope
	if err := json.Unmarshal(plaintext, &in); err != nil {
		sendReply(sess, nowMs, wireReply{Kind: "error", Error: &wireError{Kind: string(gameerr.InvalidAction), Message: "malformed packet"}}, log)
		return
	}

	reply := rt.Handle(sessionID, router.Envelope{Kind: in.Kind, Payload: in.Payload}, nowMs)

	out := wireReply{Kind: reply.Kind, Payload: reply.Payload}
	if reply.Err != nil {
		out.Error = &wireError{Kind: string(reply.Err.Kind), Message: reply.Err.Message, CooldownRemainingMs: reply.Err.CooldownRemainingMs}
		if reply.Err.Kind.TerminatesSession() {
			defer sess.Close()
		}
	}
	sendReply(sess, nowMs, out, log)
}

func sendReply(sess *netio.Session, nowMs int64, reply wireReply, log *zap.Logger) {
	body, err := json.Marshal(reply)
	if err != nil {
		log.Error("reply marshal failed", zap.Error(err))
		return
	}
	env, err := sess.Encode(body, nowMs)
	if err != nil {
		log.Error("reply encode failed", zap.Error(err))
		return
	}
	sess.Send(netio.EncodeFrame(env))
}

// deliverToZone marshals one broadcast payload and fans it out to every
// session bound to a character currently in the zone.
func deliverToZone(server *netio.Server, zones *zone.Index, registry *router.Registry, zoneID int32, kind string, payload any) {
	members := zones.Members(zoneID)
	if len(members) == 0 {
		return
	}
	body, err := json.Marshal(wireReply{Kind: kind, Payload: toPayloadMap(payload)})
	if err != nil {
		return
	}
	nowMs := time.Now().UnixMilli()
	for _, characterID := range members {
		state, ok := registry.ByCharacter(characterID)
		if !ok {
			continue
		}
		sess, ok := server.Registry().Get(state.SessionID)
		if !ok {
			continue
		}
		env, err := sess.Encode(body, nowMs)
		if err != nil {
			continue
		}
		sess.Send(netio.EncodeFrame(env))
	}
}

// chatDirectory implements chat.Directory over the live character registry.
// Guild and party membership have no backing subsystem in this build (§13,
// guilds/parties out of scope), so those two lookups always return nil,
// leaving the wire channels reachable but silently empty rather than
// rejected. Trade chat treats every connected character as subscribed,
// since there is no separate subscribe/unsubscribe packet.
type chatDirectory struct {
	registry *router.Registry
}

func (d *chatDirectory) ByCharacterID(id int64) (chat.Participant, bool) {
	state, ok := d.registry.ByCharacter(id)
	if !ok {
		return chat.Participant{}, false
	}
	return chat.Participant{CharacterID: state.CharacterID, Name: state.Name, ZoneID: state.ZoneID}, true
}

func (d *chatDirectory) ByName(name string) (chat.Participant, bool) {
	for _, view := range d.registry.Snapshot() {
		state, ok := d.registry.ByCharacter(view.CharacterID)
		if ok && strings.EqualFold(state.Name, name) {
			return chat.Participant{CharacterID: state.CharacterID, Name: state.Name, ZoneID: state.ZoneID}, true
		}
	}
	return chat.Participant{}, false
}

func (d *chatDirectory) GuildMembers(characterID int64) []int64 { return nil }
func (d *chatDirectory) PartyMembers(characterID int64) []int64 { return nil }

func (d *chatDirectory) TradeSubscribers() []int64 { return d.AllCharacterIDs() }

func (d *chatDirectory) AllCharacterIDs() []int64 {
	views := d.registry.Snapshot()
	out := make([]int64, 0, len(views))
	for _, v := range views {
		out = append(out, v.CharacterID)
	}
	return out
}

// chatAuditLogger records chat traffic via the structured logger; there is
// no dedicated chat-log table to persist to (§13, persistence scoped to
// account/character/economy state), so the audit trail lives in the same
// place every other operational event does.
type chatAuditLogger struct {
	log *zap.Logger
}

func (a *chatAuditLogger) LogChat(senderCharID int64, channel chat.Channel, text string, atMs int64) {
	a.log.Info("chat",
		zap.Int64("sender", senderCharID),
		zap.String("channel", string(channel)),
		zap.String("text", text),
		zap.Int64("atMs", atMs),
	)
}

// nopChatFilter passes every message through unmodified. No profanity/spam
// filtering library is available in this build's dependency set; content
// moderation is expected to run upstream of the realm server.
type nopChatFilter struct{}

func (nopChatFilter) Clean(text string) (string, bool) { return text, true }

// deliverChat renders one chat delivery as a wire packet and sends it to the
// recipient's session, if still connected.
func deliverChat(server *netio.Server, registry *router.Registry, recipientCharID int64, channel chat.Channel, senderName, text string) {
	state, ok := registry.ByCharacter(recipientCharID)
	if !ok {
		return
	}
	sess, ok := server.Registry().Get(state.SessionID)
	if !ok {
		return
	}
	body, err := json.Marshal(wireReply{Kind: "chat_message", Payload: map[string]any{
		"channel": string(channel),
		"sender":  senderName,
		"text":    text,
	}})
	if err != nil {
		return
	}
	nowMs := time.Now().UnixMilli()
	env, err := sess.Encode(body, nowMs)
	if err != nil {
		return
	}
	sess.Send(netio.EncodeFrame(env))
}

func toPayloadMap(payload any) map[string]any {
	if m, ok := payload.(map[string]any); ok {
		return m
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	var m map[string]any
	json.Unmarshal(b, &m)
	return m
}
