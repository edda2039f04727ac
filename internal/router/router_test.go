package router

import (
	"math/rand"
	"testing"

	"go.uber.org/zap"

	"github.com/duskhollow/realm/internal/chat"
	"github.com/duskhollow/realm/internal/config"
	"github.com/duskhollow/realm/internal/exchange"
	"github.com/duskhollow/realm/internal/inventory"
	"github.com/duskhollow/realm/internal/ledger"
	"github.com/duskhollow/realm/internal/npcmgr"
	"github.com/duskhollow/realm/internal/skill"
	"github.com/duskhollow/realm/internal/validation"
	"github.com/duskhollow/realm/internal/zone"
)

type fakeCatalog map[int32]*inventory.ItemDef

func (c fakeCatalog) Item(id int32) *inventory.ItemDef { return c[id] }

func testValidationCfg() config.ValidationConfig {
	return config.ValidationConfig{
		MaxSpeedMultiplier:      1.15,
		TeleportThresholdUnits:  100,
		PositionHistorySamples:  60,
		MaxCorrectionsPerMinute: 5,
		BaseWalkSpeed:           220,
		BaseRunSpeed:            440,
		TickDurationMs:          600,
		MaxActionsPerTick:       5,
		GlobalCooldownMs:        0,
	}
}

func testZones() *zone.Index {
	return zone.NewIndex([]zone.Record{
		{ID: 1, Bounds: zone.AABB{MinX: -1000, MinY: -1000, MinZ: -1000, MaxX: 1000, MaxY: 1000, MaxZ: 1000}},
	})
}

func newTestRouter(cat fakeCatalog, buyLimitWindowMs int64) (*Router, *Registry) {
	registry := NewRegistry()
	movement := validation.NewMovement(testValidationCfg(), nil)
	rateLimit := validation.NewRateLimiter(testValidationCfg())
	invEngine := inventory.NewEngine(cat)
	ldg := ledger.New(registry, invEngine)
	exEngine := exchange.NewEngine(ldg, buyLimitWindowMs)
	exPolicy := func(itemID int32) exchange.ItemPolicy {
		return exchange.ItemPolicy{Tradeable: true, MaxQuantityPerOffer: 1000, MinPrice: 1, MaxPrice: 1_000_000}
	}
	rng := rand.New(rand.NewSource(1))
	rt := New(registry, movement, rateLimit, invEngine, exEngine, exPolicy, ldg, cat, nil, testZones(), nil, rng, zap.NewNop(), nil)
	return rt, registry
}

type fakeChatDirectory struct {
	byID map[int64]chat.Participant
}

func (d *fakeChatDirectory) ByCharacterID(id int64) (chat.Participant, bool) {
	p, ok := d.byID[id]
	return p, ok
}
func (d *fakeChatDirectory) ByName(name string) (chat.Participant, bool) {
	for _, p := range d.byID {
		if p.Name == name {
			return p, true
		}
	}
	return chat.Participant{}, false
}
func (d *fakeChatDirectory) GuildMembers(characterID int64) []int64 { return nil }
func (d *fakeChatDirectory) PartyMembers(characterID int64) []int64 { return nil }
func (d *fakeChatDirectory) TradeSubscribers() []int64              { return nil }
func (d *fakeChatDirectory) AllCharacterIDs() []int64 {
	ids := make([]int64, 0, len(d.byID))
	for id := range d.byID {
		ids = append(ids, id)
	}
	return ids
}

func bindCharacter(registry *Registry, characterID int64, sessionID uint64) *CharacterState {
	state := &CharacterState{
		CharacterID: characterID,
		SessionID:   sessionID,
		ZoneID:      1,
		Movement:    validation.NewMovementState(validation.Position{}, 1000),
		Actions:     validation.NewActionBucket(),
		Holdings:    inventory.NewHoldings(),
		Skills:      map[skill.Name]*skill.Record{},
	}
	for _, n := range skill.AllSkills {
		rec := skill.NewDefaultRecord(n)
		state.Skills[n] = &rec
	}
	registry.Bind(state)
	return state
}

func TestHandlePing(t *testing.T) {
	rt, registry := newTestRouter(fakeCatalog{}, int64(4*60*60*1000))
	bindCharacter(registry, 1, 1)

	reply := rt.Handle(1, Envelope{Kind: KindPing}, 5000)
	if reply.Kind != "pong" {
		t.Fatalf("kind = %s, want pong", reply.Kind)
	}
}

func TestHandleUnknownSessionRejected(t *testing.T) {
	rt, _ := newTestRouter(fakeCatalog{}, int64(4*60*60*1000))
	reply := rt.Handle(99, Envelope{Kind: KindMove}, 1000)
	if reply.Err == nil || reply.Err.Kind != "SESSION_NOT_FOUND" {
		t.Fatalf("reply = %+v, want SESSION_NOT_FOUND", reply)
	}
}

func TestHandleMoveAccepted(t *testing.T) {
	rt, registry := newTestRouter(fakeCatalog{}, int64(4*60*60*1000))
	bindCharacter(registry, 1, 1)

	reply := rt.Handle(1, Envelope{Kind: KindMove, Payload: map[string]any{
		"x": 1.0, "y": 0.0, "z": 0.0, "kind": "walk",
	}}, 1500)
	if reply.Err != nil {
		t.Fatalf("move rejected: %+v", reply.Err)
	}
	if reply.Kind != "move_ack" {
		t.Fatalf("kind = %s, want move_ack", reply.Kind)
	}
}

func TestHandleMoveSpeedHackRejected(t *testing.T) {
	rt, registry := newTestRouter(fakeCatalog{}, int64(4*60*60*1000))
	bindCharacter(registry, 1, 1)

	reply := rt.Handle(1, Envelope{Kind: KindMove, Payload: map[string]any{
		"x": 5000.0, "y": 0.0, "z": 0.0, "kind": "walk",
	}}, 1500)
	if reply.Err == nil || reply.Err.Kind != "SPEED_HACK" {
		t.Fatalf("reply = %+v, want SPEED_HACK", reply)
	}
}

func TestHandleSkillActionUnknownSkillRejected(t *testing.T) {
	rt, registry := newTestRouter(fakeCatalog{}, int64(4*60*60*1000))
	bindCharacter(registry, 1, 1)

	reply := rt.Handle(1, Envelope{Kind: KindSkillAction, Payload: map[string]any{
		"skill": "not_a_skill",
	}}, 1000)
	if reply.Err == nil || reply.Err.Kind != "INVALID_ACTION" {
		t.Fatalf("reply = %+v, want INVALID_ACTION", reply)
	}
}

func TestHandleSkillActionClaimedPositionOutOfToleranceRejected(t *testing.T) {
	rt, registry := newTestRouter(fakeCatalog{}, int64(4*60*60*1000))
	bindCharacter(registry, 1, 1)

	reply := rt.Handle(1, Envelope{Kind: KindSkillAction, Payload: map[string]any{
		"skill": "mining", "x": 500.0, "y": 0.0, "z": 0.0,
	}}, 1000)
	if reply.Err == nil || reply.Err.Kind != "INVALID_ACTION" {
		t.Fatalf("reply = %+v, want INVALID_ACTION for out-of-tolerance claimed position", reply)
	}
}

func TestHandleSkillActionTargetOutOfRangeRejected(t *testing.T) {
	rt, registry := newTestRouter(fakeCatalog{}, int64(4*60*60*1000))
	bindCharacter(registry, 1, 1)

	reply := rt.Handle(1, Envelope{Kind: KindSkillAction, Payload: map[string]any{
		"skill": "mining", "targetX": 500.0, "targetY": 0.0, "targetZ": 0.0,
	}}, 1000)
	if reply.Err == nil || reply.Err.Kind != "INVALID_ACTION" {
		t.Fatalf("reply = %+v, want INVALID_ACTION for out-of-range target", reply)
	}
}

func TestHandleSkillActionWithinRangeProceeds(t *testing.T) {
	rt, registry := newTestRouter(fakeCatalog{}, int64(4*60*60*1000))
	bindCharacter(registry, 1, 1)

	reply := rt.Handle(1, Envelope{Kind: KindSkillAction, Payload: map[string]any{
		"skill": "mining", "x": 1.0, "y": 0.0, "z": 0.0,
		"targetX": 2.0, "targetY": 0.0, "targetZ": 0.0,
	}}, 1000)
	if reply.Err != nil {
		t.Fatalf("skill action within tolerance rejected: %+v", reply.Err)
	}
	if reply.Kind != "skill_action_result" {
		t.Fatalf("kind = %s, want skill_action_result", reply.Kind)
	}
}

func TestHandleGMCommandRequiresAccessLevel(t *testing.T) {
	rt, registry := newTestRouter(fakeCatalog{}, int64(4*60*60*1000))
	state := bindCharacter(registry, 1, 1)
	state.AccessLevel = 0

	reply := rt.Handle(1, Envelope{Kind: KindGMCommand, Payload: map[string]any{
		"command": "teleport_self",
	}}, 1000)
	if reply.Err == nil || reply.Err.Kind != "INVALID_ACTION" {
		t.Fatalf("reply = %+v, want INVALID_ACTION for insufficient access", reply)
	}
}

func TestHandleGMCommandGrantItem(t *testing.T) {
	rt, registry := newTestRouter(fakeCatalog{1: {ID: 1, MaxStack: 100}}, int64(4*60*60*1000))
	state := bindCharacter(registry, 1, 1)
	state.AccessLevel = gmAccessLevel

	reply := rt.Handle(1, Envelope{Kind: KindGMCommand, Payload: map[string]any{
		"command": "grant_item", "itemId": 1.0, "quantity": 5.0,
	}}, 1000)
	if reply.Err != nil {
		t.Fatalf("grant_item rejected: %+v", reply.Err)
	}
	if state.Holdings.Backpack.Slots[0].ItemID != 1 || state.Holdings.Backpack.Slots[0].Quantity != 5 {
		t.Fatalf("backpack slot 0 = %+v, want item 1 qty 5", state.Holdings.Backpack.Slots[0])
	}
}

func TestHandleGECreateCancelCollect(t *testing.T) {
	rt, registry := newTestRouter(fakeCatalog{1: {ID: 1, MaxStack: 100, Tradeable: true}}, int64(4*60*60*1000))
	state := bindCharacter(registry, 1, 1)
	rt.invEngine.AddToBackpack(state.Holdings, 1, 10)

	// buyer needs reservable gold held as item 0 (gold), skip ledger setup by
	// creating a sell offer instead, which reserves items already in hand.
	createReply := rt.Handle(1, Envelope{Kind: KindGECreateOffer, Payload: map[string]any{
		"itemId": 1.0, "side": "sell", "price": 10.0, "quantity": 5.0,
	}}, 1000)
	if createReply.Err != nil {
		t.Fatalf("create offer rejected: %+v", createReply.Err)
	}
	offerID := createReply.Payload["offerId"].(int64)

	cancelReply := rt.Handle(1, Envelope{Kind: KindGECancelOffer, Payload: map[string]any{
		"offerId": float64(offerID),
	}}, 2000)
	if cancelReply.Err != nil {
		t.Fatalf("cancel offer rejected: %+v", cancelReply.Err)
	}

	collectReply := rt.Handle(1, Envelope{Kind: KindGECollect, Payload: map[string]any{
		"offerId": float64(offerID),
	}}, 3000)
	if collectReply.Err != nil {
		t.Fatalf("collect rejected: %+v", collectReply.Err)
	}
}

func TestHandleGMCommandSpawnNpc(t *testing.T) {
	rt, registry := newTestRouter(fakeCatalog{}, int64(4*60*60*1000))
	state := bindCharacter(registry, 1, 1)
	state.AccessLevel = gmAccessLevel
	rt.NpcMgr = npcmgr.NewManager([]npcmgr.Template{{ID: 7, MaxHP: 10}})

	reply := rt.Handle(1, Envelope{Kind: KindGMCommand, Payload: map[string]any{
		"command": "spawn_npc", "templateId": 7.0, "x": 1.0, "y": 2.0, "z": 3.0,
	}}, 1000)
	if reply.Err != nil {
		t.Fatalf("spawn_npc rejected: %+v", reply.Err)
	}
	if _, ok := reply.Payload["instanceId"]; !ok {
		t.Fatalf("reply = %+v, want instanceId in payload", reply)
	}
}

func TestHandleGMCommandSpawnNpcUnknownTemplateRejected(t *testing.T) {
	rt, registry := newTestRouter(fakeCatalog{}, int64(4*60*60*1000))
	state := bindCharacter(registry, 1, 1)
	state.AccessLevel = gmAccessLevel
	rt.NpcMgr = npcmgr.NewManager(nil)

	reply := rt.Handle(1, Envelope{Kind: KindGMCommand, Payload: map[string]any{
		"command": "spawn_npc", "templateId": 999.0,
	}}, 1000)
	if reply.Err == nil || reply.Err.Kind != "INVALID_ACTION" {
		t.Fatalf("reply = %+v, want INVALID_ACTION for unknown template", reply)
	}
}

func TestHandleGMCommandKickSession(t *testing.T) {
	rt, registry := newTestRouter(fakeCatalog{}, int64(4*60*60*1000))
	gm := bindCharacter(registry, 1, 1)
	gm.AccessLevel = gmAccessLevel
	bindCharacter(registry, 2, 2)

	var kicked uint64
	rt.Kick = func(sessionID uint64) { kicked = sessionID }

	reply := rt.Handle(1, Envelope{Kind: KindGMCommand, Payload: map[string]any{
		"command": "kick_session", "targetCharacterId": 2.0,
	}}, 1000)
	if reply.Err != nil {
		t.Fatalf("kick_session rejected: %+v", reply.Err)
	}
	if kicked != 2 {
		t.Fatalf("kicked session = %d, want 2", kicked)
	}
}

func TestHandleChatSendZoneFanOut(t *testing.T) {
	rt, registry := newTestRouter(fakeCatalog{}, int64(4*60*60*1000))
	bindCharacter(registry, 1, 1)
	bindCharacter(registry, 2, 2)

	var received []string
	deliver := func(recipientCharID int64, channel chat.Channel, senderName, text string) {
		received = append(received, text)
	}
	dir := &fakeChatDirectory{byID: map[int64]chat.Participant{
		1: {CharacterID: 1, Name: "alice", ZoneID: 1},
		2: {CharacterID: 2, Name: "bob", ZoneID: 1},
	}}
	rt.zones.Join(1, 1)
	rt.zones.Join(1, 2)
	rt.Chat = chat.NewRouter(dir, rt.zones, nil, nil, deliver, zap.NewNop())

	reply := rt.Handle(1, Envelope{Kind: KindChatSend, Payload: map[string]any{
		"channel": "zone", "text": "hello there",
	}}, 1000)
	if reply.Err != nil {
		t.Fatalf("chat send rejected: %+v", reply.Err)
	}
	if len(received) != 2 {
		t.Fatalf("received %d deliveries, want 2 (both zone-1 members)", len(received))
	}
}

func TestHandleChatBlockSuppressesWhisper(t *testing.T) {
	rt, registry := newTestRouter(fakeCatalog{}, int64(4*60*60*1000))
	bindCharacter(registry, 1, 1)
	bindCharacter(registry, 2, 2)

	var received []string
	deliver := func(recipientCharID int64, channel chat.Channel, senderName, text string) {
		received = append(received, text)
	}
	dir := &fakeChatDirectory{byID: map[int64]chat.Participant{
		1: {CharacterID: 1, Name: "alice", ZoneID: 1},
		2: {CharacterID: 2, Name: "bob", ZoneID: 1},
	}}
	rt.Chat = chat.NewRouter(dir, rt.zones, nil, nil, deliver, zap.NewNop())

	blockReply := rt.Handle(2, Envelope{Kind: KindChatBlock, Payload: map[string]any{"name": "alice"}}, 1000)
	if blockReply.Err != nil {
		t.Fatalf("chat block rejected: %+v", blockReply.Err)
	}

	whisperReply := rt.Handle(1, Envelope{Kind: KindChatSend, Payload: map[string]any{
		"channel": "whisper", "target": "bob", "text": "hi",
	}}, 2000)
	if whisperReply.Err == nil {
		t.Fatal("whisper to a blocker should be rejected")
	}
	if len(received) != 0 {
		t.Fatalf("received %d deliveries, want 0 (blocked)", len(received))
	}
}

func TestHandleNpcTalkNoScriptEngineConfigured(t *testing.T) {
	rt, registry := newTestRouter(fakeCatalog{}, int64(4*60*60*1000))
	bindCharacter(registry, 1, 1)

	reply := rt.Handle(1, Envelope{Kind: KindNpcTalk, Payload: map[string]any{
		"npcTemplateId": 5.0,
	}}, 1000)
	if reply.Err == nil || reply.Err.Kind != "INTERNAL_ERROR" {
		t.Fatalf("reply = %+v, want INTERNAL_ERROR (no scripting engine wired)", reply)
	}
}

func TestHandleSelectCharacterNoLoaderConfigured(t *testing.T) {
	rt, _ := newTestRouter(fakeCatalog{}, int64(4*60*60*1000))
	reply := rt.Handle(1, Envelope{Kind: KindSelectChar, Payload: map[string]any{"characterId": 1.0}}, 1000)
	if reply.Err == nil || reply.Err.Kind != "INTERNAL_ERROR" {
		t.Fatalf("reply = %+v, want INTERNAL_ERROR (no loader wired)", reply)
	}
}
