package chat

import (
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/duskhollow/realm/internal/zone"
)

type fakeDirectory struct {
	participants map[int64]Participant
	byName       map[string]Participant
	guilds       map[int64][]int64
	parties      map[int64][]int64
}

func (d *fakeDirectory) ByCharacterID(id int64) (Participant, bool) {
	p, ok := d.participants[id]
	return p, ok
}
func (d *fakeDirectory) ByName(name string) (Participant, bool) {
	p, ok := d.byName[strings.ToLower(name)]
	return p, ok
}
func (d *fakeDirectory) GuildMembers(characterID int64) []int64  { return d.guilds[characterID] }
func (d *fakeDirectory) PartyMembers(characterID int64) []int64  { return d.parties[characterID] }
func (d *fakeDirectory) TradeSubscribers() []int64 {
	var ids []int64
	for id := range d.participants {
		ids = append(ids, id)
	}
	return ids
}
func (d *fakeDirectory) AllCharacterIDs() []int64 { return d.TradeSubscribers() }

type recorder struct {
	received []string
}

func newTestRouter(dir *fakeDirectory, zones *zone.Index) (*Router, *recorder) {
	rec := &recorder{}
	deliver := func(recipient int64, channel Channel, sender, text string) {
		rec.received = append(rec.received, text)
	}
	return NewRouter(dir, zones, nil, nil, deliver, zap.NewNop()), rec
}

func TestZoneChatScopesToMembers(t *testing.T) {
	idx := zone.NewIndex([]zone.Record{{ID: 1}, {ID: 2}})
	idx.Join(1, 100)
	idx.Join(1, 101)
	idx.Join(2, 200)

	dir := &fakeDirectory{participants: map[int64]Participant{
		100: {CharacterID: 100, Name: "alice", ZoneID: 1},
	}}
	router, rec := newTestRouter(dir, idx)

	router.Send(100, Zone, "hello", "", 1000)
	if len(rec.received) != 2 {
		t.Fatalf("received %d messages, want 2 (both zone-1 members)", len(rec.received))
	}
}

func TestWhisperFindsCaseInsensitive(t *testing.T) {
	idx := zone.NewIndex(nil)
	dir := &fakeDirectory{
		participants: map[int64]Participant{
			1: {CharacterID: 1, Name: "alice"},
			2: {CharacterID: 2, Name: "Bob"},
		},
		byName: map[string]Participant{
			"bob": {CharacterID: 2, Name: "Bob"},
		},
	}
	router, rec := newTestRouter(dir, idx)

	ok := router.Send(1, Whisper, "psst", "BOB", 1000)
	if !ok {
		t.Fatal("whisper send returned false")
	}
	if len(rec.received) != 2 { // recipient + echo to sender
		t.Fatalf("received %d messages, want 2 (recipient + sender echo)", len(rec.received))
	}
}

func TestWhisperToBlockingRecipientSuppressesDelivery(t *testing.T) {
	idx := zone.NewIndex(nil)
	dir := &fakeDirectory{
		participants: map[int64]Participant{
			1: {CharacterID: 1, Name: "alice"},
			2: {CharacterID: 2, Name: "Bob"},
		},
		byName: map[string]Participant{
			"bob": {CharacterID: 2, Name: "Bob"},
		},
	}
	router, rec := newTestRouter(dir, idx)
	router.Block(2, 1) // bob blocks alice

	ok := router.Send(1, Whisper, "psst", "BOB", 1000)
	if ok {
		t.Fatal("whisper to a blocker should be rejected")
	}
	if len(rec.received) != 0 {
		t.Fatalf("received %d messages, want 0", len(rec.received))
	}
}

func TestUnblockRestoresWhisperDelivery(t *testing.T) {
	idx := zone.NewIndex(nil)
	dir := &fakeDirectory{
		participants: map[int64]Participant{
			1: {CharacterID: 1, Name: "alice"},
			2: {CharacterID: 2, Name: "Bob"},
		},
		byName: map[string]Participant{
			"bob": {CharacterID: 2, Name: "Bob"},
		},
	}
	router, rec := newTestRouter(dir, idx)
	router.Block(2, 1)
	router.Unblock(2, 1)

	ok := router.Send(1, Whisper, "psst", "BOB", 1000)
	if !ok {
		t.Fatal("whisper send returned false after unblock")
	}
	if len(rec.received) != 2 {
		t.Fatalf("received %d messages, want 2", len(rec.received))
	}
}

func TestBlockByNameResolvesConnectedCharacter(t *testing.T) {
	idx := zone.NewIndex(nil)
	dir := &fakeDirectory{
		participants: map[int64]Participant{
			1: {CharacterID: 1, Name: "alice"},
			2: {CharacterID: 2, Name: "Bob"},
		},
		byName: map[string]Participant{
			"bob": {CharacterID: 2, Name: "Bob"},
		},
	}
	router, _ := newTestRouter(dir, idx)

	// alice (1) blocks bob (2) by name.
	if !router.BlockByName(1, "BOB") {
		t.Fatal("BlockByName should resolve a connected character's name")
	}
	if !router.isBlocked(1, 2) {
		t.Fatal("expected character 2 to be recorded as blocked by character 1")
	}
	if router.BlockByName(1, "nobody") {
		t.Fatal("BlockByName for an unknown name should return false")
	}
}

func TestMessageTruncatedAtMaxLength(t *testing.T) {
	idx := zone.NewIndex([]zone.Record{{ID: 1}})
	idx.Join(1, 1)
	dir := &fakeDirectory{participants: map[int64]Participant{1: {CharacterID: 1, ZoneID: 1}}}
	router, rec := newTestRouter(dir, idx)

	long := strings.Repeat("x", 600)
	router.Send(1, Zone, long, "", 1000)
	if len(rec.received[0]) != MaxMessageLength {
		t.Fatalf("message length = %d, want %d", len(rec.received[0]), MaxMessageLength)
	}
}
