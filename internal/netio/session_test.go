package netio

import (
	"testing"

	"go.uber.org/zap"

	"github.com/duskhollow/realm/internal/config"
)

func testSigningMaterial() SigningMaterial {
	var key [32]byte
	for i := range key {
		key[i] = byte(i + 1)
	}
	return SigningMaterial{EncryptionKey: key, SigningKey: []byte("signing-key")}
}

func testVCfg() config.ValidationConfig {
	return config.ValidationConfig{
		MaxPacketAgeMs:       30000,
		ClockSkewToleranceMs: 5000,
		SequenceWindow:       1000,
		NonceExpiryMs:        60000,
	}
}

func newTestSession() *Session {
	return &Session{
		ID: 1, key: testSigningMaterial(), expiresAtMs: 1_000_000_000,
		seenNonces: make(map[string]nonceEntry),
		closeCh:    make(chan struct{}),
		log:        zap.NewNop(),
	}
}

func buildEnvelope(s *Session, plaintext []byte, seq uint32, nowMs int64, nonce []byte) Envelope {
	var iv [gcmIVLen]byte
	iv[0] = byte(seq)
	ciphertext, _ := Encrypt(s.key.EncryptionKey, iv, plaintext)
	sig := Sign(s.key.SigningKey, ciphertext, seq, nowMs, nonce)
	return Envelope{Ciphertext: ciphertext, Signature: sig, Sequence: seq, TimestampMs: nowMs, Nonce: nonce}
}

func TestDecodeAcceptsValidEnvelope(t *testing.T) {
	s := newTestSession()
	env := buildEnvelope(s, []byte("hello"), 1, 1000, []byte("nonce-1"))

	got, err := s.Decode(env, 1000, testVCfg())
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("decoded = %q, want hello", got)
	}
	if s.lastSequence != 1 {
		t.Fatalf("lastSequence = %d, want 1", s.lastSequence)
	}
}

func TestDecodeRejectsReplayedNonce(t *testing.T) {
	s := newTestSession()
	env := buildEnvelope(s, []byte("hello"), 1, 1000, []byte("nonce-1"))
	if _, err := s.Decode(env, 1000, testVCfg()); err != nil {
		t.Fatalf("first decode failed: %v", err)
	}

	replay := buildEnvelope(s, []byte("hello"), 2, 1100, []byte("nonce-1"))
	if _, err := s.Decode(replay, 1100, testVCfg()); err == nil {
		t.Fatal("replayed nonce should be rejected")
	}
}

func TestDecodeRejectsOutOfWindowSequence(t *testing.T) {
	s := newTestSession()
	s.lastSequence = 5
	env := buildEnvelope(s, []byte("hello"), 5, 1000, []byte("nonce-a"))

	if _, err := s.Decode(env, 1000, testVCfg()); err == nil {
		t.Fatal("sequence <= lastSequence should be rejected")
	}
}

func TestDecodeRejectsBadSignature(t *testing.T) {
	s := newTestSession()
	env := buildEnvelope(s, []byte("hello"), 1, 1000, []byte("nonce-1"))
	env.Signature[0] ^= 0xFF

	if _, err := s.Decode(env, 1000, testVCfg()); err == nil {
		t.Fatal("tampered signature should be rejected")
	}
}

func TestDecodeRejectsExpiredSession(t *testing.T) {
	s := newTestSession()
	s.expiresAtMs = 500
	env := buildEnvelope(s, []byte("hello"), 1, 1000, []byte("nonce-1"))

	if _, err := s.Decode(env, 1000, testVCfg()); err == nil {
		t.Fatal("expired session should be rejected")
	}
}
