package netio

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/duskhollow/realm/internal/config"
	"github.com/duskhollow/realm/internal/gameerr"
)

// nonceEntry tracks when an accepted nonce expires, so the set can be
// garbage collected (§4.1 step 4, "accepted nonces are inserted with
// nonceExpiryMs TTL").
type nonceEntry struct {
	expiresAtMs int64
}

// Session is one client connection's protocol state. Network I/O runs in
// dedicated reader/writer goroutines; game state is touched only from the
// game loop, mirroring the teacher's internal/net.Session split.
type Session struct {
	ID   uint64
	conn *websocket.Conn

	mu sync.Mutex

	key          SigningMaterial
	expiresAtMs  int64
	lastSequence uint32
	seenNonces   map[string]nonceEntry
	ivCounter    uint64

	InQueue  chan []byte
	OutQueue chan []byte

	closeCh   chan struct{}
	closeOnce sync.Once
	closed    bool

	log *zap.Logger
}

func NewSession(conn *websocket.Conn, id uint64, key SigningMaterial, expiresAtMs int64, inSize, outSize int, log *zap.Logger) *Session {
	return &Session{
		ID: id, conn: conn, key: key, expiresAtMs: expiresAtMs,
		seenNonces: make(map[string]nonceEntry),
		InQueue:    make(chan []byte, inSize),
		OutQueue:   make(chan []byte, outSize),
		closeCh:    make(chan struct{}),
		log:        log.With(zap.Uint64("session", id)),
	}
}

// Rotate installs fresh signing material and extends the expiry, used when
// a session crosses the rotation buffer (§4.1 "flagged for key rotation").
func (s *Session) Rotate(key SigningMaterial, newExpiresAtMs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.key = key
	s.expiresAtMs = newExpiresAtMs
}

func (s *Session) gcNonces(nowMs int64) {
	for n, e := range s.seenNonces {
		if e.expiresAtMs <= nowMs {
			delete(s.seenNonces, n)
		}
	}
}

// Decode runs the full §4.1 validation order against one inbound envelope,
// advancing last_sequence only on success.
func (s *Session) Decode(env Envelope, nowMs int64, cfg config.ValidationConfig) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if nowMs > s.expiresAtMs {
		return nil, decodeErr(gameerr.SessionExpired)
	}

	if env.TimestampMs > nowMs && env.TimestampMs-nowMs > int64(cfg.ClockSkewToleranceMs) {
		return nil, decodeErr(gameerr.InvalidTimestamp)
	}
	if nowMs > env.TimestampMs && nowMs-env.TimestampMs > int64(cfg.MaxPacketAgeMs) {
		return nil, decodeErr(gameerr.InvalidTimestamp)
	}

	s.gcNonces(nowMs)
	nonceKey := string(env.Nonce)
	if _, seen := s.seenNonces[nonceKey]; seen {
		return nil, decodeErr(gameerr.ReplayAttack)
	}

	if !(s.lastSequence < env.Sequence && env.Sequence <= s.lastSequence+cfg.SequenceWindow) {
		return nil, decodeErr(gameerr.SequenceViolation)
	}

	if !VerifySignature(s.key.SigningKey, env.Ciphertext, env.Sequence, env.TimestampMs, env.Nonce, env.Signature) {
		return nil, decodeErr(gameerr.SignatureMismatch)
	}

	plaintext, err := Decrypt(s.key.EncryptionKey, env.Ciphertext)
	if err != nil {
		return nil, decodeErr(gameerr.DecryptionFailed)
	}

	s.seenNonces[nonceKey] = nonceEntry{expiresAtMs: nowMs + int64(cfg.NonceExpiryMs)}
	s.lastSequence = env.Sequence
	return plaintext, nil
}

// nextSequence and the ivCounter field are tiny monotonic counters, both
// advanced inside Encode while it holds the session mutex; outbound framing
// mirrors the inbound construction
// (§4.1 "Outbound packets mirror the construction").
var outboundSeqCounters sync.Map // map[uint64]*uint32, keyed by session id

func (s *Session) Encode(plaintext []byte, nowMs int64) (Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ivCounter++
	var iv [gcmIVLen]byte
	// Fold the per-session counter into the IV so no two outbound packets
	// from this session ever reuse one, which GCM requires.
	c := s.ivCounter
	for i := 0; i < 8 && i < gcmIVLen; i++ {
		iv[gcmIVLen-1-i] = byte(c >> (8 * i))
	}
	iv[0] = byte(s.ID)

	ciphertext, err := Encrypt(s.key.EncryptionKey, iv, plaintext)
	if err != nil {
		return Envelope{}, err
	}

	seq := s.nextSequence()
	nonce := make([]byte, 16)
	for i := range nonce {
		nonce[i] = byte(c >> uint(i%8))
	}
	sig := Sign(s.key.SigningKey, ciphertext, seq, nowMs, nonce)

	return Envelope{
		Ciphertext: ciphertext, Signature: sig, Sequence: seq, TimestampMs: nowMs, Nonce: nonce,
	}, nil
}

func (s *Session) nextSequence() uint32 {
	v, _ := outboundSeqCounters.LoadOrStore(s.ID, new(uint32))
	counter := v.(*uint32)
	*counter++
	return *counter
}

// NeedsRotation reports whether the session is close enough to expiry to
// warrant issuing a new session record (§4.1 rotationBuffer).
func (s *Session) NeedsRotation(nowMs int64, rotationBufferMs int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiresAtMs-nowMs <= rotationBufferMs
}

// Send queues an already-encoded frame for the writer goroutine.
// Non-blocking: a full OutQueue disconnects the session.
func (s *Session) Send(frame []byte) {
	select {
	case s.OutQueue <- frame:
	default:
		s.log.Warn("output queue full, disconnecting slow session")
		s.Close()
	}
}

func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.closeCh)
		s.conn.Close()
	})
}

func (s *Session) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) readLoop(onMessage func(sessionID uint64, data []byte)) {
	defer s.Close()
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		select {
		case s.InQueue <- data:
		case <-s.closeCh:
			return
		}
		if onMessage != nil {
			onMessage(s.ID, data)
		}
	}
}

func (s *Session) writeLoop() {
	defer s.Close()
	for {
		select {
		case data := <-s.OutQueue:
			s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := s.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				return
			}
		case <-s.closeCh:
			return
		}
	}
}

// Start launches the reader and writer goroutines (§5 "many I/O-handling
// workers read/write WebSocket frames").
func (s *Session) Start(onMessage func(sessionID uint64, data []byte)) {
	go s.readLoop(onMessage)
	go s.writeLoop()
}
