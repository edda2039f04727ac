package netio

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/crypto/hkdf"

	"github.com/duskhollow/realm/internal/config"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Registry is the live session table, consulted by PacketCodec step 1
// (SESSION_NOT_FOUND) and by the chat/broadcast layer for fan-out.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uint64]*Session
	nextID   atomic.Uint64
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[uint64]*Session)}
}

func (r *Registry) add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
}

func (r *Registry) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func (r *Registry) Get(id uint64) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *Registry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Server accepts websocket connections and drives the handshake/session
// lifecycle (§4.1, §5). Grounded on the teacher's internal/net/server.go
// accept loop, replacing its raw-TCP framing with gorilla/websocket.
type Server struct {
	cfg      config.NetworkConfig
	vcfg     config.ValidationConfig
	registry *Registry
	masterSecret []byte
	log      *zap.Logger

	// OnMessage delivers the raw, still-encrypted frame bytes for one
	// session; the caller is responsible for DecodeFrame + Session.Decode.
	OnMessage func(sessionID uint64, raw []byte)
	OnConnect func(sessionID uint64)
	OnDisconnect func(sessionID uint64)
}

func NewServer(cfg config.NetworkConfig, vcfg config.ValidationConfig, masterSecret []byte, log *zap.Logger) *Server {
	return &Server{
		cfg: cfg, vcfg: vcfg, registry: NewRegistry(), masterSecret: masterSecret, log: log,
	}
}

func (srv *Server) Registry() *Registry { return srv.registry }

// ServeHTTP upgrades the connection and runs the handshake that yields a
// signed, encrypted session (§6 "session_established { sessionId,
// expiresAt }").
func (srv *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		srv.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	id := srv.registry.nextID.Add(1)
	key, err := deriveSessionKey(srv.masterSecret, id)
	if err != nil {
		srv.log.Error("session key derivation failed", zap.Error(err))
		conn.Close()
		return
	}
	expiresAtMs := time.Now().UnixMilli() + int64(srv.vcfg.KeyRotationMinutes)*60_000

	sess := NewSession(conn, id, key, expiresAtMs, srv.cfg.InQueueSize, srv.cfg.OutQueueSize, srv.log)
	srv.registry.add(sess)

	if err := conn.WriteJSON(map[string]any{
		"type": "session_established", "sessionId": id, "expiresAt": expiresAtMs,
	}); err != nil {
		sess.Close()
		srv.registry.remove(id)
		return
	}

	if srv.OnConnect != nil {
		srv.OnConnect(id)
	}

	sess.Start(func(sessionID uint64, data []byte) {
		if srv.OnMessage != nil {
			srv.OnMessage(sessionID, data)
		}
	})

	go func() {
		<-sess.closeCh
		srv.registry.remove(id)
		if srv.OnDisconnect != nil {
			srv.OnDisconnect(id)
		}
	}()
}

// MaybeRotate issues a fresh session record and signing material once a
// session crosses the rotation buffer, mirroring §4.1's key-rotation flow.
func (srv *Server) MaybeRotate(sess *Session, nowMs int64, rotationBufferMs int64) {
	if !sess.NeedsRotation(nowMs, rotationBufferMs) {
		return
	}
	key, err := deriveSessionKey(srv.masterSecret, sess.ID+uint64(nowMs))
	if err != nil {
		srv.log.Error("session rotation key derivation failed", zap.Error(err))
		return
	}
	newExpiry := nowMs + int64(srv.vcfg.KeyRotationMinutes)*60_000
	sess.Rotate(key, newExpiry)
	sess.conn.WriteJSON(map[string]any{
		"type": "session_rotated", "sessionId": sess.ID, "expiresAt": newExpiry,
	})
}

// deriveSessionKey derives per-session AES and HMAC keys from a server
// master secret via HKDF-SHA256, keeping golang.org/x/crypto in the
// dependency graph the way the teacher uses it for password hashing
// (internal/persist/account_repo.go bcrypt) — here for session key
// derivation instead, since this layer no longer stores passwords.
func deriveSessionKey(masterSecret []byte, sessionID uint64) (SigningMaterial, error) {
	info := []byte(fmt.Sprintf("realm-session-%d", sessionID))
	reader := hkdf.New(sha256.New, masterSecret, nil, info)

	var material SigningMaterial
	if _, err := io.ReadFull(reader, material.EncryptionKey[:]); err != nil {
		return SigningMaterial{}, err
	}
	signingKey := make([]byte, 32)
	if _, err := io.ReadFull(reader, signingKey); err != nil {
		return SigningMaterial{}, err
	}
	material.SigningKey = signingKey
	return material, nil
}

// RandomMasterSecret generates a fresh 32-byte master secret for
// deployments that don't pin one in configuration (development mode).
func RandomMasterSecret() ([]byte, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	return secret, nil
}
