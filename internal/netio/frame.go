package netio

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// Frame wire format for one application packet riding inside a websocket
// binary message: [4 LE sequence][8 LE timestampMs][16 nonce][32 signature]
// [ciphertext ...]. Grounded on the teacher's internal/net/codec.go
// ReadFrame/WriteFrame length-prefixed framing; the outer 2-byte length
// header isn't needed here since gorilla/websocket already delivers one
// message per frame, so this only has to lay out Envelope's fields.
const (
	nonceLen     = 16
	signatureLen = sha256.Size
	frameHeaderLen = 4 + 8 + nonceLen + signatureLen
)

// EncodeFrame serializes an Envelope to the bytes sent over the wire.
func EncodeFrame(env Envelope) []byte {
	out := make([]byte, frameHeaderLen+len(env.Ciphertext))
	binary.LittleEndian.PutUint32(out[0:4], env.Sequence)
	binary.LittleEndian.PutUint64(out[4:12], uint64(env.TimestampMs))
	copy(out[12:12+nonceLen], env.Nonce)
	copy(out[12+nonceLen:12+nonceLen+signatureLen], env.Signature)
	copy(out[frameHeaderLen:], env.Ciphertext)
	return out
}

// DecodeFrame reverses EncodeFrame, validating only the framing shape;
// cryptographic and replay validation is Session.Decode's job.
func DecodeFrame(data []byte) (Envelope, error) {
	if len(data) < frameHeaderLen {
		return Envelope{}, fmt.Errorf("frame too short: %d bytes", len(data))
	}
	env := Envelope{
		Sequence:    binary.LittleEndian.Uint32(data[0:4]),
		TimestampMs: int64(binary.LittleEndian.Uint64(data[4:12])),
		Nonce:       append([]byte(nil), data[12:12+nonceLen]...),
		Signature:   append([]byte(nil), data[12+nonceLen:12+nonceLen+signatureLen]...),
		Ciphertext:  append([]byte(nil), data[frameHeaderLen:]...),
	}
	return env, nil
}
