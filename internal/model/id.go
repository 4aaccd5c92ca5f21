package model

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"sync/atomic"
	"time"
)

// Record IDs are generated client-side so creation works fully offline and the
// ID survives the server round-trip unchanged. The format is a 24-character
// hex string: 4 bytes of unix seconds, 5 random bytes, and a 3-byte counter
// seeded randomly per process.

var idCounter = func() *uint32 {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic("model: failed to seed id counter: " + err.Error())
	}
	c := binary.BigEndian.Uint32(b[:])
	return &c
}()

var idEntropy = func() [5]byte {
	var b [5]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic("model: failed to read id entropy: " + err.Error())
	}
	return b
}()

// NewID returns a new globally unique 24-hex-character record ID.
func NewID() string {
	var raw [12]byte
	binary.BigEndian.PutUint32(raw[0:4], uint32(time.Now().Unix()))
	copy(raw[4:9], idEntropy[:])
	n := atomic.AddUint32(idCounter, 1)
	raw[9] = byte(n >> 16)
	raw[10] = byte(n >> 8)
	raw[11] = byte(n)
	return hex.EncodeToString(raw[:])
}

// IsID reports whether s is a well-formed 24-hex-character record ID.
func IsID(s string) bool {
	if len(s) != 24 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}
