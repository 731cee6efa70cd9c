package auth

import (
	"crypto/rand"
	"encoding/binary"
)

// RandomState returns a uniformly distributed int16 for use as the anti-CSRF
// state value. It reads from crypto/rand, which does not fail on supported
// platforms.
func RandomState() int16 {
	var b [2]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic("auth: crypto/rand: " + err.Error())
	}
	return int16(binary.BigEndian.Uint16(b[:]))
}
