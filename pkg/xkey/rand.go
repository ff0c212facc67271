package xkey

import "crypto/rand"

// Rand32 returns 32 cryptographically random bytes, used for transfer ids
// and pending-channel/swap ids.
func Rand32() ([32]byte, error) {
	var out [32]byte
	_, err := rand.Read(out[:])
	return out, err
}
