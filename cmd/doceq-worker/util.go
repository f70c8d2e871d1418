package main

import (
	"crypto/rand"
	"encoding/hex"
)

// randomHex returns n random bytes hex-encoded, used to build a
// worker id unique to this process per spec §4.4 ("workerId = 'host_'
// + randomHex").
func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}
