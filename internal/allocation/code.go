package allocation

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// codeAlphabet avoids 0/O and 1/I so printed QR captions stay readable.
const codeAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// NewPermitCode returns a permit code of the form PG-XXXXXXXXXX. Codes are
// random, not sequential, so they stay unique across database resets; the
// store still enforces uniqueness and retries on collision.
func NewPermitCode() string {
	b := make([]byte, 10)
	if _, err := rand.Read(b); err != nil {
		// entropy failure: fall back to a time hash, still non-sequential
		sum := sha256.Sum256([]byte(fmt.Sprint(time.Now().UnixNano())))
		copy(b, sum[:10])
	}
	out := make([]byte, 10)
	for i, v := range b {
		out[i] = codeAlphabet[int(v)%len(codeAlphabet)]
	}
	return "PG-" + string(out)
}

// QRPayload is the string encoded into the permit QR image by clients.
func QRPayload(permitID, code string) string {
	h := sha256.Sum256([]byte(permitID + "|" + code))
	return code + "." + hex.EncodeToString(h[:8])
}
