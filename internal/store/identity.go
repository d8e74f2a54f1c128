package store

import (
	"crypto/sha256"
	"encoding/hex"
)

// DocumentID derives the stable identity of a document from where it came
// from, not from what it contains. Re-extracting a changed file keeps the
// same ID; moving or renaming a file produces a new one, so a rename is a
// delete of the old identity plus a create of the new.
//
// The hash input separates source and sourceID with a NUL so that
// ("ab", "c") and ("a", "bc") cannot collide. The digest is truncated to
// 16 bytes, leaving a 32-character hex string.
func DocumentID(source, sourceID string) string {
	h := sha256.New()
	h.Write([]byte(source))
	h.Write([]byte{0})
	h.Write([]byte(sourceID))
	return hex.EncodeToString(h.Sum(nil)[:16])
}
