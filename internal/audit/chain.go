package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joescharf/comply/internal/models"
)

// HashEntry computes the SHA-256 chain hash of an entry over its canonical
// fields, including the previous entry's hash.
func HashEntry(e *models.AuditEntry) string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(e.SequenceNumber, 10))
	b.WriteByte(0)
	b.WriteString(e.Timestamp.UTC().Format(time.RFC3339Nano))
	b.WriteByte(0)
	b.WriteString(e.ReviewerIdentity)
	b.WriteByte(0)
	b.WriteString(string(e.Decision))
	b.WriteByte(0)
	b.WriteString(e.RawMessage)
	b.WriteByte(0)
	b.WriteString(strings.Join(e.Citations, "\x1f"))
	b.WriteByte(0)
	b.WriteString(strconv.FormatInt(e.Supersedes, 10))
	b.WriteByte(0)
	b.WriteString(e.PrevHash)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// VerifyResult reports the integrity of a sequence of entries.
type VerifyResult struct {
	Valid    bool     `json:"valid"`
	Entries  int      `json:"entries"`
	Problems []string `json:"problems,omitempty"`
}

// Verify checks that sequence numbers start at 1 and have no gaps, that
// every hash matches its entry and links to its predecessor, and that
// corrections reference earlier entries.
func Verify(entries []models.AuditEntry) VerifyResult {
	res := VerifyResult{Valid: true, Entries: len(entries)}
	fail := func(format string, a ...any) {
		res.Valid = false
		res.Problems = append(res.Problems, fmt.Sprintf(format, a...))
	}

	prevHash := ""
	for i := range entries {
		e := &entries[i]
		want := int64(i + 1)
		if e.SequenceNumber != want {
			fail("entry %d: sequence number %d, want %d", i, e.SequenceNumber, want)
		}
		if e.PrevHash != prevHash {
			fail("entry %d: previous hash does not link to entry %d", e.SequenceNumber, e.SequenceNumber-1)
		}
		if got := HashEntry(e); got != e.Hash {
			fail("entry %d: hash mismatch", e.SequenceNumber)
		}
		if e.Supersedes != 0 && (e.Supersedes < 1 || e.Supersedes >= e.SequenceNumber) {
			fail("entry %d: supersedes unknown entry %d", e.SequenceNumber, e.Supersedes)
		}
		prevHash = e.Hash
	}
	return res
}
