package debate

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Fingerprint derives a stable, content-addressed cache key for a request.
// The key covers topic text, the focus-area set (sorted, de-duplicated) and
// every artifact's content digest in submission order. Paths never enter the
// hash, so renaming a file does not bust the cache while editing it does.
// Malformed input is normalized, never rejected.
func Fingerprint(req Request) string {
	h := sha256.New()

	h.Write([]byte("topic\x00"))
	h.Write([]byte(strings.TrimSpace(req.Topic)))
	h.Write([]byte{0})

	areas := normalizeFocusAreas(req.FocusAreas)
	h.Write([]byte("focus\x00"))
	for _, a := range areas {
		h.Write([]byte(a))
		h.Write([]byte{0})
	}

	h.Write([]byte("artifacts\x00"))
	for _, art := range req.Artifacts {
		h.Write([]byte(art.Digest))
		h.Write([]byte{0})
	}

	return hex.EncodeToString(h.Sum(nil))
}

// DigestContent returns the content digest used for Artifact.Digest.
func DigestContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// normalizeFocusAreas lowercases, trims, de-duplicates and sorts the set so
// field order never affects the fingerprint.
func normalizeFocusAreas(areas []string) []string {
	seen := make(map[string]bool, len(areas))
	var out []string
	for _, a := range areas {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}
