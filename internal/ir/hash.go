package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainEdge = "recalc/edge/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// EdgeID computes the content-addressed id of a dependency edge.
// Two edges with the same target, source and via always share an id, which
// is what lets the edge store treat duplicate inserts as no-ops.
func EdgeID(e DependencyEdge) (string, error) {
	obj := map[string]any{
		"target": refCanonical(e.Target),
		"source": refCanonical(e.Source),
		"via":    e.Via,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("EdgeID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainEdge, canonical), nil
}

// MustEdgeID is like EdgeID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustEdgeID(e DependencyEdge) string {
	id, err := EdgeID(e)
	if err != nil {
		panic(err)
	}
	return id
}

func refCanonical(r AttributeRef) map[string]any {
	return map[string]any{
		"kind":      string(r.Kind),
		"owner":     r.OwnerID,
		"attribute": r.AttributeID,
	}
}
