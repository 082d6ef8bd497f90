package record

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for fingerprints. The version suffix allows the
// algorithm to change without colliding with older hashes.
const (
	DomainSnapshot = "teasim/snapshot/v1"
	DomainRun      = "teasim/run/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SnapshotHash fingerprints the state of a simulation at tick.
func SnapshotHash(tick int64, status any) (string, error) {
	canonical, err := MarshalCanonical(map[string]any{
		"tick":   tick,
		"status": status,
	})
	if err != nil {
		return "", fmt.Errorf("SnapshotHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSnapshot, canonical), nil
}

// Trace accumulates snapshot hashes into a run fingerprint. Two runs have
// the same fingerprint only if they produced the same snapshots in the same
// order.
//
// The zero value is ready to use.
type Trace struct {
	chain string
	count int
}

// Add folds the snapshot at tick into the trace and returns its hash.
func (t *Trace) Add(tick int64, status any) (string, error) {
	h, err := SnapshotHash(tick, status)
	if err != nil {
		return "", err
	}
	t.chain = hashWithDomain(DomainRun, []byte(t.chain+h))
	t.count++
	return h, nil
}

// Fingerprint returns the run fingerprint, or "" if nothing was added.
func (t *Trace) Fingerprint() string {
	return t.chain
}

// Len returns the number of snapshots added.
func (t *Trace) Len() int {
	return t.count
}
