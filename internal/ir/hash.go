package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainTree = "arbor/tree/v1"
	DomainRun  = "arbor/run/v1"
)

// hashWithDomain computes a SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// TreeHash computes the content-addressed identity of a compiled tree.
// The hash is stable across restarts, replays, and node declaration order
// given the same compiled structure. Returns an error if the spec cannot be
// canonically marshaled (floats or nulls in leaf params).
func TreeHash(spec *TreeSpec) (string, error) {
	canonical, err := MarshalCanonical(spec.CanonicalMap())
	if err != nil {
		return "", fmt.Errorf("TreeHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainTree, canonical), nil
}

// RunID computes the content-addressed identity of a run: the same token,
// tree, and starting point always produce the same id. Replay relies on
// this to show that a re-execution is the same run.
func RunID(runToken, treeHash string, startedSeq int64) (string, error) {
	obj := map[string]any{
		"run_token":   runToken,
		"tree_hash":   treeHash,
		"started_seq": startedSeq,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("RunID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRun, canonical), nil
}

// MustTreeHash is like TreeHash but panics on error.
// Use only in tests or when the spec is known to be valid.
func MustTreeHash(spec *TreeSpec) string {
	hash, err := TreeHash(spec)
	if err != nil {
		panic(err)
	}
	return hash
}

// MustRunID is like RunID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustRunID(runToken, treeHash string, startedSeq int64) string {
	id, err := RunID(runToken, treeHash, startedSeq)
	if err != nil {
		panic(err)
	}
	return id
}
