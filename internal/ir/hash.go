package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes.
// Version suffix enables future algorithm migration.
const (
	DomainProgram = "loopviz/program/v1"
	DomainTrace   = "loopviz/trace/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ProgramHash identifies a program text. Two runs of the same program share
// a hash, which lets the trace store group them.
func ProgramHash(program string) string {
	return hashWithDomain(DomainProgram, []byte(program))
}

// TraceDigest hashes a snapshot sequence, ignoring the run id and epoch so
// that two runs of the same program with the same policy compare equal.
func TraceDigest(snapshots []Snapshot) (string, error) {
	frames := make([]any, len(snapshots))
	for i, s := range snapshots {
		m := s.CanonicalMap()
		delete(m, "run_id")
		delete(m, "epoch")
		frames[i] = m
	}
	data, err := MarshalCanonical(frames)
	if err != nil {
		return "", fmt.Errorf("TraceDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainTrace, data), nil
}
