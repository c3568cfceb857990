package ir

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"

	"golang.org/x/text/unicode/norm"
)

// Domain prefixes for content hashes.
// Version suffix enables future algorithm migration.
const (
	DomainEvent   = "evpatch/event/v1"
	DomainCommand = "evpatch/command/v1"
)

// newDomainHash starts a SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func newDomainHash(domain string) hash.Hash {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	return h
}

// EventHash computes a content hash over an event's rest behavior,
// instructions, and parameter table. Two events hash equal exactly when
// their serialized forms are byte-identical.
func EventHash(ev *Event) string {
	h := newDomainHash(DomainEvent)
	var buf [8]byte
	putInt := func(v int64) {
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		h.Write(buf[:])
	}

	putInt(ev.ID)
	putInt(int64(ev.Rest))
	putInt(int64(len(ev.Instructions)))
	for _, instr := range ev.Instructions {
		putInt(int64(instr.Bank))
		putInt(int64(instr.ID))
		putInt(int64(len(instr.ArgData)))
		h.Write(instr.ArgData)
	}
	putInt(int64(len(ev.Parameters)))
	for _, p := range ev.Parameters {
		putInt(p.InstrIndex)
		putInt(p.TargetStartByte)
		putInt(p.SourceStartByte)
		putInt(int64(p.ByteCount))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// CommandHash hashes a list of command lines. Lines are NFC normalized so
// that visually identical configuration text hashes the same regardless of
// the editor that produced it.
func CommandHash(commands []string) string {
	h := newDomainHash(DomainCommand)
	for _, c := range commands {
		h.Write([]byte(norm.NFC.String(c)))
		h.Write([]byte{0x00})
	}
	return hex.EncodeToString(h.Sum(nil))
}
