package ir

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// MarshalJSON writes the argument bytes as a hex string.
func (i *Instruction) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Bank int32  `json:"bank"`
		ID   int32  `json:"id"`
		Args string `json:"args"`
	}{i.Bank, i.ID, hex.EncodeToString(i.ArgData)})
}

// UnmarshalJSON reads an instruction written by MarshalJSON.
func (i *Instruction) UnmarshalJSON(data []byte) error {
	var raw struct {
		Bank int32  `json:"bank"`
		ID   int32  `json:"id"`
		Args string `json:"args"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	args, err := hex.DecodeString(raw.Args)
	if err != nil {
		return fmt.Errorf("instruction %d[%02d]: args: %w", raw.Bank, raw.ID, err)
	}
	i.Bank, i.ID, i.ArgData = raw.Bank, raw.ID, args
	return nil
}

// ReadScript parses a script container.
//
// Parameter entries are checked against the instruction list so that a
// malformed container fails here instead of during an edit.
func ReadScript(r io.Reader) (*Script, error) {
	var s Script
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	for _, ev := range s.Events {
		for _, p := range ev.Parameters {
			if p.InstrIndex < 0 || p.InstrIndex >= int64(len(ev.Instructions)) {
				return nil, fmt.Errorf("read script: event %d: parameter references instruction %d of %d",
					ev.ID, p.InstrIndex, len(ev.Instructions))
			}
			instr := ev.Instructions[p.InstrIndex]
			if p.TargetStartByte < 0 || p.TargetStartByte+int64(p.ByteCount) > int64(len(instr.ArgData)) {
				return nil, fmt.Errorf("read script: event %d: parameter %s exceeds instruction %d args",
					ev.ID, p.Token(), p.InstrIndex)
			}
		}
		if ev.Parameters == nil {
			ev.Parameters = []Parameter{}
		}
	}
	return &s, nil
}

// WriteScript serializes a script container. Output is deterministic.
func WriteScript(w io.Writer, s *Script) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("write script: %w", err)
	}
	return nil
}

// ReadScriptFile reads a script container from disk.
func ReadScriptFile(path string) (*Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadScript(f)
}

// WriteScriptFile writes a script container to disk.
func WriteScriptFile(path string, s *Script) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteScript(f, s); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
