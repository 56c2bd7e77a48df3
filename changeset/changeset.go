// Package changeset models the narrow slice of the sync changeset wire
// format the history layer must rewrite in place: client-reset fix-up
// (§4.7.4) substitutes the real sync file identity into any instruction's
// placeholder GlobalKey{hi: 0, ...}, and TablesTouched walks instructions to
// find the tables they reference. The
// full changeset instruction set (insert/set/list-ops/link-set/...) is the
// out-of-scope B+-tree-level encoding named in §1; this package only models
// enough of it to make those two operations concretely testable, the same
// "supplement only what's exercised" approach SPEC_FULL.md takes for the
// rest of the ambient stack.
package changeset

import (
	"encoding/binary"
	"fmt"
)

// GlobalKey is the object identifier an ObjectInstruction carries on the
// wire: Hi == 0 means "assigned by the creating peer before it had a file
// identity", the exact case client-reset fix-up rewrites (§4.7.4).
type GlobalKey struct {
	Hi uint64
	Lo uint64
}

// Op discriminates the (deliberately small) instruction set this package
// understands.
type Op uint8

const (
	// OpObject carries a GlobalKey payload and is the only instruction kind
	// the fix-up and combine paths inspect.
	OpObject Op = iota
	// OpOpaque is every other real instruction kind, carried as an
	// uninterpreted payload so a stream round-trips even though this
	// package cannot decode it.
	OpOpaque
)

// Instruction is the tagged union of the two cases this package models.
type Instruction struct {
	Op Op

	// Table is the table the instruction addresses, populated only for
	// OpObject (real changesets would carry a string interning table index
	// instead; that mechanism is out of scope here).
	Table string
	// Key is the object this instruction concerns, populated only for
	// OpObject.
	Key GlobalKey

	// Payload is the verbatim bytes of any OpOpaque instruction.
	Payload []byte
}

// RewriteGlobalKey returns a copy of ins with Hi substituted for any
// GlobalKey whose Hi is currently zero, leaving every other instruction
// untouched. This is the operation §4.7.4 performs on every local history
// entry during client-reset fix-up.
func (ins Instruction) RewriteGlobalKey(fileIdent uint64) Instruction {
	if ins.Op != OpObject || ins.Key.Hi != 0 {
		return ins
	}
	out := ins
	out.Key.Hi = fileIdent
	return out
}

// Decode parses a minimal length-prefixed instruction stream:
//
//	repeat: u8(op) u32le(table_len) table u64le(hi) u64le(lo)        -- OpObject
//	      | u8(op) u32le(payload_len) payload                          -- OpOpaque
//
// This framing exists purely so the fix-up/combine paths have something
// concrete to decode and re-encode; it is not wire-compatible with any
// production sync protocol.
func Decode(b []byte) ([]Instruction, error) {
	var out []Instruction
	for len(b) > 0 {
		if len(b) < 1 {
			return nil, fmt.Errorf("changeset: truncated stream")
		}
		op := Op(b[0])
		b = b[1:]
		switch op {
		case OpObject:
			if len(b) < 4 {
				return nil, fmt.Errorf("changeset: truncated table length")
			}
			n := binary.LittleEndian.Uint32(b[:4])
			b = b[4:]
			if uint64(len(b)) < uint64(n)+16 {
				return nil, fmt.Errorf("changeset: truncated object instruction")
			}
			table := string(b[:n])
			b = b[n:]
			hi := binary.LittleEndian.Uint64(b[:8])
			lo := binary.LittleEndian.Uint64(b[8:16])
			b = b[16:]
			out = append(out, Instruction{Op: OpObject, Table: table, Key: GlobalKey{Hi: hi, Lo: lo}})
		case OpOpaque:
			if len(b) < 4 {
				return nil, fmt.Errorf("changeset: truncated payload length")
			}
			n := binary.LittleEndian.Uint32(b[:4])
			b = b[4:]
			if uint64(len(b)) < uint64(n) {
				return nil, fmt.Errorf("changeset: truncated opaque payload")
			}
			out = append(out, Instruction{Op: OpOpaque, Payload: append([]byte(nil), b[:n]...)})
			b = b[n:]
		default:
			return nil, fmt.Errorf("changeset: unknown opcode %d", op)
		}
	}
	return out, nil
}

// Encode is the inverse of Decode.
func Encode(instrs []Instruction) []byte {
	var out []byte
	var tmp [8]byte
	for _, ins := range instrs {
		out = append(out, byte(ins.Op))
		switch ins.Op {
		case OpObject:
			binary.LittleEndian.PutUint32(tmp[:4], uint32(len(ins.Table)))
			out = append(out, tmp[:4]...)
			out = append(out, ins.Table...)
			binary.LittleEndian.PutUint64(tmp[:8], ins.Key.Hi)
			out = append(out, tmp[:8]...)
			binary.LittleEndian.PutUint64(tmp[:8], ins.Key.Lo)
			out = append(out, tmp[:8]...)
		case OpOpaque:
			binary.LittleEndian.PutUint32(tmp[:4], uint32(len(ins.Payload)))
			out = append(out, tmp[:4]...)
			out = append(out, ins.Payload...)
		}
	}
	return out
}

// RewriteGlobalKeys decodes b, applies RewriteGlobalKey(fileIdent) to every
// instruction, and re-encodes. Used directly by history's client-reset
// fix-up on each local entry's changeset bytes.
func RewriteGlobalKeys(b []byte, fileIdent uint64) ([]byte, error) {
	instrs, err := Decode(b)
	if err != nil {
		return nil, err
	}
	for i := range instrs {
		instrs[i] = instrs[i].RewriteGlobalKey(fileIdent)
	}
	return Encode(instrs), nil
}

// TablesTouched returns the distinct table names referenced by any
// OpObject instruction in the stream. Package sync does not call it: its
// combine step concatenates the rebased changesets without a table lookup.
func TablesTouched(instrs []Instruction) []string {
	seen := map[string]bool{}
	var out []string
	for _, ins := range instrs {
		if ins.Op != OpObject {
			continue
		}
		if !seen[ins.Table] {
			seen[ins.Table] = true
			out = append(out, ins.Table)
		}
	}
	return out
}
