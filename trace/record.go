// Package trace reads and writes memory access traces in the format produced
// by Valgrind's lackey tool.
package trace

import "fmt"

// Kind identifies the operation of a trace record.
type Kind byte

const (
	// Instruction is an instruction fetch. It does not touch the data cache.
	Instruction Kind = 'I'
	// Load reads data.
	Load Kind = 'L'
	// Store writes data.
	Store Kind = 'S'
	// Modify reads and then writes the same data.
	Modify Kind = 'M'
)

// ParseKind maps a trace operation letter to its Kind.
func ParseKind(op byte) (Kind, bool) {
	k := Kind(op)
	return k, k.Valid()
}

// Valid reports whether k is one of the known operations.
func (k Kind) Valid() bool {
	switch k {
	case Instruction, Load, Store, Modify:
		return true
	default:
		return false
	}
}

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("Kind(%d)", byte(k))
	}
	return string(rune(k))
}

// Record is one memory access of a trace.
type Record struct {
	Kind    Kind
	Address uint64
	Size    int

	// Line is the line of the trace file the record was read from. It is 0
	// for records that were not read from a file.
	Line int
}

// Format renders a record as a trace line. Data accesses are indented by one
// space, as lackey writes them.
func Format(r Record) string {
	if r.Kind == Instruction {
		return fmt.Sprintf("%s %x,%d", r.Kind, r.Address, r.Size)
	}
	return fmt.Sprintf(" %s %x,%d", r.Kind, r.Address, r.Size)
}
