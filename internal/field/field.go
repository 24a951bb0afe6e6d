// Package field implements the typed field descriptors a struct definition
// is composed of. A descriptor is bound to one definition, receives its byte
// offset when that definition is finalized and afterwards reads and writes
// its slot at (record address + offset).
package field

import (
	"fmt"

	"indexstore/internal/rawdb"
)

// Field one typed slot within a record layout.
type Field interface {
	// SetOffset is called exactly once, by the schema builder.
	SetOffset(off uint32)
	// RecordSize the fixed size of the slot in bytes, known before finalize.
	RecordSize() uint32
}

// Destructable a field owning out-of-band storage that must be released
// when its record is torn down.
type Destructable interface {
	Destruct(s *rawdb.Store, addr rawdb.Address)
}

// RefCounted a relational field the deletion protocol may ask about.
type RefCounted interface {
	HasReferences(s *rawdb.Store, addr rawdb.Address) bool
}

type base struct {
	off      uint32
	assigned bool
}

func (b *base) SetOffset(off uint32) {
	if b.assigned {
		panic(fmt.Sprintf("field: offset already assigned (old=%d new=%d)", b.off, off))
	}
	b.off = off
	b.assigned = true
}

// Offset the assigned byte offset. Valid only after the owning definition
// has been finalized.
func (b *base) Offset() uint32 {
	if !b.assigned {
		panic("field: offset queried before the owning struct was finalized")
	}
	return b.off
}

func (b *base) at(addr rawdb.Address) rawdb.Address {
	return addr + rawdb.Address(b.Offset())
}
