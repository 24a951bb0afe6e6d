package schema

import (
	"fmt"

	"indexstore/internal/rawdb"
)

// Factory the per-struct-type object producing and destructing record
// instances and answering deletion eligibility.
type Factory struct {
	def *StructDef
}

func (d *StructDef) Factory() *Factory {
	return &Factory{def: d}
}

func (f *Factory) Def() *StructDef { return f.def }

func (f *Factory) RecordSize() uint32 { return f.def.Size() }

func (f *Factory) DeletionSemantics() DeletionSemantics { return f.def.DeletionSemantics() }

// Create instantiates the record handle at addr via the bound factory
// function. Instantiating an abstract definition is a programming error.
func (f *Factory) Create(s *rawdb.Store, addr rawdb.Address) Record {
	if f.def.isAbstract {
		panic(fmt.Sprintf("schema: attempting to instantiate abstract struct %s", f.def.name))
	}
	return f.def.factory(s, addr)
}

// HasDestructor reports whether destructing a record of this type does any
// work: a destructable field somewhere in the chain or a teardown hook.
func (f *Factory) HasDestructor() bool {
	return f.def.userDestructor() != nil || f.def.hasDestructableFields()
}

// Destruct tears the record down: the custom hook first (most-derived
// behavior before field teardown), then the destructable fields from the
// most derived definition to the base.
func (f *Factory) Destruct(s *rawdb.Store, addr rawdb.Address) {
	f.def.checkLayout()
	if hook := f.def.userDestructor(); hook != nil {
		hook(s, addr)
	}
	f.def.destructFields(s, addr)
}

// DestructFields runs field teardown only, without the custom hook.
func (f *Factory) DestructFields(s *rawdb.Store, addr rawdb.Address) {
	f.def.checkLayout()
	f.def.destructFields(s, addr)
}

// IsReadyForDeletion reports whether the record at addr may be reclaimed
// now. EXPLICIT records are never eligible, the caller deletes them
// directly. The caller must execute check-then-destruct as one atomic unit
// under the external transaction boundary.
func (f *Factory) IsReadyForDeletion(s *rawdb.Store, addr rawdb.Address) bool {
	f.def.checkLayout()
	return f.def.isReadyForDeletion(s, addr)
}
