// Package schema implements the struct definition layer of the index store:
// record layouts composed of typed fields, single inheritance with prefix
// layouts, deletion semantics and the per-type factory protocol.
//
// Definitions are built single-threaded during process registration and
// frozen by Done; afterwards they are immutable, shared metadata.
//
// A record may leave the store in one of three ways:
//
//   - explicit deletion, synchronous, issued by the caller. Such structs do
//     not opt into ref counting and declare no owner fields;
//   - owner links: the struct carries one or more outbound owner links and
//     becomes eligible once the last of them is cleared;
//   - ref counting: the struct becomes eligible once every counted
//     relational field reports zero references. Back-link lists whose
//     inverse is an owner link are excluded, owner relationships would
//     always form cycles otherwise.
package schema

import (
	"fmt"

	"indexstore/internal/field"
	"indexstore/internal/rawdb"
)

// DeletionSemantics the policy deciding when a record of a given struct
// definition may be automatically reclaimed.
type DeletionSemantics int

const (
	Explicit DeletionSemantics = iota
	Owned
	RefCounted
)

func (d DeletionSemantics) String() string {
	switch d {
	case Explicit:
		return "EXPLICIT"
	case Owned:
		return "OWNED"
	case RefCounted:
		return "REFCOUNTED"
	}
	return fmt.Sprintf("DeletionSemantics(%d)", int(d))
}

// Record a loaded handle onto one stored record. Records have no identity
// beyond their address.
type Record interface {
	Address() rawdb.Address
}

// FactoryFunc produces the record handle for one concrete struct kind.
type FactoryFunc func(s *rawdb.Store, addr rawdb.Address) Record

// DestructorFunc a custom teardown hook, run before field teardown.
type DestructorFunc func(s *rawdb.Store, addr rawdb.Address)

// StructDef describes one record type that appears in the store.
type StructDef struct {
	name       string
	super      *StructDef
	subclasses []*StructDef
	isAbstract bool

	fields             []field.Field
	destructableFields []field.Destructable
	refCountedFields   []field.RefCounted
	ownerFields        []field.RefCounted
	refCounted         bool

	doneCalled bool
	layoutDone bool
	size       uint32
	semantics  DeletionSemantics

	factory    FactoryFunc
	destructor DestructorFunc
}

func newStructDef(name string, super *StructDef, isAbstract bool, factory FactoryFunc) *StructDef {
	if !isAbstract && factory == nil {
		panic(fmt.Sprintf("schema: concrete struct %s must be registered with a factory", name))
	}
	d := &StructDef{
		name:       name,
		super:      super,
		isAbstract: isAbstract,
		factory:    factory,
	}
	if super != nil {
		super.subclasses = append(super.subclasses, d)
	}
	return d
}

// CreateAbstract registers a definition that only serves as a superclass
// and can not be instantiated.
func CreateAbstract(name string, super *StructDef) *StructDef {
	return newStructDef(name, super, true, nil)
}

// Create registers a concrete definition with its factory.
func Create(name string, super *StructDef, factory FactoryFunc) *StructDef {
	return newStructDef(name, super, false, factory)
}

func (d *StructDef) Name() string { return d.name }

func (d *StructDef) Super() *StructDef { return d.super }

func (d *StructDef) IsAbstract() bool { return d.isAbstract }

func (d *StructDef) String() string { return d.name }

func (d *StructDef) checkMutable() {
	if d.doneCalled {
		panic(fmt.Sprintf("schema: struct %s may not be modified after Done", d.name))
	}
}

func (d *StructDef) checkLayout() {
	if !d.layoutDone {
		panic(fmt.Sprintf("schema: struct %s used before its layout was computed, call Done first", d.name))
	}
}

// Add appends a field descriptor in declaration order.
func (d *StructDef) Add(f field.Field) {
	d.checkMutable()
	d.fields = append(d.fields, f)
}

// AddDestructableField registers a field that must be torn down together
// with its record.
func (d *StructDef) AddDestructableField(f field.Destructable) {
	d.checkMutable()
	d.destructableFields = append(d.destructableFields, f)
}

// AddRefCountedField registers a relational field counted for REFCOUNTED
// deletion eligibility.
func (d *StructDef) AddRefCountedField(f field.RefCounted) {
	d.checkMutable()
	d.refCountedFields = append(d.refCountedFields, f)
}

// AddOwnerField registers a relational field inspected for OWNED deletion
// eligibility.
func (d *StructDef) AddOwnerField(f field.RefCounted) {
	d.checkMutable()
	d.ownerFields = append(d.ownerFields, f)
}

// UseStandardRefCounting marks the definition REFCOUNTED.
func (d *StructDef) UseStandardRefCounting() *StructDef {
	d.checkMutable()
	d.refCounted = true
	return d
}

// OnDestruct registers a custom teardown hook. Subclasses inherit the hook
// unless they register their own.
func (d *StructDef) OnDestruct(fn DestructorFunc) *StructDef {
	d.checkMutable()
	d.destructor = fn
	return d
}

func (d *StructDef) AddByte() *field.Byte {
	f := field.NewByte()
	d.Add(f)
	return f
}

func (d *StructDef) AddChar() *field.Char {
	f := field.NewChar()
	d.Add(f)
	return f
}

func (d *StructDef) AddShort() *field.Short {
	f := field.NewShort()
	d.Add(f)
	return f
}

func (d *StructDef) AddInt() *field.Int {
	f := field.NewInt()
	d.Add(f)
	return f
}

func (d *StructDef) AddLong() *field.Long {
	f := field.NewLong()
	d.Add(f)
	return f
}

func (d *StructDef) AddFloat() *field.Float {
	f := field.NewFloat()
	d.Add(f)
	return f
}

func (d *StructDef) AddDouble() *field.Double {
	f := field.NewDouble()
	d.Add(f)
	return f
}

func (d *StructDef) AddPointer() *field.Pointer {
	f := field.NewPointer()
	d.Add(f)
	return f
}

// AddString appends a string field. Its out-of-band payload makes it
// destructable.
func (d *StructDef) AddString() *field.String {
	f := field.NewString()
	d.Add(f)
	d.AddDestructableField(f)
	return f
}

// AddManyToOne appends an outbound link. The link is destructable so that
// teardown detaches the record from its inverse back-link list.
func (d *StructDef) AddManyToOne() *field.ManyToOne {
	f := field.NewManyToOne(false)
	d.Add(f)
	d.AddDestructableField(f)
	return f
}

// AddOwnerManyToOne appends an outbound owner link and registers it with
// the deletion protocol.
func (d *StructDef) AddOwnerManyToOne() *field.ManyToOne {
	f := field.NewManyToOne(true)
	d.Add(f)
	d.AddDestructableField(f)
	d.AddOwnerField(f)
	return f
}

// AddOneToMany appends the back-link list maintained as the inverse of the
// given many-to-one field. The capacity hint sizes the initial block.
// Unless the inverse is an owner link, the list takes part in standard ref
// counting.
func (d *StructDef) AddOneToMany(inverse *field.ManyToOne, capacityHint int32) *field.OneToMany {
	f := field.NewOneToMany(inverse, capacityHint)
	d.Add(f)
	d.AddDestructableField(f)
	if !inverse.Owner() {
		d.AddRefCountedField(f)
	}
	return f
}

// Done freezes the field list. If the superclass layout is known (or there
// is no superclass) the layout is computed immediately, otherwise it is
// computed when the superclass finalizes, so Done may be called in any
// order across an inheritance tree.
func (d *StructDef) Done() {
	if d.doneCalled {
		panic(fmt.Sprintf("schema: may not call Done more than once on struct %s", d.name))
	}
	d.doneCalled = true

	if d.super == nil || d.super.layoutDone {
		d.computeLayout()
	}
}

// LayoutComputed reports whether offsets and size are known.
func (d *StructDef) LayoutComputed() bool {
	return d.layoutDone
}

// Size the total record size in bytes, superclass included.
func (d *StructDef) Size() uint32 {
	d.checkLayout()
	return d.size
}

// DeletionSemantics resolved at finalize time.
func (d *StructDef) DeletionSemantics() DeletionSemantics {
	d.checkLayout()
	return d.semantics
}

func (d *StructDef) computeLayout() {
	off := uint32(0)
	if d.super != nil {
		off = d.super.size
	}
	for _, f := range d.fields {
		f.SetOffset(off)
		off += f.RecordSize()
	}
	d.size = off

	switch {
	case d.refCounted:
		d.semantics = RefCounted
	case len(d.ownerFields) > 0:
		d.semantics = Owned
	case d.super != nil:
		d.semantics = d.super.semantics
	default:
		d.semantics = Explicit
	}

	// a non-EXPLICIT policy may only be introduced under an EXPLICIT
	// superclass, mixing policies across the chain is a build error
	if d.super != nil && d.semantics != d.super.semantics && d.super.semantics != Explicit {
		panic(fmt.Sprintf("schema: struct %s uses %s deletion semantics and may not inherit from %s, which uses %s",
			d.name, d.semantics, d.super.name, d.super.semantics))
	}

	d.layoutDone = true

	for _, sub := range d.subclasses {
		if sub.doneCalled {
			sub.computeLayout()
		}
	}
}

func (d *StructDef) hasDestructableFields() bool {
	if len(d.destructableFields) > 0 {
		return true
	}
	return d.super != nil && d.super.hasDestructableFields()
}

// userDestructor the nearest teardown hook up the inheritance chain.
func (d *StructDef) userDestructor() DestructorFunc {
	for cur := d; cur != nil; cur = cur.super {
		if cur.destructor != nil {
			return cur.destructor
		}
	}
	return nil
}

// destructFields tears fields down from the most derived level to the base,
// in declaration order within a level.
func (d *StructDef) destructFields(s *rawdb.Store, addr rawdb.Address) {
	for _, f := range d.destructableFields {
		f.Destruct(s, addr)
	}
	if d.super != nil {
		d.super.destructFields(s, addr)
	}
}

func (d *StructDef) isReadyForDeletion(s *rawdb.Store, addr rawdb.Address) bool {
	var toCheck []field.RefCounted
	switch d.semantics {
	case Explicit:
		return false
	case Owned:
		toCheck = d.ownerFields
	case RefCounted:
		toCheck = d.refCountedFields
	}

	for _, f := range toCheck {
		if f.HasReferences(s, addr) {
			return false
		}
	}

	// the whole non-EXPLICIT suffix of the chain must agree; an EXPLICIT
	// ancestor is never auto-deleted and stops the check
	if d.super != nil && d.super.semantics != Explicit {
		return d.super.isReadyForDeletion(s, addr)
	}
	return true
}
