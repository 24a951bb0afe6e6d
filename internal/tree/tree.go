// Package tree implements the reusable parent/children relation: a base
// node definition every hierarchical record kind extends, built from a
// many-to-one parent link and its one-to-many children inverse.
package tree

import (
	"fmt"

	"indexstore/internal/field"
	"indexstore/internal/rawdb"
	"indexstore/internal/schema"
)

// typical fan-out, sizes the initial children block
const childrenCapacityHint = 16

// Schema the layout shared by all tree records: the persisted type tag
// first, then the parent link and the children back-link list. Subclass
// definitions extend Def, so these accessors stay valid on any of them.
type Schema struct {
	Def      *schema.StructDef
	TypeTag  *field.Char
	Parent   *field.ManyToOne
	Children *field.OneToMany
}

// NewSchema declares and finalizes the abstract base node definition.
func NewSchema() *Schema {
	def := schema.CreateAbstract("TreeNode", nil)
	tag := def.AddChar()
	parent := def.AddManyToOne()
	children := def.AddOneToMany(parent, childrenCapacityHint)
	def.Done()

	return &Schema{
		Def:      def,
		TypeTag:  tag,
		Parent:   parent,
		Children: children,
	}
}

// Node the base record handle tree kinds embed.
type Node struct {
	store *rawdb.Store
	addr  rawdb.Address
}

func (n Node) Address() rawdb.Address { return n.addr }

func (n Node) Store() *rawdb.Store { return n.store }

// NewNode allocates a record of def and attaches it under parent, 0 for a
// root.
func (sch *Schema) NewNode(s *rawdb.Store, reg *schema.Registry, def *schema.StructDef, parent rawdb.Address) Node {
	addr := reg.NewRecord(s, def)
	sch.Parent.Put(s, addr, parent)
	return Node{store: s, addr: addr}
}

// Handle wraps an existing record address, for factory functions.
func (sch *Schema) Handle(s *rawdb.Store, addr rawdb.Address) Node {
	return Node{store: s, addr: addr}
}

// ParentOf the parent address of the record at addr, 0 for a root.
func (sch *Schema) ParentOf(s *rawdb.Store, addr rawdb.Address) rawdb.Address {
	return sch.Parent.Get(s, addr)
}

// SetParent moves the record under a new parent, keeping both children
// lists consistent.
func (sch *Schema) SetParent(s *rawdb.Store, addr rawdb.Address, parent rawdb.Address) {
	sch.Parent.Put(s, addr, parent)
}

// ChildrenOf the addresses of all records whose parent link points at addr,
// in ascending address order.
func (sch *Schema) ChildrenOf(s *rawdb.Store, addr rawdb.Address) []rawdb.Address {
	return sch.Children.List(s, addr)
}

// AncestorOfType walks the parent chain from the record at start and
// returns the closest ancestor whose persisted tag equals the registered
// tag of target. The walk matches tags exactly, subtypes of target do not
// match. Reaching a root yields ok=false; a tag that matches while the
// loaded record is not a T means the index is corrupt.
func AncestorOfType[T schema.Record](sch *Schema, reg *schema.Registry, s *rawdb.Store, start rawdb.Address, target *schema.StructDef) (T, bool, error) {
	var zero T

	targetTag, ok := reg.TagFor(target)
	if !ok {
		panic(fmt.Sprintf("tree: struct %s was never registered", target.Name()))
	}

	cur := sch.Parent.Get(s, start)
	for cur != 0 {
		if reg.ReadTag(s, cur) == targetTag {
			rec, err := reg.Load(s, cur)
			if err != nil {
				return zero, false, err
			}
			found, ok := rec.(T)
			if !ok {
				return zero, false, fmt.Errorf("%w: store %s record at address %d is tagged %s but loaded as %T",
					schema.ErrCorruptIndex, s.ID(), cur, target.Name(), rec)
			}
			return found, true, nil
		}
		cur = sch.Parent.Get(s, cur)
	}

	return zero, false, nil
}
