package field

import (
	"fmt"
	"sort"

	"indexstore/internal/rawdb"
)

const defaultListCapacity = 4

// ManyToOne a single outbound link to another record, 0 meaning none.
// When bound to a OneToMany inverse, Put keeps both back-link lists
// consistent. An owner link participates in OWNED deletion semantics.
type ManyToOne struct {
	base
	owner   bool
	inverse *OneToMany
}

func NewManyToOne(owner bool) *ManyToOne {
	return &ManyToOne{owner: owner}
}

func (f *ManyToOne) Owner() bool { return f.owner }

func (f *ManyToOne) Inverse() *OneToMany { return f.inverse }

func (f *ManyToOne) bindInverse(inv *OneToMany) {
	if f.inverse != nil {
		panic("field: many-to-one already has a one-to-many inverse")
	}
	f.inverse = inv
}

func (f *ManyToOne) RecordSize() uint32 { return 8 }

func (f *ManyToOne) Get(s *rawdb.Store, addr rawdb.Address) rawdb.Address {
	return s.GetAddr(f.at(addr))
}

// Put points the link at target, updating the inverse back-link lists of
// both the old and the new target.
func (f *ManyToOne) Put(s *rawdb.Store, addr rawdb.Address, target rawdb.Address) {
	old := s.GetAddr(f.at(addr))
	if old == target {
		return
	}
	if f.inverse != nil && old != 0 {
		f.inverse.remove(s, old, addr)
	}
	s.PutAddr(f.at(addr), target)
	if f.inverse != nil && target != 0 {
		f.inverse.add(s, target, addr)
	}
}

func (f *ManyToOne) HasReferences(s *rawdb.Store, addr rawdb.Address) bool {
	return f.Get(s, addr) != 0
}

// Destruct clears the link so the former target's back-link list does not
// keep pointing at reclaimed space.
func (f *ManyToOne) Destruct(s *rawdb.Store, addr rawdb.Address) {
	f.Put(s, addr, 0)
}

// OneToMany the growable, address-ordered collection of back-links
// maintained as the inverse of one designated many-to-one field. The record
// slot holds a pointer to an out-of-band block:
//
//	capacity int32, count int32, capacity*8 bytes of member addresses
type OneToMany struct {
	base
	capacityHint int32
	inverse      *ManyToOne
}

// NewOneToMany binds the list to its many-to-one inverse. The capacity hint
// sizes the initial block only, it is not a limit.
func NewOneToMany(inverse *ManyToOne, capacityHint int32) *OneToMany {
	if inverse == nil {
		panic("field: one-to-many requires a many-to-one inverse")
	}
	if capacityHint <= 0 {
		capacityHint = defaultListCapacity
	}
	f := &OneToMany{capacityHint: capacityHint, inverse: inverse}
	inverse.bindInverse(f)
	return f
}

func (f *OneToMany) Inverse() *ManyToOne { return f.inverse }

func (f *OneToMany) RecordSize() uint32 { return 8 }

func (f *OneToMany) Size(s *rawdb.Store, addr rawdb.Address) int32 {
	p := s.GetAddr(f.at(addr))
	if p == 0 {
		return 0
	}
	return s.GetInt(p + 4)
}

// List the member addresses in ascending order.
func (f *OneToMany) List(s *rawdb.Store, addr rawdb.Address) []rawdb.Address {
	p := s.GetAddr(f.at(addr))
	if p == 0 {
		return nil
	}
	count := s.GetInt(p + 4)
	ret := make([]rawdb.Address, 0, count)
	for i := int32(0); i < count; i++ {
		ret = append(ret, s.GetAddr(memberAt(p, i)))
	}
	return ret
}

func (f *OneToMany) HasReferences(s *rawdb.Store, addr rawdb.Address) bool {
	return f.Size(s, addr) > 0
}

// Destruct releases the back-link block.
func (f *OneToMany) Destruct(s *rawdb.Store, addr rawdb.Address) {
	if p := s.GetAddr(f.at(addr)); p != 0 {
		s.Free(p)
		s.PutAddr(f.at(addr), 0)
	}
}

func memberAt(block rawdb.Address, i int32) rawdb.Address {
	return block + 8 + rawdb.Address(i)*8
}

func newBlock(s *rawdb.Store, capacity int32) rawdb.Address {
	p := s.Malloc(8 + capacity*8)
	s.PutInt(p, capacity)
	return p
}

// search the insertion position of member in the sorted block.
func (f *OneToMany) search(s *rawdb.Store, block rawdb.Address, count int32, member rawdb.Address) int32 {
	return int32(sort.Search(int(count), func(i int) bool {
		return s.GetAddr(memberAt(block, int32(i))) >= member
	}))
}

func (f *OneToMany) add(s *rawdb.Store, addr rawdb.Address, member rawdb.Address) {
	p := s.GetAddr(f.at(addr))
	if p == 0 {
		p = newBlock(s, f.capacityHint)
		s.PutAddr(f.at(addr), p)
	}

	capacity := s.GetInt(p)
	count := s.GetInt(p + 4)
	if count == capacity {
		np := newBlock(s, capacity*2)
		s.PutInt(np+4, count)
		s.PutBytes(np+8, s.GetBytes(p+8, int(count)*8))
		s.Free(p)
		s.PutAddr(f.at(addr), np)
		p = np
	}

	i := f.search(s, p, count, member)
	// shift the tail up one slot
	for j := count; j > i; j-- {
		s.PutAddr(memberAt(p, j), s.GetAddr(memberAt(p, j-1)))
	}
	s.PutAddr(memberAt(p, i), member)
	s.PutInt(p+4, count+1)
}

func (f *OneToMany) remove(s *rawdb.Store, addr rawdb.Address, member rawdb.Address) {
	p := s.GetAddr(f.at(addr))
	if p == 0 {
		return
	}
	count := s.GetInt(p + 4)
	i := f.search(s, p, count, member)
	if i >= count || s.GetAddr(memberAt(p, i)) != member {
		panic(fmt.Sprintf("field: back-link list at address %d does not contain member %d", addr, member))
	}
	for j := i; j < count-1; j++ {
		s.PutAddr(memberAt(p, j), s.GetAddr(memberAt(p, j+1)))
	}
	s.PutAddr(memberAt(p, count-1), 0)
	s.PutInt(p+4, count-1)
}
