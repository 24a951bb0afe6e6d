package field

import (
	"indexstore/internal/rawdb"
)

// String a variable-length string. The record slot holds an 8-byte pointer
// to a separately allocated, length-prefixed payload; the empty string is
// stored as the null address.
type String struct{ base }

func NewString() *String { return &String{} }

func (f *String) RecordSize() uint32 { return 8 }

func (f *String) Get(s *rawdb.Store, addr rawdb.Address) string {
	p := s.GetAddr(f.at(addr))
	if p == 0 {
		return ""
	}
	n := s.GetInt(p)
	return string(s.GetBytes(p+4, int(n)))
}

func (f *String) Put(s *rawdb.Store, addr rawdb.Address, v string) {
	if old := s.GetAddr(f.at(addr)); old != 0 {
		s.Free(old)
	}
	if v == "" {
		s.PutAddr(f.at(addr), 0)
		return
	}

	p := s.Malloc(int32(len(v)) + 4)
	s.PutInt(p, int32(len(v)))
	s.PutBytes(p+4, []byte(v))
	s.PutAddr(f.at(addr), p)
}

// Destruct releases the out-of-band payload.
func (f *String) Destruct(s *rawdb.Store, addr rawdb.Address) {
	if p := s.GetAddr(f.at(addr)); p != 0 {
		s.Free(p)
		s.PutAddr(f.at(addr), 0)
	}
}
