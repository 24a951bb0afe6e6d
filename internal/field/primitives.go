package field

import (
	"indexstore/internal/rawdb"
)

type Byte struct{ base }

func NewByte() *Byte { return &Byte{} }

func (f *Byte) RecordSize() uint32 { return 1 }

func (f *Byte) Get(s *rawdb.Store, addr rawdb.Address) byte {
	return s.GetByte(f.at(addr))
}

func (f *Byte) Put(s *rawdb.Store, addr rawdb.Address, v byte) {
	s.PutByte(f.at(addr), v)
}

type Char struct{ base }

func NewChar() *Char { return &Char{} }

func (f *Char) RecordSize() uint32 { return 2 }

func (f *Char) Get(s *rawdb.Store, addr rawdb.Address) uint16 {
	return s.GetChar(f.at(addr))
}

func (f *Char) Put(s *rawdb.Store, addr rawdb.Address, v uint16) {
	s.PutChar(f.at(addr), v)
}

type Short struct{ base }

func NewShort() *Short { return &Short{} }

func (f *Short) RecordSize() uint32 { return 2 }

func (f *Short) Get(s *rawdb.Store, addr rawdb.Address) int16 {
	return s.GetShort(f.at(addr))
}

func (f *Short) Put(s *rawdb.Store, addr rawdb.Address, v int16) {
	s.PutShort(f.at(addr), v)
}

type Int struct{ base }

func NewInt() *Int { return &Int{} }

func (f *Int) RecordSize() uint32 { return 4 }

func (f *Int) Get(s *rawdb.Store, addr rawdb.Address) int32 {
	return s.GetInt(f.at(addr))
}

func (f *Int) Put(s *rawdb.Store, addr rawdb.Address, v int32) {
	s.PutInt(f.at(addr), v)
}

type Long struct{ base }

func NewLong() *Long { return &Long{} }

func (f *Long) RecordSize() uint32 { return 8 }

func (f *Long) Get(s *rawdb.Store, addr rawdb.Address) int64 {
	return s.GetLong(f.at(addr))
}

func (f *Long) Put(s *rawdb.Store, addr rawdb.Address, v int64) {
	s.PutLong(f.at(addr), v)
}

type Float struct{ base }

func NewFloat() *Float { return &Float{} }

func (f *Float) RecordSize() uint32 { return 4 }

func (f *Float) Get(s *rawdb.Store, addr rawdb.Address) float32 {
	return s.GetFloat(f.at(addr))
}

func (f *Float) Put(s *rawdb.Store, addr rawdb.Address, v float32) {
	s.PutFloat(f.at(addr), v)
}

type Double struct{ base }

func NewDouble() *Double { return &Double{} }

func (f *Double) RecordSize() uint32 { return 8 }

func (f *Double) Get(s *rawdb.Store, addr rawdb.Address) float64 {
	return s.GetDouble(f.at(addr))
}

func (f *Double) Put(s *rawdb.Store, addr rawdb.Address, v float64) {
	s.PutDouble(f.at(addr), v)
}

// Pointer a raw address slot without relational bookkeeping.
type Pointer struct{ base }

func NewPointer() *Pointer { return &Pointer{} }

func (f *Pointer) RecordSize() uint32 { return 8 }

func (f *Pointer) Get(s *rawdb.Store, addr rawdb.Address) rawdb.Address {
	return s.GetAddr(f.at(addr))
}

func (f *Pointer) Put(s *rawdb.Store, addr rawdb.Address, v rawdb.Address) {
	s.PutAddr(f.at(addr), v)
}
