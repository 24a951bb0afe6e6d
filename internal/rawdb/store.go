// Package rawdb implements the byte-addressable raw store the schema layer
// runs on top of: fixed-width primitive access, block allocation with reuse,
// and gob snapshots on disk.
package rawdb

import (
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"indexstore/internal/config"
)

// Address locates one byte in the store. Address 0 means "none" and is
// never handed out by Malloc.
type Address uint64

const (
	// reserved prefix of the slab, keeps 0 out of the allocatable range
	storeHeaderSize = 16
	// every allocated block is preceded by its payload size
	blockHeaderSize = 4
)

// Store the in-memory byte slab with malloc/free on top.
//
// Record-level access assumes an external single-writer-or-transactional
// discipline; the store itself holds no locks.
type Store struct {
	conf *config.Config
	id   uuid.UUID
	data []byte
	free map[int32][]Address

	sugar *zap.SugaredLogger
}

type snapshot struct {
	Id   uuid.UUID
	Data []byte
	Free map[int32][]Address
}

func New(conf *config.Config, logger *zap.Logger) (*Store, error) {
	s := &Store{
		conf:  conf,
		id:    uuid.New(),
		data:  make([]byte, storeHeaderSize),
		free:  make(map[int32][]Address),
		sugar: logger.Sugar(),
	}

	if conf.Restore {
		if err := s.restore(); err != nil {
			return nil, err
		}
	}

	s.sugar.Infow("store ready", "id", s.id, "size", len(s.data))
	return s, nil
}

// ID the identity stamp of this store instance. It survives snapshots, so
// corruption reports can name the index they came from.
func (s *Store) ID() uuid.UUID {
	return s.id
}

// Size current slab size in bytes.
func (s *Store) Size() int {
	return len(s.data)
}

func (s *Store) check(addr Address, n int) {
	if addr == 0 || int(addr)+n > len(s.data) {
		panic(fmt.Sprintf("rawdb: access of %d bytes at address %d is out of range (store %s, size %d)",
			n, addr, s.id, len(s.data)))
	}
}

func (s *Store) GetByte(addr Address) byte {
	s.check(addr, 1)
	return s.data[addr]
}

func (s *Store) PutByte(addr Address, v byte) {
	s.check(addr, 1)
	s.data[addr] = v
}

func (s *Store) GetChar(addr Address) uint16 {
	s.check(addr, 2)
	return binary.LittleEndian.Uint16(s.data[addr:])
}

func (s *Store) PutChar(addr Address, v uint16) {
	s.check(addr, 2)
	binary.LittleEndian.PutUint16(s.data[addr:], v)
}

func (s *Store) GetShort(addr Address) int16 {
	return int16(s.GetChar(addr))
}

func (s *Store) PutShort(addr Address, v int16) {
	s.PutChar(addr, uint16(v))
}

func (s *Store) GetInt(addr Address) int32 {
	s.check(addr, 4)
	return int32(binary.LittleEndian.Uint32(s.data[addr:]))
}

func (s *Store) PutInt(addr Address, v int32) {
	s.check(addr, 4)
	binary.LittleEndian.PutUint32(s.data[addr:], uint32(v))
}

func (s *Store) GetLong(addr Address) int64 {
	s.check(addr, 8)
	return int64(binary.LittleEndian.Uint64(s.data[addr:]))
}

func (s *Store) PutLong(addr Address, v int64) {
	s.check(addr, 8)
	binary.LittleEndian.PutUint64(s.data[addr:], uint64(v))
}

func (s *Store) GetFloat(addr Address) float32 {
	s.check(addr, 4)
	return math.Float32frombits(binary.LittleEndian.Uint32(s.data[addr:]))
}

func (s *Store) PutFloat(addr Address, v float32) {
	s.check(addr, 4)
	binary.LittleEndian.PutUint32(s.data[addr:], math.Float32bits(v))
}

func (s *Store) GetDouble(addr Address) float64 {
	s.check(addr, 8)
	return math.Float64frombits(binary.LittleEndian.Uint64(s.data[addr:]))
}

func (s *Store) PutDouble(addr Address, v float64) {
	s.check(addr, 8)
	binary.LittleEndian.PutUint64(s.data[addr:], math.Float64bits(v))
}

func (s *Store) GetAddr(addr Address) Address {
	s.check(addr, 8)
	return Address(binary.LittleEndian.Uint64(s.data[addr:]))
}

func (s *Store) PutAddr(addr Address, v Address) {
	s.check(addr, 8)
	binary.LittleEndian.PutUint64(s.data[addr:], uint64(v))
}

func (s *Store) GetBytes(addr Address, n int) []byte {
	s.check(addr, n)
	ret := make([]byte, n)
	copy(ret, s.data[addr:])
	return ret
}

func (s *Store) PutBytes(addr Address, b []byte) {
	s.check(addr, len(b))
	copy(s.data[addr:], b)
}

// Malloc allocates a zeroed block of n bytes and returns its address.
// Freed blocks of exactly n bytes are reused before the slab grows.
func (s *Store) Malloc(n int32) Address {
	if n < 0 {
		panic(fmt.Sprintf("rawdb: malloc of negative size %d (store %s)", n, s.id))
	}

	if list := s.free[n]; len(list) > 0 {
		addr := list[len(list)-1]
		s.free[n] = list[:len(list)-1]
		s.PutInt(addr-blockHeaderSize, n)
		return addr
	}

	off := len(s.data)
	s.data = append(s.data, make([]byte, blockHeaderSize+int(n))...)
	binary.LittleEndian.PutUint32(s.data[off:], uint32(n))
	return Address(off + blockHeaderSize)
}

// Free returns the block at addr to the allocator and zeroes its payload,
// so a later reuse starts from clean memory. While the block sits on the
// free list its size header holds the complement of the size, so freeing
// it twice fails instead of aliasing a later allocation.
func (s *Store) Free(addr Address) {
	n := s.GetInt(addr - blockHeaderSize)
	if n < 0 {
		panic(fmt.Sprintf("rawdb: double free at address %d (store %s)", addr, s.id))
	}
	s.check(addr, int(n))
	for i := Address(0); i < Address(n); i++ {
		s.data[addr+i] = 0
	}
	s.PutInt(addr-blockHeaderSize, ^n)
	s.free[n] = append(s.free[n], addr)
}

// BlockSize the payload size of the allocated block at addr.
func (s *Store) BlockSize(addr Address) int32 {
	return s.GetInt(addr - blockHeaderSize)
}

// SaveToDisk writes a snapshot of the whole store to the configured file.
func (s *Store) SaveToDisk() error {
	if err := os.MkdirAll(filepath.Dir(s.conf.StoreFile), 0755); err != nil {
		return err
	}
	file, err := os.OpenFile(s.conf.StoreFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0755)
	if err != nil {
		return err
	}
	defer file.Close()

	err = gob.NewEncoder(file).Encode(snapshot{
		Id:   s.id,
		Data: s.data,
		Free: s.free,
	})
	if err != nil {
		return err
	}

	s.sugar.Infow("store saved", "id", s.id, "file", s.conf.StoreFile, "size", len(s.data))
	return nil
}

func (s *Store) restore() error {
	file, err := os.Open(s.conf.StoreFile)
	if errors.Is(err, os.ErrNotExist) {
		s.sugar.Infow("nothing to restore", "file", s.conf.StoreFile)
		return nil
	}
	if err != nil {
		return err
	}
	defer file.Close()

	var snap snapshot
	if err := gob.NewDecoder(file).Decode(&snap); err != nil {
		return fmt.Errorf("restore %s: %w", s.conf.StoreFile, err)
	}

	s.id = snap.Id
	s.data = snap.Data
	s.free = snap.Free
	if s.free == nil {
		s.free = make(map[int32][]Address)
	}

	s.sugar.Infow("store restored", "id", s.id, "file", s.conf.StoreFile, "size", len(s.data))
	return nil
}
