package schema

import (
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"indexstore/internal/field"
	"indexstore/internal/rawdb"
)

// Tag the small persisted identifier of a record's concrete struct kind.
type Tag uint16

// ErrCorruptIndex reports a disagreement between persisted data and the
// registered schema, discovered at use time. Unlike configuration errors it
// is returned to the caller, so higher layers can decide to rebuild the
// index instead of crashing.
var ErrCorruptIndex = errors.New("corrupt index")

// Registry the process-scoped bidirectional mapping between numeric type
// tags and struct definitions. Register every struct kind during startup,
// then Freeze; afterwards lookups are lock-free shared reads.
type Registry struct {
	tagField *field.Char
	byTag    map[Tag]*StructDef
	tags     map[*StructDef]Tag
	frozen   bool

	loadSFG singleflight.Group
	sugar   *zap.SugaredLogger
}

// NewRegistry builds a registry reading each record's persisted tag through
// the given field, normally the first field of the base node definition.
func NewRegistry(tagField *field.Char, logger *zap.Logger) *Registry {
	return &Registry{
		tagField: tagField,
		byTag:    make(map[Tag]*StructDef),
		tags:     make(map[*StructDef]Tag),
		sugar:    logger.Sugar(),
	}
}

// Register binds a tag to a concrete struct definition.
func (r *Registry) Register(tag Tag, def *StructDef) {
	if r.frozen {
		panic("schema: may not register structs after the registry was frozen")
	}
	if def.IsAbstract() {
		panic(fmt.Sprintf("schema: abstract struct %s can not be registered for loading", def.Name()))
	}
	if prev, ok := r.byTag[tag]; ok {
		panic(fmt.Sprintf("schema: tag %d already registered for struct %s", tag, prev.Name()))
	}
	if prev, ok := r.tags[def]; ok {
		panic(fmt.Sprintf("schema: struct %s already registered with tag %d", def.Name(), prev))
	}
	r.byTag[tag] = def
	r.tags[def] = tag
	r.sugar.Debugw("struct registered", "tag", tag, "struct", def.Name())
}

// Freeze ends the registration phase.
func (r *Registry) Freeze() {
	if r.frozen {
		panic("schema: may not call Freeze more than once")
	}
	r.frozen = true
	r.sugar.Infow("registry frozen", "structs", len(r.byTag))
}

func (r *Registry) Frozen() bool {
	return r.frozen
}

func (r *Registry) checkFrozen() {
	if !r.frozen {
		panic("schema: registry must be frozen before records are accessed")
	}
}

func (r *Registry) DefForTag(tag Tag) (*StructDef, bool) {
	def, ok := r.byTag[tag]
	return def, ok
}

func (r *Registry) TagFor(def *StructDef) (Tag, bool) {
	tag, ok := r.tags[def]
	return tag, ok
}

// ReadTag the persisted tag of the record at addr.
func (r *Registry) ReadTag(s *rawdb.Store, addr rawdb.Address) Tag {
	return Tag(r.tagField.Get(s, addr))
}

// NewRecord allocates zeroed space for one record of def and stamps its tag.
func (r *Registry) NewRecord(s *rawdb.Store, def *StructDef) rawdb.Address {
	r.checkFrozen()
	tag, ok := r.tags[def]
	if !ok {
		panic(fmt.Sprintf("schema: struct %s was never registered", def.Name()))
	}
	addr := s.Malloc(int32(def.Size()))
	r.tagField.Put(s, addr, uint16(tag))
	return addr
}

// Load resolves the record at addr through its persisted tag and produces a
// handle via the bound factory. Concurrent loads of the same address are
// deduplicated; handles are immutable, so sharing one is safe.
func (r *Registry) Load(s *rawdb.Store, addr rawdb.Address) (Record, error) {
	r.checkFrozen()
	v, err, _ := r.loadSFG.Do(
		s.ID().String()+"-"+strconv.FormatUint(uint64(addr), 16),
		func() (interface{}, error) {
			tag := r.ReadTag(s, addr)
			def, ok := r.byTag[tag]
			if !ok {
				return nil, fmt.Errorf("%w: store %s holds unknown tag %d at address %d",
					ErrCorruptIndex, s.ID(), tag, addr)
			}
			return def.Factory().Create(s, addr), nil
		})
	if err != nil {
		return nil, err
	}
	return v.(Record), nil
}

// Delete destructs and frees the record at addr. Whether deleting is safe
// is the caller's contract: EXPLICIT records are deleted at will, the
// others only after IsReadyForDeletion, checked under the same transaction
// boundary.
func (r *Registry) Delete(s *rawdb.Store, addr rawdb.Address) error {
	r.checkFrozen()
	tag := r.ReadTag(s, addr)
	def, ok := r.byTag[tag]
	if !ok {
		return fmt.Errorf("%w: store %s holds unknown tag %d at address %d",
			ErrCorruptIndex, s.ID(), tag, addr)
	}

	def.Factory().Destruct(s, addr)
	s.Free(addr)
	r.sugar.Debugw("record deleted", "struct", def.Name(), "address", addr)
	return nil
}
