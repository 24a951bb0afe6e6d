package schema_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"indexstore/internal/field"
	"indexstore/internal/schema"
)

// taggedDefs a minimal base carrying the persisted tag, one concrete
// subclass with a string payload, and a registry over them.
func taggedDefs(t *testing.T) (*schema.Registry, *schema.StructDef, *field.String) {
	t.Helper()

	base := schema.CreateAbstract("Tagged", nil)
	tagField := base.AddChar()
	base.Done()

	doc := schema.Create("Doc", base, testFactory)
	name := doc.AddString()
	doc.Done()

	reg := schema.NewRegistry(tagField, zap.NewNop())
	reg.Register(1, doc)
	reg.Freeze()
	return reg, doc, name
}

func Test_registry_RegisterAndLookup(t *testing.T) {
	reg, doc, _ := taggedDefs(t)

	def, ok := reg.DefForTag(1)
	require.True(t, ok)
	require.Equal(t, doc, def)

	tag, ok := reg.TagFor(doc)
	require.True(t, ok)
	require.EqualValues(t, 1, tag)

	_, ok = reg.DefForTag(2)
	require.False(t, ok)
}

func Test_registry_Load(t *testing.T) {
	s := testStore(t)
	reg, doc, name := taggedDefs(t)

	addr := reg.NewRecord(s, doc)
	require.EqualValues(t, 1, reg.ReadTag(s, addr))
	name.Put(s, addr, "loaded")

	rec, err := reg.Load(s, addr)
	require.NoError(t, err)
	require.Equal(t, addr, rec.Address())
	require.Equal(t, "loaded", name.Get(s, rec.Address()))
}

func Test_registry_LoadUnknownTag(t *testing.T) {
	s := testStore(t)

	base := schema.CreateAbstract("Tagged", nil)
	tagField := base.AddChar()
	base.Done()

	doc := schema.Create("Doc", base, testFactory)
	doc.Done()

	reg := schema.NewRegistry(tagField, zap.NewNop())
	reg.Register(1, doc)
	reg.Freeze()

	addr := reg.NewRecord(s, doc)
	tagField.Put(s, addr, 999)

	_, err := reg.Load(s, addr)
	require.ErrorIs(t, err, schema.ErrCorruptIndex)
}

func Test_registry_ConfigurationErrors(t *testing.T) {
	base := schema.CreateAbstract("Tagged", nil)
	tagField := base.AddChar()
	base.Done()

	doc := schema.Create("Doc", base, testFactory)
	doc.Done()
	other := schema.Create("Other", base, testFactory)
	other.Done()

	reg := schema.NewRegistry(tagField, zap.NewNop())
	reg.Register(1, doc)

	require.Panics(t, func() {
		reg.Register(1, other)
	})
	require.Panics(t, func() {
		reg.Register(2, doc)
	})
	require.Panics(t, func() {
		reg.Register(2, base)
	})
	require.Panics(t, func() {
		reg.Load(nil, 0)
	})

	reg.Freeze()
	require.Panics(t, func() {
		reg.Register(2, other)
	})
	require.Panics(t, func() {
		reg.Freeze()
	})
	require.Panics(t, func() {
		reg.NewRecord(nil, other)
	})
}

func Test_registry_Delete(t *testing.T) {
	s := testStore(t)
	reg, doc, name := taggedDefs(t)

	addr := reg.NewRecord(s, doc)
	name.Put(s, addr, "doomed")
	require.NoError(t, reg.Delete(s, addr))

	// the record block goes back to the allocator and is handed out again
	again := s.Malloc(int32(doc.Size()))
	require.Equal(t, addr, again)
	require.Equal(t, "", name.Get(s, again))
}

func Test_registry_LoadInGoroutines(t *testing.T) {
	s := testStore(t)
	reg, doc, _ := taggedDefs(t)

	addr := reg.NewRecord(s, doc)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := reg.Load(s, addr)
			require.NoError(t, err)
			require.Equal(t, addr, rec.Address())
		}()
	}
	wg.Wait()
}
