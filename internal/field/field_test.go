package field_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"indexstore/internal/config"
	"indexstore/internal/field"
	"indexstore/internal/rawdb"
)

func testStore(t *testing.T) *rawdb.Store {
	t.Helper()
	s, err := rawdb.New(config.Default(), zap.NewNop())
	require.NoError(t, err)
	return s
}

func Test_field_OffsetAssignedOnce(t *testing.T) {
	f := field.NewInt()
	f.SetOffset(4)
	require.EqualValues(t, 4, f.Offset())

	require.Panics(t, func() {
		f.SetOffset(8)
	})
}

func Test_field_OffsetBeforeFinalize(t *testing.T) {
	f := field.NewInt()
	require.Panics(t, func() {
		f.Offset()
	})
}

func Test_field_Primitives(t *testing.T) {
	s := testStore(t)
	rec := s.Malloc(40)

	b := field.NewByte()
	b.SetOffset(0)
	c := field.NewChar()
	c.SetOffset(1)
	sh := field.NewShort()
	sh.SetOffset(3)
	i := field.NewInt()
	i.SetOffset(5)
	l := field.NewLong()
	l.SetOffset(9)
	fl := field.NewFloat()
	fl.SetOffset(17)
	d := field.NewDouble()
	d.SetOffset(21)
	p := field.NewPointer()
	p.SetOffset(29)

	b.Put(s, rec, 7)
	c.Put(s, rec, 'д')
	sh.Put(s, rec, -2)
	i.Put(s, rec, -100)
	l.Put(s, rec, 1<<40)
	fl.Put(s, rec, 0.5)
	d.Put(s, rec, -0.25)
	p.Put(s, rec, rawdb.Address(12345))

	require.EqualValues(t, 7, b.Get(s, rec))
	require.EqualValues(t, 'д', c.Get(s, rec))
	require.EqualValues(t, -2, sh.Get(s, rec))
	require.EqualValues(t, -100, i.Get(s, rec))
	require.EqualValues(t, 1<<40, l.Get(s, rec))
	require.EqualValues(t, float32(0.5), fl.Get(s, rec))
	require.EqualValues(t, -0.25, d.Get(s, rec))
	require.EqualValues(t, rawdb.Address(12345), p.Get(s, rec))
}

func Test_field_String(t *testing.T) {
	s := testStore(t)
	rec := s.Malloc(8)

	f := field.NewString()
	f.SetOffset(0)

	require.Equal(t, "", f.Get(s, rec))

	f.Put(s, rec, "sample text")
	require.Equal(t, "sample text", f.Get(s, rec))

	// overwrite releases the old payload
	f.Put(s, rec, "другой текст")
	require.Equal(t, "другой текст", f.Get(s, rec))

	f.Put(s, rec, "")
	require.Equal(t, "", f.Get(s, rec))
}

func Test_field_StringDestruct(t *testing.T) {
	s := testStore(t)
	rec := s.Malloc(8)

	f := field.NewString()
	f.SetOffset(0)

	f.Put(s, rec, "payload")
	f.Destruct(s, rec)
	require.Equal(t, "", f.Get(s, rec))

	// destructing an empty slot is a no-op
	f.Destruct(s, rec)
}

// two-field layout shared by every record in the relation tests:
// many-to-one at offset 0, one-to-many at offset 8
func testRelation(t *testing.T, capacityHint int32) (*rawdb.Store, *field.ManyToOne, *field.OneToMany) {
	t.Helper()
	s := testStore(t)
	m := field.NewManyToOne(false)
	m.SetOffset(0)
	l := field.NewOneToMany(m, capacityHint)
	l.SetOffset(8)
	return s, m, l
}

func Test_field_ManyToOneInverse(t *testing.T) {
	s, m, l := testRelation(t, 4)

	a := s.Malloc(16)
	b := s.Malloc(16)
	c := s.Malloc(16)

	require.EqualValues(t, 0, m.Get(s, a))
	require.False(t, m.HasReferences(s, a))

	m.Put(s, a, b)
	require.Equal(t, b, m.Get(s, a))
	require.True(t, m.HasReferences(s, a))
	require.Equal(t, []rawdb.Address{a}, l.List(s, b))

	// retargeting updates both inverse lists
	m.Put(s, a, c)
	require.Empty(t, l.List(s, b))
	require.Equal(t, []rawdb.Address{a}, l.List(s, c))

	m.Put(s, a, 0)
	require.Empty(t, l.List(s, c))
	require.False(t, l.HasReferences(s, c))
}

func Test_field_OneToManyOrderAndGrowth(t *testing.T) {
	s, m, l := testRelation(t, 2)

	target := s.Malloc(16)

	members := make([]rawdb.Address, 0, 5)
	for i := 0; i < 5; i++ {
		members = append(members, s.Malloc(16))
	}

	// insert out of address order, the hint is exceeded on the way
	m.Put(s, members[3], target)
	m.Put(s, members[0], target)
	m.Put(s, members[4], target)
	m.Put(s, members[1], target)
	m.Put(s, members[2], target)

	require.EqualValues(t, 5, l.Size(s, target))
	require.Equal(t, members, l.List(s, target))
}

func Test_field_ManyToOneDestructDetaches(t *testing.T) {
	s, m, l := testRelation(t, 4)

	a := s.Malloc(16)
	b := s.Malloc(16)

	m.Put(s, a, b)
	m.Destruct(s, a)
	require.EqualValues(t, 0, m.Get(s, a))
	require.Empty(t, l.List(s, b))
}

func Test_field_OneToManyDestruct(t *testing.T) {
	s, m, l := testRelation(t, 4)

	a := s.Malloc(16)
	b := s.Malloc(16)
	m.Put(s, a, b)

	l.Destruct(s, b)
	require.EqualValues(t, 0, l.Size(s, b))
}

func Test_field_OneToManyRequiresInverse(t *testing.T) {
	require.Panics(t, func() {
		field.NewOneToMany(nil, 4)
	})
}

func Test_field_ManyToOneSingleInverse(t *testing.T) {
	m := field.NewManyToOne(false)
	field.NewOneToMany(m, 4)
	require.Panics(t, func() {
		field.NewOneToMany(m, 4)
	})
}
