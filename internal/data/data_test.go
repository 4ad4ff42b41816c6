package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testNameKey  = NewKey("test:name", KindString)
	testCountKey = NewKey("test:count", KindInt)
	testFlagKey  = NewKey("test:flag", KindBool)
)

func TestKeyRegistry(t *testing.T) {
	k, ok := Lookup("test:name")
	require.True(t, ok)
	assert.Same(t, testNameKey, k)

	// Повторная регистрация с тем же типом возвращает исходный ключ
	assert.Same(t, testCountKey, NewKey("test:count", KindInt))

	assert.Panics(t, func() { NewKey("test:count", KindString) })
	assert.Contains(t, Keys(), testFlagKey)
}

func TestKeyAcceptsAndCoerce(t *testing.T) {
	assert.True(t, testCountKey.Accepts(3))
	assert.False(t, testCountKey.Accepts("3"))

	v, ok := testCountKey.Coerce(float64(7))
	assert.True(t, ok)
	assert.Equal(t, 7, v)

	_, ok = testCountKey.Coerce(7.5)
	assert.False(t, ok)

	v, ok = testFlagKey.Coerce(uint8(1))
	assert.True(t, ok)
	assert.Equal(t, true, v)
}

func TestValueEquality(t *testing.T) {
	a := MustValue(testNameKey, "Alice")
	b := MustValue(testNameKey, "Alice")
	c := MustValue(testNameKey, "Bob")
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))

	_, ok := NewValue(testNameKey, 1)
	assert.False(t, ok)
	assert.Panics(t, func() { MustValue(testCountKey, "x") })

	assert.Len(t, Dedupe([]Value{a, b, c}), 2)
}

func TestCombine(t *testing.T) {
	ok1 := SuccessResult(MustValue(testNameKey, "a"), MustValue(testNameKey, "b"))
	ok2 := SuccessResult(MustValue(testCountKey, 1))
	fail := FailResult(MustValue(testFlagKey, true))

	all := Combine(ok1, ok2)
	assert.Equal(t, ResultSuccess, all.Type)
	assert.Len(t, all.Success, 2)
	assert.Len(t, all.Replaced, 1)

	mixed := Combine(ok1, fail)
	assert.Equal(t, ResultFailure, mixed.Type)
	assert.False(t, mixed.IsSuccessful())
	assert.Len(t, mixed.Rejected, 1)

	empty := Combine()
	assert.Equal(t, ResultUndefined, empty.Type)
	assert.False(t, empty.IsSuccessful())
}

func TestBag(t *testing.T) {
	b := NewBag(MustValue(testNameKey, "a"), MustValue(testCountKey, 2))
	old, replaced := b.Set(MustValue(testNameKey, "z"))
	assert.True(t, replaced)
	assert.Equal(t, "a", old.Payload())
	assert.Equal(t, 2, b.Len())

	name, ok := Get[string](b.Get(testNameKey))
	assert.True(t, ok)
	assert.Equal(t, "z", name)

	m := b.ToMap()
	m["unknown:key"] = 1
	m["test:count"] = float64(9)
	back, rejected := FromMap(m)
	assert.Equal(t, []string{"unknown:key"}, rejected)
	count, _ := Get[int](back.Get(testCountKey))
	assert.Equal(t, 9, count)

	_, removed := b.Remove(testNameKey)
	assert.True(t, removed)
	assert.Equal(t, 1, b.Len())
}

func TestMergeFunctions(t *testing.T) {
	a := MustValue(testNameKey, "old")
	b := MustValue(testNameKey, "new")
	assert.Equal(t, b, ReplacementPreferred(a, b))
	assert.Equal(t, a, OriginalPreferred(a, b))
}
