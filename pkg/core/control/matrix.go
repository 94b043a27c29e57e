package control

import (
	"fmt"
)

// =============================================================================
// Keyed coefficient containers
// =============================================================================
//
// Every reference table in the control map is one of three shapes: keyed by a
// single value, by a pair, or by a triple. Missing entries either resolve to a
// computed default (when the table has one) or fail with ErrConfiguration
// naming the table and the key.

// Table is a single-key lookup table.
type Table[K comparable, V any] struct {
	name      string
	values    map[K]V
	defaultFn func(K) V
}

// NewTable creates an empty table. name is used in error messages.
func NewTable[K comparable, V any](name string) *Table[K, V] {
	return &Table[K, V]{name: name, values: make(map[K]V)}
}

// WithDefault installs a factory for missing keys.
func (t *Table[K, V]) WithDefault(fn func(K) V) *Table[K, V] {
	t.defaultFn = fn
	return t
}

func (t *Table[K, V]) Put(k K, v V) {
	t.values[k] = v
}

// Lookup returns the stored value only; defaults are not consulted.
func (t *Table[K, V]) Lookup(k K) (V, bool) {
	v, ok := t.values[k]
	return v, ok
}

// Get returns the stored value, the default, or an ErrConfiguration.
func (t *Table[K, V]) Get(k K) (V, error) {
	if v, ok := t.values[k]; ok {
		return v, nil
	}
	if t.defaultFn != nil {
		return t.defaultFn(k), nil
	}
	var zero V
	return zero, missingKey(t.name, k)
}

func (t *Table[K, V]) Len() int {
	return len(t.values)
}

func (t *Table[K, V]) Name() string {
	return t.name
}

type key2[K1, K2 comparable] struct {
	k1 K1
	k2 K2
}

// MatrixMap2 is a table keyed by a pair.
type MatrixMap2[K1, K2 comparable, V any] struct {
	name      string
	values    map[key2[K1, K2]]V
	defaultFn func(K1, K2) V
}

func NewMatrixMap2[K1, K2 comparable, V any](name string) *MatrixMap2[K1, K2, V] {
	return &MatrixMap2[K1, K2, V]{name: name, values: make(map[key2[K1, K2]]V)}
}

func (m *MatrixMap2[K1, K2, V]) WithDefault(fn func(K1, K2) V) *MatrixMap2[K1, K2, V] {
	m.defaultFn = fn
	return m
}

func (m *MatrixMap2[K1, K2, V]) Put(k1 K1, k2 K2, v V) {
	m.values[key2[K1, K2]{k1, k2}] = v
}

func (m *MatrixMap2[K1, K2, V]) Lookup(k1 K1, k2 K2) (V, bool) {
	v, ok := m.values[key2[K1, K2]{k1, k2}]
	return v, ok
}

func (m *MatrixMap2[K1, K2, V]) Get(k1 K1, k2 K2) (V, error) {
	if v, ok := m.values[key2[K1, K2]{k1, k2}]; ok {
		return v, nil
	}
	if m.defaultFn != nil {
		return m.defaultFn(k1, k2), nil
	}
	var zero V
	return zero, missingKey(m.name, k1, k2)
}

func (m *MatrixMap2[K1, K2, V]) Len() int {
	return len(m.values)
}

func (m *MatrixMap2[K1, K2, V]) Name() string {
	return m.name
}

type key3[K1, K2, K3 comparable] struct {
	k1 K1
	k2 K2
	k3 K3
}

// MatrixMap3 is a table keyed by a triple.
type MatrixMap3[K1, K2, K3 comparable, V any] struct {
	name      string
	values    map[key3[K1, K2, K3]]V
	defaultFn func(K1, K2, K3) V
}

func NewMatrixMap3[K1, K2, K3 comparable, V any](name string) *MatrixMap3[K1, K2, K3, V] {
	return &MatrixMap3[K1, K2, K3, V]{name: name, values: make(map[key3[K1, K2, K3]]V)}
}

func (m *MatrixMap3[K1, K2, K3, V]) WithDefault(fn func(K1, K2, K3) V) *MatrixMap3[K1, K2, K3, V] {
	m.defaultFn = fn
	return m
}

func (m *MatrixMap3[K1, K2, K3, V]) Put(k1 K1, k2 K2, k3 K3, v V) {
	m.values[key3[K1, K2, K3]{k1, k2, k3}] = v
}

func (m *MatrixMap3[K1, K2, K3, V]) Lookup(k1 K1, k2 K2, k3 K3) (V, bool) {
	v, ok := m.values[key3[K1, K2, K3]{k1, k2, k3}]
	return v, ok
}

func (m *MatrixMap3[K1, K2, K3, V]) Get(k1 K1, k2 K2, k3 K3) (V, error) {
	if v, ok := m.values[key3[K1, K2, K3]{k1, k2, k3}]; ok {
		return v, nil
	}
	if m.defaultFn != nil {
		return m.defaultFn(k1, k2, k3), nil
	}
	var zero V
	return zero, missingKey(m.name, k1, k2, k3)
}

func (m *MatrixMap3[K1, K2, K3, V]) Len() int {
	return len(m.values)
}

func (m *MatrixMap3[K1, K2, K3, V]) Name() string {
	return m.name
}

// Coefficients is a zero-based coefficient tuple.
type Coefficients []float32

// At returns coefficient i, or 0 when the tuple is shorter.
func (c Coefficients) At(i int) float32 {
	if i < 0 || i >= len(c) {
		return 0
	}
	return c[i]
}

// Copy returns an independent copy so callers can weight or clamp values
// without touching the shared table.
func (c Coefficients) Copy() Coefficients {
	out := make(Coefficients, len(c))
	copy(out, c)
	return out
}

func (c Coefficients) String() string {
	return fmt.Sprintf("%v", []float32(c))
}
