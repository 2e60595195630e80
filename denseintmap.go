// Array-backed mapping from a dense key (an ObjectIndex) to a 32-bit
// value. Used wherever the key space is known to be dense and bounded,
// e.g. DominatorEngine's ObjectIndex -> dominator estimate.
package reachability

// absentDense is the sentinel distinguishing "never set" from the
// legitimate value 0.
const absentDense int64 = -1

// DenseIntMap is an array-backed index->value map. Grown to fit the
// largest key seen; reads of an unset key return (0, false).
type DenseIntMap struct {
	values []int64
}

// NewDenseIntMap returns a map pre-sized for capacity keys (0-based).
func NewDenseIntMap(capacity int) *DenseIntMap {
	m := &DenseIntMap{values: make([]int64, capacity)}
	for i := range m.values {
		m.values[i] = absentDense
	}
	return m
}

// Get returns the value stored for key and whether it was ever set.
func (m *DenseIntMap) Get(key ObjectIndex) (int64, bool) {
	i := int(key)
	if i < 0 || i >= len(m.values) {
		return 0, false
	}
	v := m.values[i]
	if v == absentDense {
		return 0, false
	}
	return v, true
}

// Put stores value for key, growing the backing array if needed.
func (m *DenseIntMap) Put(key ObjectIndex, value int64) {
	i := int(key)
	if i >= len(m.values) {
		grown := make([]int64, i+1)
		copy(grown, m.values)
		for j := len(m.values); j < len(grown); j++ {
			grown[j] = absentDense
		}
		m.values = grown
	}
	m.values[i] = value
}

// Len reports the capacity of the backing array (not the number of set
// entries).
func (m *DenseIntMap) Len() int { return len(m.values) }
