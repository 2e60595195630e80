// Fixed-record side-table indexed by a monotonic ObjectIndex, backed by
// a memory-mapped file. Each record holds a file-offset into the HPROF
// dump, the record's own ObjectIndex, a flag byte, one overloaded
// reference pointer (single parent, ReferenceList block index, or
// nearest-root/dominator pointer, depending on the flags and the
// analysis stage), and a retained size.
//
// Records are located by open hashing on the 64-bit ObjectId via idIndex;
// a DenseIntMap-shaped accessor (recordOffset) maps ObjectIndex to the
// record's byte offset in the mapped region. Because ObjectIndex is
// dense and assigned in parse order, that map is a closed-form
// computation rather than a stored table — the DenseIntMap contract
// (index -> offset, sentinel for absent) is satisfied without wasting
// an extra array the size of the table.
//
// Grounded on the teacher's fixed-size Header (encode/header, read/write
// at fixed byte offsets) generalized from one JSON header to many binary
// records, and on the mmap header+region pattern used for disk-backed
// caches in the wider retrieved example pack.
package reachability

import (
	"encoding/binary"
)

// objectTableHeaderSize is the fixed header written at the start of the
// mapped file: magic, version, pointer width, record count, record size.
const objectTableHeaderSize = 32

var objectTableMagic = [4]byte{'O', 'B', 'J', 'T'}

// ObjectTable is the mmap-backed fixed-record side table.
type ObjectTable struct {
	region       mappedRegion
	pointerWidth PointerWidth
	recordSize   int
	count        int64 // N, number of records (ObjectIndex in [1..count])

	idIndex *idHashMap // ObjectId -> ObjectIndex, open addressing
}

// record field byte offsets within a record, relative to recordSize.
// fileOffset occupies [0, pw); instanceIndex [pw, pw+4); flags at
// pw+4; refPointer [pw+5, pw+9); retainedSize [pw+9, pw+9+pw).
func (t *ObjectTable) offFileOffset() int    { return 0 }
func (t *ObjectTable) offInstanceIndex() int { return int(t.pointerWidth) }
func (t *ObjectTable) offFlags() int         { return int(t.pointerWidth) + 4 }
func (t *ObjectTable) offRefPointer() int    { return int(t.pointerWidth) + 5 }
func (t *ObjectTable) offRetainedSize() int  { return int(t.pointerWidth) + 9 }

func recordSizeFor(pw PointerWidth) int { return int(pw) + 9 + int(pw) }

// CreateObjectTable allocates a new mmap-backed table sized for
// capacity objects (ObjectIndex in [1..capacity]). Grown only at parse
// time; thereafter fields mutate in place.
func CreateObjectTable(path string, capacity int64, pw PointerWidth) (*ObjectTable, error) {
	recSize := recordSizeFor(pw)
	total := objectTableHeaderSize + recSize*int(capacity)

	region, err := createMappedRegion(path, total)
	if err != nil {
		return nil, &IOError{"CreateObjectTable", err}
	}

	t := &ObjectTable{region: region, pointerWidth: pw, recordSize: recSize, count: capacity}
	t.writeHeader()
	t.idIndex = newIDHashMap(int(capacity))
	return t, nil
}

// OpenObjectTable rehydrates a previously persisted table.
func OpenObjectTable(path string) (*ObjectTable, error) {
	region, err := openMappedRegion(path)
	if err != nil {
		return nil, &IOError{"OpenObjectTable", err}
	}
	t := &ObjectTable{region: region}
	if err := t.readHeader(); err != nil {
		region.Close()
		return nil, err
	}
	t.idIndex = newIDHashMap(int(t.count))
	return t, nil
}

func (t *ObjectTable) writeHeader() {
	b := t.region.Bytes()[:objectTableHeaderSize]
	copy(b[0:4], objectTableMagic[:])
	binary.LittleEndian.PutUint16(b[4:6], 1) // version
	binary.LittleEndian.PutUint16(b[6:8], uint16(t.pointerWidth))
	binary.LittleEndian.PutUint64(b[8:16], uint64(t.count))
	binary.LittleEndian.PutUint32(b[16:20], uint32(t.recordSize))
}

func (t *ObjectTable) readHeader() error {
	b := t.region.Bytes()
	if len(b) < objectTableHeaderSize || string(b[0:4]) != string(objectTableMagic[:]) {
		return ErrCorruptPersisted
	}
	t.pointerWidth = PointerWidth(binary.LittleEndian.Uint16(b[6:8]))
	t.count = int64(binary.LittleEndian.Uint64(b[8:16]))
	t.recordSize = int(binary.LittleEndian.Uint32(b[16:20]))
	return nil
}

// recordOffset returns the byte offset of index's record in the mapped
// region, or -1 if index is out of range. This is the closed-form
// DenseIntMap<ObjectIndex, fileOffset> the component design calls for.
func (t *ObjectTable) recordOffset(index ObjectIndex) int {
	if index == NullIndex || int64(index) > t.count {
		return -1
	}
	return objectTableHeaderSize + (int(index)-1)*t.recordSize
}

func (t *ObjectTable) record(index ObjectIndex) []byte {
	off := t.recordOffset(index)
	if off < 0 {
		return nil
	}
	return t.region.Bytes()[off : off+t.recordSize]
}

// Count returns N, the number of records in the table.
func (t *ObjectTable) Count() int64 { return t.count }

// PointerWidth returns the dump's pointer width (4 or 8).
func (t *ObjectTable) PointerWidth() PointerWidth { return t.pointerWidth }

// SetFileOffset records where index's instance payload begins in the
// HPROF dump, and installs the ObjectId -> ObjectIndex mapping so later
// lookups by ObjectId succeed.
func (t *ObjectTable) SetFileOffset(index ObjectIndex, id ObjectId, fileOffset uint64) {
	r := t.record(index)
	if r == nil {
		return
	}
	binary.LittleEndian.PutUint32(r[t.offInstanceIndex():], uint32(index))
	if t.pointerWidth == PointerWidth64 {
		binary.LittleEndian.PutUint64(r[t.offFileOffset():], fileOffset)
	} else {
		binary.LittleEndian.PutUint32(r[t.offFileOffset():], uint32(fileOffset))
	}
	t.idIndex.put(id, index)
}

// FileOffset returns index's file-offset into the HPROF dump.
func (t *ObjectTable) FileOffset(index ObjectIndex) uint64 {
	r := t.record(index)
	if r == nil {
		return 0
	}
	if t.pointerWidth == PointerWidth64 {
		return binary.LittleEndian.Uint64(r[t.offFileOffset():])
	}
	return uint64(binary.LittleEndian.Uint32(r[t.offFileOffset():]))
}

// IndexOf resolves an ObjectId to its ObjectIndex, or (0, false) if
// unknown.
func (t *ObjectTable) IndexOf(id ObjectId) (ObjectIndex, bool) {
	return t.idIndex.get(id)
}

// Flags returns index's flag byte.
func (t *ObjectTable) Flags(index ObjectIndex) byte {
	r := t.record(index)
	if r == nil {
		return 0
	}
	return r[t.offFlags()]
}

// SetFlag ORs bit into index's flag byte.
func (t *ObjectTable) SetFlag(index ObjectIndex, bit byte) {
	r := t.record(index)
	if r == nil {
		return
	}
	r[t.offFlags()] |= bit
}

// HasFlag reports whether index's flag byte has bit set.
func (t *ObjectTable) HasFlag(index ObjectIndex, bit byte) bool {
	return t.Flags(index)&bit != 0
}

// RefPointer returns index's overloaded reference field: the raw
// ObjectIndex of the single incoming reference when FlagHasRefList is
// clear, otherwise a ReferenceList block index.
func (t *ObjectTable) RefPointer(index ObjectIndex) uint32 {
	r := t.record(index)
	if r == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(r[t.offRefPointer():])
}

// SetRefPointer stores v into index's overloaded reference field.
func (t *ObjectTable) SetRefPointer(index ObjectIndex, v uint32) {
	r := t.record(index)
	if r == nil {
		return
	}
	binary.LittleEndian.PutUint32(r[t.offRefPointer():], v)
}

// RetainedSize returns index's retained size.
func (t *ObjectTable) RetainedSize(index ObjectIndex) uint64 {
	r := t.record(index)
	if r == nil {
		return 0
	}
	if t.pointerWidth == PointerWidth64 {
		return binary.LittleEndian.Uint64(r[t.offRetainedSize():])
	}
	return uint64(binary.LittleEndian.Uint32(r[t.offRetainedSize():]))
}

// SetRetainedSize stores index's retained size.
func (t *ObjectTable) SetRetainedSize(index ObjectIndex, size uint64) {
	r := t.record(index)
	if r == nil {
		return
	}
	if t.pointerWidth == PointerWidth64 {
		binary.LittleEndian.PutUint64(r[t.offRetainedSize():], size)
	} else {
		binary.LittleEndian.PutUint32(r[t.offRetainedSize():], uint32(size))
	}
}

// AddRetainedSize adds delta to index's retained size.
func (t *ObjectTable) AddRetainedSize(index ObjectIndex, delta uint64) {
	t.SetRetainedSize(index, t.RetainedSize(index)+delta)
}

// Close unmaps the backing region.
func (t *ObjectTable) Close() error { return t.region.Close() }

// idHashMap is an open-addressed linear-probe map from 64-bit ObjectId
// to ObjectIndex, used for the "locate a record by open hashing on the
// 64-bit ObjectId" requirement in the component design.
type idHashMap struct {
	keys []uint64
	vals []uint32
	used int
}

func newIDHashMap(hint int) *idHashMap {
	n := nextPow2(hint*2 + 1)
	if n < 16 {
		n = 16
	}
	return &idHashMap{keys: make([]uint64, n), vals: make([]uint32, n)}
}

func mixID(id uint64) uint64 {
	// splitmix64 finalizer, spreads sequential pointer-like ids well.
	id ^= id >> 33
	id *= 0xff51afd7ed558ccd
	id ^= id >> 33
	id *= 0xc4ceb9fe1a85ec53
	id ^= id >> 33
	return id
}

func (m *idHashMap) probe(key uint64) int {
	mask := uint64(len(m.keys) - 1)
	i := mixID(key) & mask
	for {
		k := m.keys[i]
		if k == 0 && !(key == 0 && m.vals[i] != 0) {
			return int(i)
		}
		if k == key+1 {
			return int(i)
		}
		i = (i + 1) & mask
	}
}

// Keys are stored internally offset by +1 so that a stored ObjectId 0
// does not read as the bit pattern 0 used for "empty slot"; ObjectId
// 2^64-1 would wrap to 0 and is not expected from real pointer-derived
// identifiers.
func (m *idHashMap) put(id ObjectId, idx ObjectIndex) {
	if m.used*2 >= len(m.keys) {
		m.grow()
	}
	i := m.probe(uint64(id))
	if m.keys[i] == 0 {
		m.used++
	}
	m.keys[i] = uint64(id) + 1
	m.vals[i] = uint32(idx)
}

func (m *idHashMap) get(id ObjectId) (ObjectIndex, bool) {
	if len(m.keys) == 0 {
		return 0, false
	}
	i := m.probe(uint64(id))
	if m.keys[i] == 0 {
		return 0, false
	}
	return ObjectIndex(m.vals[i]), true
}

func (m *idHashMap) grow() {
	oldKeys, oldVals := m.keys, m.vals
	m.keys = make([]uint64, len(oldKeys)*2)
	m.vals = make([]uint32, len(oldVals)*2)
	m.used = 0
	for i, k := range oldKeys {
		if k != 0 {
			idx := m.probe(k - 1)
			m.keys[idx] = k
			m.vals[idx] = oldVals[i]
			m.used++
		}
	}
}
