// Disk-backed "list of ints" store composed of fixed-size blocks
// chained via a tail slot. Supports append, first-element swap, and
// forward iteration — used to record multiple incoming references on
// an object once a second distinct parent appears.
//
// Blocks below the persisted mapped region are served directly from
// the mmap'd buffer; newly allocated or modified blocks are staged in
// an overflow map, their indices pinned as dirty in a BoundedLRUCache,
// until Flush copies each dirty block into the mapped region (growing
// it as needed) one block at a time, unsorted and uncoalesced —
// generalizing the teacher's repair-pass rewrite-and-swap idiom
// (jpl-au-folio/repair.go's offsetWriter) to an in-place growable
// binary store instead of a full-file rewrite. A dirty block already
// present in the mapped region is fingerprinted before the write so an
// unchanged rewrite (SwapToFront re-applying the same order) is a no-op.
package reachability

import "encoding/binary"

// blockSize is the fixed ReferenceBlock width: three 32-bit value
// slots plus one 32-bit next-block link.
const blockSize = 16

// maxBlocks is the 2^29-block ceiling named in spec.md's
// CapacityExhausted error kind.
const maxBlocks = 1 << 29

// ReferenceList is a chain of fixed blocks backed by a growable mapped
// region, with new or modified blocks staged in an overflow map until
// Flush. The BoundedLRUCache only records which block indices are
// dirty; no block is stored in it.
type ReferenceList struct {
	region        mappedRegion
	path          string
	mapped        int32 // number of blocks currently represented in region (block 0 is null, so region holds mapped+1 blocks worth of bytes)
	nextBlock     int32 // next unallocated block index
	overflow      map[int32][blockSize]byte
	cache         *BoundedLRUCache
	hashAlgorithm int
}

// NewReferenceList creates an empty list backed by a mapped file at
// path, pre-sized for an initial block capacity.
func NewReferenceList(path string, initialBlocks int, cacheSize int, hashAlgorithm int) (*ReferenceList, error) {
	if initialBlocks < 1 {
		initialBlocks = 1 // block 0 reserved null
	}
	region, err := createMappedRegion(path, initialBlocks*blockSize)
	if err != nil {
		return nil, &IOError{"NewReferenceList", err}
	}
	return &ReferenceList{
		region:        region,
		path:          path,
		mapped:        int32(initialBlocks),
		nextBlock:     1, // 0 is reserved null
		overflow:      make(map[int32][blockSize]byte),
		cache:         NewBoundedLRUCache(cacheSize),
		hashAlgorithm: hashAlgorithm,
	}, nil
}

// OpenReferenceList rehydrates a previously persisted list, resuming
// block allocation from the watermarks a Manifest recorded at the last
// clean Close.
func OpenReferenceList(path string, mapped, nextBlock int32, cacheSize int, hashAlgorithm int) (*ReferenceList, error) {
	region, err := openMappedRegion(path)
	if err != nil {
		return nil, &IOError{"OpenReferenceList", err}
	}
	return &ReferenceList{
		region:        region,
		path:          path,
		mapped:        mapped,
		nextBlock:     nextBlock,
		overflow:      make(map[int32][blockSize]byte),
		cache:         NewBoundedLRUCache(cacheSize),
		hashAlgorithm: hashAlgorithm,
	}, nil
}

// Watermarks returns the list's current mapped-block count and next
// unallocated block index, for persisting across a process restart.
func (l *ReferenceList) Watermarks() (mapped, nextBlock int32) {
	return l.mapped, l.nextBlock
}

func (l *ReferenceList) allocBlock() (int32, error) {
	if l.nextBlock >= maxBlocks {
		return 0, ErrCapacityExhausted
	}
	b := l.nextBlock
	l.nextBlock++
	var empty [blockSize]byte
	l.overflow[b] = empty
	l.cache.MarkDirty(b)
	return b, nil
}

func (l *ReferenceList) readBlock(b int32) [blockSize]byte {
	if v, ok := l.overflow[b]; ok {
		return v
	}
	var out [blockSize]byte
	if int32(b) < l.mapped {
		off := int(b) * blockSize
		copy(out[:], l.region.Bytes()[off:off+blockSize])
	}
	return out
}

// writeBlock stages data for block b in the overflow map, marking it
// dirty so the LRU won't evict it and Flush() will fold it into the
// mapped region. This applies equally to brand-new blocks and to
// blocks that already exist in the mapped region and are being
// mutated (e.g. AppendFirst results are never re-written, but
// SwapToFront patches an existing block's slots).
func (l *ReferenceList) writeBlock(b int32, data [blockSize]byte) {
	l.overflow[b] = data
	l.cache.MarkDirty(b)
}

func slotValues(b [blockSize]byte) (a, c, d, next uint32) {
	a = binary.LittleEndian.Uint32(b[0:4])
	c = binary.LittleEndian.Uint32(b[4:8])
	d = binary.LittleEndian.Uint32(b[8:12])
	next = binary.LittleEndian.Uint32(b[12:16])
	return
}

func makeBlock(a, c, d, next uint32) [blockSize]byte {
	var b [blockSize]byte
	binary.LittleEndian.PutUint32(b[0:4], a)
	binary.LittleEndian.PutUint32(b[4:8], c)
	binary.LittleEndian.PutUint32(b[8:12], d)
	binary.LittleEndian.PutUint32(b[12:16], next)
	return b
}

// AppendFirst allocates a new block initialised with two values,
// returning its block index.
func (l *ReferenceList) AppendFirst(a, b uint32) (int32, error) {
	block, err := l.allocBlock()
	if err != nil {
		return 0, err
	}
	l.writeBlock(block, makeBlock(a, b, 0, 0))
	return block, nil
}

// Append appends v to the list starting at block head. If v already
// appears in the first visited block, it is a no-op. If the head
// block's slots are full, a new head block is allocated whose first
// slot is v and whose next-link is the old head; the new head index is
// returned. This inverts the logical list each time it grows: iteration
// order is most-recent-group first, and within a group insertion order
// is preserved.
func (l *ReferenceList) Append(head int32, v uint32) (int32, error) {
	block := l.readBlock(head)
	a, c, d, next := slotValues(block)
	if a == v || c == v || d == v {
		return head, nil
	}
	if c == 0 {
		l.writeBlock(head, makeBlock(a, v, 0, next))
		return head, nil
	}
	if d == 0 {
		l.writeBlock(head, makeBlock(a, c, v, next))
		return head, nil
	}
	newHead, err := l.allocBlock()
	if err != nil {
		return 0, err
	}
	l.writeBlock(newHead, makeBlock(v, 0, 0, uint32(head)))
	return newHead, nil
}

// SwapToFront scans the chain starting at head, finds v if present,
// and swaps it with the first slot of the head block. Used to install
// a specific first element (the nearest GC root or dominator).
func (l *ReferenceList) SwapToFront(head int32, v uint32) {
	headBlock := l.readBlock(head)
	a, c, d, next := slotValues(headBlock)
	if a == v {
		return
	}
	if c == v {
		l.writeBlock(head, makeBlock(c, a, d, next))
		return
	}
	if d == v {
		l.writeBlock(head, makeBlock(d, c, a, next))
		return
	}
	// v lives in a later block: swap it there for v, then install v as
	// the new first slot of head, displacing the old first slot into
	// that later block's vacated spot.
	cur := next
	for cur != 0 {
		b := l.readBlock(int32(cur))
		ba, bc, bd, bnext := slotValues(b)
		switch v {
		case ba:
			l.writeBlock(int32(cur), makeBlock(a, bc, bd, bnext))
			l.writeBlock(head, makeBlock(v, c, d, next))
			return
		case bc:
			l.writeBlock(int32(cur), makeBlock(ba, a, bd, bnext))
			l.writeBlock(head, makeBlock(v, c, d, next))
			return
		case bd:
			l.writeBlock(int32(cur), makeBlock(ba, bc, a, bnext))
			l.writeBlock(head, makeBlock(v, c, d, next))
			return
		}
		cur = bnext
	}
}

// First returns the first slot value of the chain starting at head.
func (l *ReferenceList) First(head int32) uint32 {
	a, _, _, _ := slotValues(l.readBlock(head))
	return a
}

// Iterate yields every value in the chain starting at head, most-recent-
// group first. A zero slot ends the current block (only a partly filled
// head block has one); iteration then follows the next-link until it
// is null.
func (l *ReferenceList) Iterate(head int32, yield func(uint32) bool) {
	cur := head
	for cur != 0 {
		a, c, d, next := slotValues(l.readBlock(int32(cur)))
		for _, v := range [3]uint32{a, c, d} {
			if v == 0 {
				break
			}
			if !yield(v) {
				return
			}
		}
		cur = next
	}
}

// Flush copies every dirty block into the mapped region (growing it if
// necessary), one block at a time in the order DirtyKeys returns them;
// dirty indices are neither sorted nor coalesced into contiguous
// writes. It then clears the dirty set so future lookups read through
// the mapped buffer directly.
func (l *ReferenceList) Flush() error {
	dirty := l.cache.DirtyKeys()
	if len(dirty) == 0 {
		return nil
	}
	maxIdx := l.mapped
	for _, b := range dirty {
		if b+1 > maxIdx {
			maxIdx = b + 1
		}
	}
	if int(maxIdx) > len(l.region.Bytes())/blockSize {
		if err := l.growRegion(maxIdx); err != nil {
			return err
		}
	}
	for _, b := range dirty {
		data := l.overflow[b]
		off := int(b) * blockSize
		if int32(b) < l.mapped {
			existing := l.region.Bytes()[off : off+blockSize]
			if contentHash64(existing, l.hashAlgorithm) == contentHash64(data[:], l.hashAlgorithm) {
				continue // block content unchanged since last flush; skip the write
			}
		}
		copy(l.region.Bytes()[off:off+blockSize], data[:])
	}
	l.mapped = maxIdx
	l.overflow = make(map[int32][blockSize]byte)
	l.cache.ClearDirty()
	return nil
}

func (l *ReferenceList) growRegion(minBlocks int32) error {
	old := make([]byte, len(l.region.Bytes()))
	copy(old, l.region.Bytes())
	if err := l.region.Close(); err != nil {
		return &IOError{"ReferenceList.growRegion: close old", err}
	}
	newRegion, err := createMappedRegion(l.path, int(minBlocks)*blockSize)
	if err != nil {
		return &IOError{"ReferenceList.growRegion", err}
	}
	copy(newRegion.Bytes(), old)
	l.region = newRegion
	return nil
}

// Close flushes dirty blocks and releases the mapped region.
func (l *ReferenceList) Close() error {
	if err := l.Flush(); err != nil {
		return err
	}
	return l.region.Close()
}
