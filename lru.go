// Recency-ordered bounded map used for GC-root lookups and, through its
// dirty set alone, for tracking ReferenceList's dirty blocks. Refuses to evict entries present in a disjoint
// dirty set — spec.md's explicit "LRU with pinned entries" design note.
//
// Grounded in shape on the teacher's bloom filter: a small bounded
// auxiliary structure held on the owning type, reset across repairs.
// No ecosystem LRU in the retrieved pack exposes a per-key eviction
// veto, so this structure is hand-rolled (see DESIGN.md).
package reachability

import "container/list"

// BoundedLRUCache is a recency-ordered cache bounded to capacity
// entries. Values are int32 block/record indices; keys are int32
// (block index or ObjectIndex, depending on caller).
type BoundedLRUCache struct {
	capacity int
	ll       *list.List
	items    map[int32]*list.Element
	dirty    map[int32]struct{}
}

type lruEntry struct {
	key int32
	val int32
}

// NewBoundedLRUCache returns a cache holding at most capacity entries.
func NewBoundedLRUCache(capacity int) *BoundedLRUCache {
	return &BoundedLRUCache{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[int32]*list.Element, capacity),
		dirty:    make(map[int32]struct{}),
	}
}

// Get returns the cached value for key, promoting it to most-recently-used.
func (c *BoundedLRUCache) Get(key int32) (int32, bool) {
	el, ok := c.items[key]
	if !ok {
		return 0, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*lruEntry).val, true
}

// Put inserts or updates key, evicting the least-recently-used clean
// (non-dirty) entry if the cache is over capacity. If every entry is
// dirty, the cache is allowed to exceed capacity rather than drop
// state a writer still depends on — flush() is expected to clear the
// dirty set soon after.
func (c *BoundedLRUCache) Put(key, val int32) {
	if el, ok := c.items[key]; ok {
		el.Value.(*lruEntry).val = val
		c.ll.MoveToFront(el)
		return
	}
	el := c.ll.PushFront(&lruEntry{key: key, val: val})
	c.items[key] = el
	c.evictIfNeeded()
}

func (c *BoundedLRUCache) evictIfNeeded() {
	for c.ll.Len() > c.capacity {
		victim := c.evictionCandidate()
		if victim == nil {
			return // everything remaining is pinned dirty
		}
		c.ll.Remove(victim)
		delete(c.items, victim.Value.(*lruEntry).key)
	}
}

// evictionCandidate walks from the back (least recently used) and
// returns the first element whose key is not in the dirty set.
func (c *BoundedLRUCache) evictionCandidate() *list.Element {
	for el := c.ll.Back(); el != nil; el = el.Prev() {
		key := el.Value.(*lruEntry).key
		if _, pinned := c.dirty[key]; !pinned {
			return el
		}
	}
	return nil
}

// MarkDirty pins key against eviction until ClearDirty is called.
func (c *BoundedLRUCache) MarkDirty(key int32) {
	c.dirty[key] = struct{}{}
}

// DirtyKeys returns the current dirty set as a slice, in no particular
// order. ReferenceList.Flush writes the blocks in that order.
func (c *BoundedLRUCache) DirtyKeys() []int32 {
	keys := make([]int32, 0, len(c.dirty))
	for k := range c.dirty {
		keys = append(keys, k)
	}
	return keys
}

// ClearDirty unpins every currently dirty key, re-enabling eviction,
// then trims the cache back down to capacity.
func (c *BoundedLRUCache) ClearDirty() {
	c.dirty = make(map[int32]struct{})
	c.evictIfNeeded()
}

// Len reports the number of entries currently cached.
func (c *BoundedLRUCache) Len() int { return c.ll.Len() }
