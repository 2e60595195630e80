package reachability

// Hash algorithm selectors for Config.HashAlgorithm.
const (
	AlgXXHash3 = 1 // Default, fastest
	AlgFNV1a   = 2 // No external dependencies
	AlgBlake2b = 3 // Best distribution
)

// Config holds tunables for an Analysis. Zero values are replaced with
// defaults by Open.
type Config struct {
	// HashAlgorithm selects the content hash used for ReferenceList
	// block dedup fingerprints and cache-directory logical names.
	HashAlgorithm int

	// PageSize is the number of fixed-width integers held in memory by
	// a PagedIntStream/PagedLongStream page before it spills to a
	// temp file.
	PageSize int

	// BlockCacheSize is the capacity of the ReferenceList's
	// BoundedLRUCache. That cache only tracks which blocks are dirty
	// (the pending blocks themselves sit in an overflow map) and no
	// block is ever Put into it, so this bound does not limit how many
	// blocks are held in memory.
	BlockCacheSize int

	// RootCacheSize bounds the GC-root lookup cache.
	RootCacheSize int

	// DeepLevelThreshold is the BFS level at or beyond which a newly
	// discovered object is marked IS_DEEP. RetainedSizeEngine does not
	// read the flag: its rollup is iterative for every object.
	DeepLevelThreshold int

	// SyncWrites calls fsync after persisting analysis state to the
	// cache directory.
	SyncWrites bool

	// TopNDefault is the default k used when callers ask for top
	// retainers without specifying one.
	TopNDefault int
}

// withDefaults returns a copy of c with zero fields replaced by defaults.
func (c Config) withDefaults() Config {
	if c.HashAlgorithm == 0 {
		c.HashAlgorithm = AlgXXHash3
	}
	if c.PageSize == 0 {
		c.PageSize = 1 << 16 // 65536 ints per in-memory page
	}
	if c.BlockCacheSize == 0 {
		c.BlockCacheSize = 1 << 14
	}
	if c.RootCacheSize == 0 {
		c.RootCacheSize = 1 << 12
	}
	if c.DeepLevelThreshold == 0 {
		c.DeepLevelThreshold = 1000
	}
	if c.TopNDefault == 0 {
		c.TopNDefault = 10
	}
	return c
}
