package reachability

// ObjectIndex is a dense 32-bit index in [1..N] assigned in discovery
// order by the HPROF parser. Index 0 is the null/sentinel value.
type ObjectIndex uint32

// NullIndex is the sentinel ObjectIndex meaning "no object" / "no
// parent" / "no dominator".
const NullIndex ObjectIndex = 0

// ObjectId is the opaque 64-bit identifier from the dump (the original
// process's pointer value for the instance). Not dense; mapped to an
// ObjectIndex via the parser-supplied id index.
type ObjectId uint64

// ClassId identifies a class by its ObjectId.
type ClassId = ObjectId

// Flag bits stored in ObjectRecord.Flags.
const (
	FlagHasRefList byte = 1 << iota // refPointer is a ReferenceList block index, not a raw ObjectIndex
	FlagHasGCRoot                   // refPointer/first-list-slot holds nearest-root (pre-dominator) or dominator (post)
	FlagIsTree                      // exactly one incoming reference chain from its nearest root
	FlagIsDeep                      // first reached beyond Config.DeepLevelThreshold BFS levels
)

// PointerWidth is the dump's file-offset width: 4 or 8 bytes.
type PointerWidth int

const (
	PointerWidth32 PointerWidth = 4
	PointerWidth64 PointerWidth = 8
)
