// Package coherence holds the block-state and bus-signal vocabulary shared
// by both protocols (spec.md §3, §9 Design Notes), plus the per-set LRU
// bookkeeping used by the cache controller.
package coherence

import "fmt"

// BlockState is a single tagged union spanning both MESI and Dragon states,
// per spec.md §9 ("Dynamic dispatch"). Not every state is reachable under
// every protocol: Shared is MESI-only; SharedClean/SharedModified are
// Dragon-only.
type BlockState int

const (
	Invalid BlockState = iota
	Shared             // MESI only
	Exclusive          // both
	Modified           // both
	SharedClean        // Dragon only
	SharedModified      // Dragon only
)

func (s BlockState) String() string {
	switch s {
	case Invalid:
		return "Invalid"
	case Shared:
		return "Shared"
	case Exclusive:
		return "Exclusive"
	case Modified:
		return "Modified"
	case SharedClean:
		return "SharedClean"
	case SharedModified:
		return "SharedModified"
	default:
		return fmt.Sprintf("BlockState(%d)", int(s))
	}
}

// Private reports whether a block held in this state is the sole owner,
// per spec.md §4.3.6's private/shared access classification.
func (s BlockState) Private() bool {
	return s == Modified || s == Exclusive
}

// BusSignalKind tags the variant of a BusSignal.
type BusSignalKind int

const (
	BusRd BusSignalKind = iota
	BusRdX
	BusUpd
)

func (k BusSignalKind) String() string {
	switch k {
	case BusRd:
		return "BusRd"
	case BusRdX:
		return "BusRdX"
	case BusUpd:
		return "BusUpd"
	default:
		return fmt.Sprintf("BusSignalKind(%d)", int(k))
	}
}

// BusSignal is the tagged sum BusRd(Addr) | BusRdX(Addr) | BusUpd(Addr).
type BusSignal struct {
	Kind BusSignalKind
	Addr uint32
}

func (s BusSignal) String() string { return fmt.Sprintf("%s(0x%x)", s.Kind, s.Addr) }

// CarriesData reports whether this signal's traversal of the bus should be
// charged block_size bytes of bus-data traffic (spec.md §4.3.6).
func (s BusSignal) CarriesData() bool { return true }

// Block is a single resident cache line: its tag and coherence state.
type Block struct {
	Tag   uint32
	State BlockState
}

// setEntry is one resident way within a CacheSet.
type setEntry struct {
	block      Block
	lastAccess uint64
}

// CacheSet holds up to assoc resident blocks plus an LRU order expressed as
// monotonically increasing per-set access counters (spec.md §4.3.5). The
// zero value is not usable; use NewCacheSet.
type CacheSet struct {
	assoc   int
	entries []setEntry
	clock   uint64
}

// NewCacheSet creates an empty set with the given associativity.
func NewCacheSet(assoc int) *CacheSet {
	return &CacheSet{assoc: assoc}
}

// Lookup returns the resident block for tag, if any.
func (s *CacheSet) Lookup(tag uint32) (Block, bool) {
	for _, e := range s.entries {
		if e.block.Tag == tag {
			return e.block, true
		}
	}
	return Block{}, false
}

// Touch bumps tag's LRU counter to the most-recently-used position. The
// caller must ensure tag is resident.
func (s *CacheSet) Touch(tag uint32) {
	s.clock++
	for i := range s.entries {
		if s.entries[i].block.Tag == tag {
			s.entries[i].lastAccess = s.clock
			return
		}
	}
}

// SetState overwrites the coherence state of a resident block, without
// touching its LRU position. The caller must ensure tag is resident.
func (s *CacheSet) SetState(tag uint32, state BlockState) {
	for i := range s.entries {
		if s.entries[i].block.Tag == tag {
			s.entries[i].block.State = state
			return
		}
	}
}

// Full reports whether the set has no free way.
func (s *CacheSet) Full() bool { return len(s.entries) >= s.assoc }

// Insert installs a new block as the most-recently-used entry. It is a
// programming error to call Insert on a full set without first evicting;
// callers must check Full (as cachectrl's installEvicting does).
func (s *CacheSet) Insert(block Block) {
	s.clock++
	s.entries = append(s.entries, setEntry{block: block, lastAccess: s.clock})
}

// EvictLRU removes and returns the least-recently-used resident block. It
// panics if the set is empty; callers must check Full/len before calling.
func (s *CacheSet) EvictLRU() Block {
	minIdx := 0
	for i := range s.entries {
		if s.entries[i].lastAccess < s.entries[minIdx].lastAccess {
			minIdx = i
		}
	}
	victim := s.entries[minIdx].block
	s.entries = append(s.entries[:minIdx], s.entries[minIdx+1:]...)
	return victim
}

// Remove deletes tag from the set if present (used for snoop-driven
// invalidation), reporting whether it was present.
func (s *CacheSet) Remove(tag uint32) bool {
	for i := range s.entries {
		if s.entries[i].block.Tag == tag {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of resident blocks.
func (s *CacheSet) Len() int { return len(s.entries) }
