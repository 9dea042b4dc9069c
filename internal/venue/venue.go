// Package venue defines the pluggable venue-builder capability set from
// spec §4.6 and a routing table keyed by venue identifier. The core never
// branches on venue name outside this table (spec §9's "polymorphism over
// venues" redesign note) — grounded on ChoSanghyuk-blackholedex's
// Blackhole.Client(address) lookup-by-address routing pattern
// (blackhole.go), generalized from a single DEX's contract-address map to
// an arbitrary venue-id -> Builder dispatch table.
package venue

import (
	"errors"
	"fmt"
)

// ErrNoBuilder is returned by Registry.Get when no builder is registered
// for the requested venue.
var ErrNoBuilder = errors.New("venue: no builder mapped for this venue id")

// ErrQuoteRefused is the sentinel a Builder returns (wrapped) when it
// cannot produce a valid quote for the requested pool/pair — spec §9's
// "venue builder refused" contract for non-default pair tokens or any
// other venue-side limitation.
var ErrQuoteRefused = errors.New("venue: builder refused to quote")

// Instruction is one low-level, opaque instruction to include in the
// bundle transaction. The core never inspects its contents — only the
// venue builder and the (out-of-scope) RPC client understand the bytes.
type Instruction []byte

// Builder is the capability set every venue exposes, per spec §4.6.
// Quote must be deterministic and free of I/O — it reads cached pool
// state the builder itself owns and keeps fresh.
type Builder interface {
	// Quote computes the deterministic output amount for swapping
	// inputAmount of inputToken through pool. Returns ErrQuoteRefused
	// (wrapped) if the pool/pair cannot be quoted.
	Quote(pool string, inputToken string, inputAmount float64) (outputAmount float64, err error)

	// BuildSwap returns the instructions needed to execute the swap
	// on-chain, given a minimum acceptable output and the wallet that
	// will sign the resulting transaction. wallet is an opaque string
	// handle — wallet/keypair storage is an external collaborator
	// (spec §1) and never touched here.
	BuildSwap(pool string, inputToken string, inputAmount float64, minOutput float64, wallet string) ([]Instruction, error)

	// ProgramIdentifier is the opaque venue-program handle used to key
	// the routing table.
	ProgramIdentifier() string

	// PoolsForPair returns the pool identifiers this builder hosts that
	// trade tokenA against tokenB, in either order. Empty if the venue
	// has no such pool. Grounded on the GetAMMState(poolAddress) pool
	// lookup shape (blackhole.go), generalized from a single known
	// address to pair-based discovery across a venue's whole pool set —
	// the triangle search uses this to find X->Y legs without knowing
	// which pools exist ahead of time.
	PoolsForPair(tokenA, tokenB string) []string
}

// PoolRef names one quotable (venue, pool) pair, returned by
// Registry.PoolsForPair.
type PoolRef struct {
	Venue  string
	PoolID string
}

// Registry is the (venue_id -> Builder) dispatch table. Immutable after
// construction; builders own and internally synchronize their own
// pool-state caches (spec §5).
type Registry struct {
	builders map[string]Builder
}

// NewRegistry builds a routing table from a set of builders, keyed by
// each builder's own ProgramIdentifier().
func NewRegistry(builders ...Builder) *Registry {
	r := &Registry{builders: make(map[string]Builder, len(builders))}
	for _, b := range builders {
		r.builders[b.ProgramIdentifier()] = b
	}
	return r
}

// Get returns the builder registered for venueID, or ErrNoBuilder.
func (r *Registry) Get(venueID string) (Builder, error) {
	b, ok := r.builders[venueID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoBuilder, venueID)
	}
	return b, nil
}

// PoolsForPair fans out PoolsForPair across every registered builder and
// returns the combined set of quotable (venue, pool) references for
// tokenA/tokenB. Order is not guaranteed; callers that need determinism
// sort the result themselves (spec §4.2 leaves ordering to the search).
func (r *Registry) PoolsForPair(tokenA, tokenB string) []PoolRef {
	var refs []PoolRef
	for venueID, b := range r.builders {
		for _, poolID := range b.PoolsForPair(tokenA, tokenB) {
			refs = append(refs, PoolRef{Venue: venueID, PoolID: poolID})
		}
	}
	return refs
}

// Venues returns the set of registered venue identifiers, for logging and
// startup diagnostics.
func (r *Registry) Venues() []string {
	ids := make([]string, 0, len(r.builders))
	for id := range r.builders {
		ids = append(ids, id)
	}
	return ids
}
