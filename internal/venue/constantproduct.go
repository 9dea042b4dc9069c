package venue

import "fmt"

// Pool is the cached state for one constant-product (x*y=k) pool. Real
// venues keep far richer cached state (concentrated liquidity ticks,
// stable-swap curves); ConstantProductBuilder is the reference
// implementation used for tests and local/paper-mode runs where no real
// on-chain venue adapter is wired in.
type Pool struct {
	ID           string
	TokenA       string
	TokenB       string
	ReserveA     float64
	ReserveB     float64
	FeeRate      float64
}

// ConstantProductBuilder implements Builder over a fixed, in-memory set of
// constant-product pools. Pool state is immutable after construction;
// this builder never refreshes it.
type ConstantProductBuilder struct {
	programID string
	pools     map[string]Pool
}

// NewConstantProductBuilder indexes pools by ID for O(1) lookup.
func NewConstantProductBuilder(programID string, pools []Pool) *ConstantProductBuilder {
	b := &ConstantProductBuilder{programID: programID, pools: make(map[string]Pool, len(pools))}
	for _, p := range pools {
		b.pools[p.ID] = p
	}
	return b
}

func (b *ConstantProductBuilder) ProgramIdentifier() string { return b.programID }

// Quote applies the constant-product formula with fee deduction, never
// touching I/O: out = (reserveOut * inAfterFee) / (reserveIn + inAfterFee).
func (b *ConstantProductBuilder) Quote(pool string, inputToken string, inputAmount float64) (float64, error) {
	p, ok := b.pools[pool]
	if !ok {
		return 0, fmt.Errorf("%w: unknown pool %s", ErrQuoteRefused, pool)
	}

	var reserveIn, reserveOut float64
	switch inputToken {
	case p.TokenA:
		reserveIn, reserveOut = p.ReserveA, p.ReserveB
	case p.TokenB:
		reserveIn, reserveOut = p.ReserveB, p.ReserveA
	default:
		return 0, fmt.Errorf("%w: token %s not in pool %s", ErrQuoteRefused, inputToken, pool)
	}

	if inputAmount <= 0 || reserveIn <= 0 || reserveOut <= 0 {
		return 0, fmt.Errorf("%w: degenerate pool state for %s", ErrQuoteRefused, pool)
	}

	inAfterFee := inputAmount * (1 - p.FeeRate)
	out := (reserveOut * inAfterFee) / (reserveIn + inAfterFee)
	if out <= 0 || out >= reserveOut {
		return 0, fmt.Errorf("%w: quote out of range for %s", ErrQuoteRefused, pool)
	}
	return out, nil
}

// BuildSwap returns a single opaque instruction describing the swap. No
// real wallet signing happens here — that is the external RPC/wallet
// collaborator's job (spec §1); this only shapes the instruction payload
// the core hands off.
func (b *ConstantProductBuilder) BuildSwap(pool string, inputToken string, inputAmount float64, minOutput float64, wallet string) ([]Instruction, error) {
	if _, ok := b.pools[pool]; !ok {
		return nil, fmt.Errorf("%w: unknown pool %s", ErrQuoteRefused, pool)
	}
	payload := fmt.Sprintf("swap:%s:%s:%.9f:min=%.9f:wallet=%s", pool, inputToken, inputAmount, minOutput, wallet)
	return []Instruction{Instruction(payload)}, nil
}

// FeeRateOf returns the published fee rate for pool, and false if the pool
// is unknown (the cost model then falls back to its own default).
func (b *ConstantProductBuilder) FeeRateOf(pool string) (float64, bool) {
	p, ok := b.pools[pool]
	if !ok {
		return 0, false
	}
	return p.FeeRate, true
}

// PoolsForPair returns every pool ID in this builder that trades
// tokenA/tokenB, checked in either token order.
func (b *ConstantProductBuilder) PoolsForPair(tokenA, tokenB string) []string {
	var ids []string
	for _, p := range b.pools {
		if (p.TokenA == tokenA && p.TokenB == tokenB) || (p.TokenA == tokenB && p.TokenB == tokenA) {
			ids = append(ids, p.ID)
		}
	}
	return ids
}
