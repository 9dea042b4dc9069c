package venue

import (
	"encoding/json"
	"fmt"
	"os"
)

// poolFile is the on-disk shape of the injected pool set (spec's
// Non-goal: "discovery of new pools at runtime — pool set is injected at
// start"). One venue section per AMM program, constant-product only —
// the reference ConstantProductBuilder is the only Builder this repo
// ships; a real deployment would add other Builder implementations for
// order-book or stable-swap venues behind the same registry.
type poolFile struct {
	Venues []struct {
		ProgramID string `json:"programId"`
		FeeRate   float64 `json:"feeRate"`
		Pools     []struct {
			ID       string  `json:"id"`
			TokenA   string  `json:"tokenA"`
			TokenB   string  `json:"tokenB"`
			ReserveA float64 `json:"reserveA"`
			ReserveB float64 `json:"reserveB"`
		} `json:"pools"`
	} `json:"venues"`
}

// LoadRegistry reads the injected pool-set file at path and builds one
// ConstantProductBuilder per venue section, registered under its
// programId.
func LoadRegistry(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("venue: reading pool file: %w", err)
	}

	var pf poolFile
	if err := json.Unmarshal(raw, &pf); err != nil {
		return nil, fmt.Errorf("venue: parsing pool file: %w", err)
	}

	builders := make([]Builder, 0, len(pf.Venues))
	for _, v := range pf.Venues {
		pools := make([]Pool, 0, len(v.Pools))
		for _, p := range v.Pools {
			pools = append(pools, Pool{
				ID:       p.ID,
				TokenA:   p.TokenA,
				TokenB:   p.TokenB,
				ReserveA: p.ReserveA,
				ReserveB: p.ReserveB,
				FeeRate:  v.FeeRate,
			})
		}
		builders = append(builders, NewConstantProductBuilder(v.ProgramID, pools))
	}

	return NewRegistry(builders...), nil
}
