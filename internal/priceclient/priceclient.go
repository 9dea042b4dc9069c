// Package priceclient fetches raw price observations from the external
// Price Store over HTTP (spec §6). It only knows the wire shape; L1-L4
// filtering happens downstream in internal/filter.
package priceclient

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rawblock/triarb-engine/pkg/models"
)

// wireObservation mirrors the Price Store's JSON field names, which don't
// match the internal model's Go-idiomatic ones.
type wireObservation struct {
	Token        *string  `json:"token"`
	Dex          *string  `json:"dex"`
	PoolAddress  *string  `json:"pool_address"`
	PriceSOL     *float64 `json:"price_sol"`
	Volume24h    *float64 `json:"volume_24h"`
	SwapCount24h *int64   `json:"swap_count_24h"`
	Timestamp    *int64   `json:"timestamp"` // unix seconds
}

// Client fetches the current observation set.
type Client struct {
	url    string
	client *http.Client
}

// New builds a client with a sane per-request timeout; the caller also
// threads a context.Context through Fetch for tick-level cancellation.
func New(url string, timeout time.Duration) *Client {
	return &Client{url: url, client: &http.Client{Timeout: timeout}}
}

// Fetch retrieves the raw observation array and converts each entry to the
// internal model. Entries missing any required field are dropped here
// (spec §6's "any field absent -> record dropped by the filter's
// malformed-record guard") rather than forwarded for the filter to reject,
// since a truly absent field can't even be represented in the model.
func (c *Client) Fetch(ctx context.Context) ([]models.PriceObservation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var wire []wireObservation
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, err
	}

	out := make([]models.PriceObservation, 0, len(wire))
	for _, w := range wire {
		o, ok := convert(w)
		if !ok {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func convert(w wireObservation) (models.PriceObservation, bool) {
	if w.Token == nil || w.Dex == nil || w.PoolAddress == nil || w.PriceSOL == nil || w.Volume24h == nil || w.SwapCount24h == nil || w.Timestamp == nil {
		return models.PriceObservation{}, false
	}
	return models.PriceObservation{
		Token:        *w.Token,
		Venue:        *w.Dex,
		PoolID:       *w.PoolAddress,
		PriceBase:    *w.PriceSOL,
		Volume24h:    *w.Volume24h,
		SwapCount24h: *w.SwapCount24h,
		ObservedAt:   time.Unix(*w.Timestamp, 0),
	}, true
}
