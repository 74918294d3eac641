package providers

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SearchResponse is the subset of a google_flights search result the
// calendar needs.
type SearchResponse struct {
	BestFlights  []Offer `json:"best_flights"`
	OtherFlights []Offer `json:"other_flights"`
	Error        string  `json:"error,omitempty"`
}

type Offer struct {
	Price         Price  `json:"price"`
	TotalDuration int    `json:"total_duration"`
	Type          string `json:"type"`
}

// Price is an offer amount. The provider sends a bare number; the object
// form {"raw": n} is accepted too. Valid is false when the offer carries
// no amount.
type Price struct {
	Amount float64
	Valid  bool
}

func (p *Price) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*p = Price{}
		return nil
	}
	if b[0] == '{' {
		var obj struct {
			Raw *float64 `json:"raw"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return fmt.Errorf("decode price object: %w", err)
		}
		if obj.Raw == nil {
			*p = Price{}
			return nil
		}
		*p = Price{Amount: *obj.Raw, Valid: true}
		return nil
	}
	var n float64
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("decode price: %w", err)
	}
	*p = Price{Amount: n, Valid: true}
	return nil
}

func (p Price) MarshalJSON() ([]byte, error) {
	if !p.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(p.Amount)
}

// SelectOffer picks the representative offer: the first best flight, then
// the first other flight. It returns nil when neither list has entries.
func SelectOffer(resp *SearchResponse) *Offer {
	if resp == nil {
		return nil
	}
	if len(resp.BestFlights) > 0 {
		return &resp.BestFlights[0]
	}
	if len(resp.OtherFlights) > 0 {
		return &resp.OtherFlights[0]
	}
	return nil
}

// SelectPrice returns the representative offer's amount as-is. ok is false
// when no offer (or no priced offer) was found; that is not an error.
func SelectPrice(resp *SearchResponse) (price float64, ok bool) {
	o := SelectOffer(resp)
	if o == nil || !o.Price.Valid {
		return 0, false
	}
	return o.Price.Amount, true
}
