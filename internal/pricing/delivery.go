package pricing

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/example/comanda/internal/models"
)

type FeeOutcome string

const (
	// FeeMatched means a registered fee applies.
	FeeMatched FeeOutcome = "matched"
	// FeeDeferred means the order proceeds with fee 0 and the fee is
	// confirmed with the customer out-of-band.
	FeeDeferred FeeOutcome = "deferred"
)

const feeToConfirmNotice = "delivery fee to be confirmed"

// FeeResolution is the outcome of a delivery fee lookup.
type FeeResolution struct {
	Outcome       FeeOutcome          `json:"outcome"`
	Neighborhood  string              `json:"neighborhood,omitempty"`
	Fee           decimal.Decimal     `json:"fee"`
	MinOrderValue decimal.NullDecimal `json:"min_order_value"`
	EstimatedTime string              `json:"estimated_time,omitempty"`
	Notice        string              `json:"notice,omitempty"`
}

// Pending reports whether the fee still has to be confirmed.
func (r FeeResolution) Pending() bool {
	return r.Outcome == FeeDeferred
}

// DeferredFee is used when no fee record matched or the lookup failed.
func DeferredFee() FeeResolution {
	return FeeResolution{
		Outcome: FeeDeferred,
		Fee:     decimal.Zero,
		Notice:  feeToConfirmNotice,
	}
}

// NormalizeNeighborhood lowercases, trims and strips accents so "São José"
// and "sao jose" compare equal.
func NormalizeNeighborhood(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(strings.ToLower(out)), " ")
}

// ResolveDeliveryFee matches neighborhood against the active fees of a
// restaurant. An exact match wins; otherwise the longest registered name
// that contains, or is contained in, the query is used.
func ResolveDeliveryFee(neighborhood string, fees []models.DeliveryFee) FeeResolution {
	query := NormalizeNeighborhood(neighborhood)
	if query == "" {
		return DeferredFee()
	}

	var best *models.DeliveryFee
	bestLen := -1
	for i := range fees {
		f := &fees[i]
		if !f.IsActive {
			continue
		}
		name := NormalizeNeighborhood(f.Neighborhood)
		if name == "" {
			continue
		}
		if name == query {
			best = f
			break
		}
		if (strings.Contains(name, query) || strings.Contains(query, name)) && len(name) > bestLen {
			best = f
			bestLen = len(name)
		}
	}

	if best == nil {
		return DeferredFee()
	}
	return FeeResolution{
		Outcome:       FeeMatched,
		Neighborhood:  best.Neighborhood,
		Fee:           Round2(best.Fee),
		MinOrderValue: best.MinOrderValue,
		EstimatedTime: best.EstimatedTime,
	}
}
