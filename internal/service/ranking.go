package service

import (
	"math"
	"sort"

	"github.com/sentinnell/analytics_api/internal/models"
)

// DefaultMinSales is the sales threshold below which products are not ranked.
const DefaultMinSales = 50

// Normalization floors. A batch maximum below its floor is replaced by it.
const (
	salesFloor      = 1.0
	commissionFloor = 0.01
	discountFloor   = 1.0
	ratingFloor     = 5.0
)

// Weights combine the three normalized signals. They are not required to
// sum to 1; callers own their coherence.
type Weights struct {
	Sales      float64
	Commission float64
	PriceValue float64
}

// DefaultWeights favours sales volume.
var DefaultWeights = Weights{Sales: 0.6, Commission: 0.2, PriceValue: 0.2}

// RankOptions parameterize Rank.
type RankOptions struct {
	MinSales int64
	Weights  Weights
}

// DefaultRankOptions returns min sales 50 and weights 0.6/0.2/0.2.
func DefaultRankOptions() RankOptions {
	return RankOptions{MinSales: DefaultMinSales, Weights: DefaultWeights}
}

// Rank scores records and returns them hottest first; ties keep input order.
// Products below MinSales are dropped, not scored zero.
//
// Scores are normalized against the maxima of the surviving batch, so a hot
// score only orders products within one result set. Scores from different
// searches are not comparable, and the ranking consumers depend on exactly
// that batch-relative behaviour.
func Rank(records []models.Product, opts RankOptions) []models.ScoredProduct {
	survivors := make([]models.Product, 0, len(records))
	for _, r := range records {
		if r.Sales >= opts.MinSales {
			survivors = append(survivors, r)
		}
	}
	if len(survivors) == 0 {
		return []models.ScoredProduct{}
	}

	var maxSales, maxCommission, maxDiscount, maxRating float64
	for _, p := range survivors {
		maxSales = math.Max(maxSales, float64(p.Sales))
		maxCommission = math.Max(maxCommission, p.CommissionRate)
		maxDiscount = math.Max(maxDiscount, p.PriceDiscountRate)
		maxRating = math.Max(maxRating, p.RatingStar)
	}
	maxSales = math.Max(maxSales, salesFloor)
	maxCommission = math.Max(maxCommission, commissionFloor)
	maxDiscount = math.Max(maxDiscount, discountFloor)
	maxRating = math.Max(maxRating, ratingFloor)

	w := opts.Weights
	scored := make([]models.ScoredProduct, 0, len(survivors))
	for _, p := range survivors {
		salesScore := float64(p.Sales) / maxSales
		commissionScore := p.CommissionRate / maxCommission
		// float64() conversions keep each product rounded on its own so the
		// compiler cannot fuse them into FMA; scores then match on every arch.
		priceValueScore := float64(0.7*(p.PriceDiscountRate/maxDiscount)) + float64(0.3*(p.RatingStar/maxRating))
		total := float64(w.Sales*salesScore) + float64(w.Commission*commissionScore) + float64(w.PriceValue*priceValueScore)

		scored = append(scored, models.ScoredProduct{
			Product:  p,
			HotScore: roundTo2(100 * total),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].HotScore > scored[j].HotScore
	})
	return scored
}

func roundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}
