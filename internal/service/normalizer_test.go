package service

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinnell/analytics_api/internal/models"
	"github.com/sentinnell/analytics_api/internal/utils"
)

func TestNormalizeProduct_FullRecord(t *testing.T) {
	raw := map[string]interface{}{
		"itemId":            int64(22334455),
		"productName":       "  Fone Bluetooth  ",
		"priceMin":          "49.90",
		"priceMax":          79.9,
		"productCatIds":     []interface{}{100012, 100034},
		"shopId":            "9988",
		"shopName":          "Loja Oficial",
		"shopType":          []interface{}{1, 2},
		"stock":             "12.0",
		"commissionRate":    "0.12",
		"sales":             1520,
		"ratingStar":        "4.8",
		"priceDiscountRate": 0.37,
		"imageUrl":          "https://cf.example/img.jpg",
		"offerLink":         "https://s.example/o/1",
		"productLink":       "https://s.example/p/1",
		"shortLink":         "https://s.example/x",
		"subIds":            []interface{}{"home", "banner"},
		"periodStartTime":   int64(1735689600),
		"periodEndTime":     "1738368000000",
		"brand":             "Acme",
	}

	p := NormalizeProduct(raw)
	assert.Equal(t, "22334455", p.ExternalID)
	assert.Equal(t, "Fone Bluetooth", p.Name)
	assert.Equal(t, 49.9, p.Price)
	assert.Equal(t, 79.9, p.OriginalPrice)
	assert.Equal(t, int64(100012), p.CategoryID)
	assert.Equal(t, int64(9988), p.ShopID)
	assert.Equal(t, "1,2", p.ShopType)
	assert.Equal(t, int64(12), p.Stock)
	assert.Equal(t, 0.12, p.CommissionRate)
	assert.Equal(t, int64(1520), p.Sales)
	assert.Equal(t, 4.8, p.RatingStar)
	assert.Equal(t, 0.37, p.PriceDiscountRate)
	require.NotNil(t, p.ShortLink)
	assert.Equal(t, "https://s.example/x", *p.ShortLink)
	assert.Equal(t, models.StringList{"home", "banner"}, p.SubIDs)
	require.NotNil(t, p.PeriodStartTime)
	assert.True(t, p.PeriodStartTime.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
	require.NotNil(t, p.PeriodEndTime)
	assert.True(t, p.PeriodEndTime.Equal(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, models.Metadata{"brand": "Acme"}, p.Metadata)
}

func TestNormalizeProduct_Defaults(t *testing.T) {
	p := NormalizeProduct(map[string]interface{}{})

	assert.Empty(t, p.ExternalID)
	assert.Empty(t, p.Name)
	assert.Zero(t, p.Price)
	assert.Zero(t, p.Sales)
	assert.Zero(t, p.CategoryID)
	assert.Nil(t, p.ShortLink)
	assert.Nil(t, p.SubIDs)
	assert.Nil(t, p.PeriodStartTime)
	assert.Nil(t, p.PeriodEndTime)
	assert.Nil(t, p.Metadata)

	assert.Equal(t, p, NormalizeProduct(nil))
}

func TestNormalizeProduct_MalformedValuesDegrade(t *testing.T) {
	tests := []struct {
		name  string
		raw   map[string]interface{}
		check func(t *testing.T, p models.Product)
	}{
		{
			name: "negative numbers clamp to zero",
			raw:  map[string]interface{}{"commissionRate": -0.5, "sales": -10, "priceMin": "-3"},
			check: func(t *testing.T, p models.Product) {
				assert.Zero(t, p.CommissionRate)
				assert.Zero(t, p.Sales)
				assert.Zero(t, p.Price)
			},
		},
		{
			name: "garbage strings",
			raw:  map[string]interface{}{"ratingStar": "n/a", "sales": "lots", "shopId": map[string]interface{}{"x": 1}},
			check: func(t *testing.T, p models.Product) {
				assert.Zero(t, p.RatingStar)
				assert.Zero(t, p.Sales)
				assert.Zero(t, p.ShopID)
			},
		},
		{
			name: "non-finite floats",
			raw:  map[string]interface{}{"priceDiscountRate": math.NaN(), "price": math.Inf(1)},
			check: func(t *testing.T, p models.Product) {
				assert.Zero(t, p.PriceDiscountRate)
				assert.Zero(t, p.Price)
			},
		},
		{
			name: "rating above five is capped",
			raw:  map[string]interface{}{"ratingStar": 7.5},
			check: func(t *testing.T, p models.Product) {
				assert.Equal(t, 5.0, p.RatingStar)
			},
		},
		{
			name: "rates above one are kept",
			raw:  map[string]interface{}{"commissionRate": 1.5},
			check: func(t *testing.T, p models.Product) {
				assert.Equal(t, 1.5, p.CommissionRate)
			},
		},
		{
			name: "decimal sales truncate",
			raw:  map[string]interface{}{"sales": "120.7"},
			check: func(t *testing.T, p models.Product) {
				assert.Equal(t, int64(120), p.Sales)
			},
		},
		{
			name: "category falls back to categoryId",
			raw:  map[string]interface{}{"productCatIds": []interface{}{}, "categoryId": "77"},
			check: func(t *testing.T, p models.Product) {
				assert.Equal(t, int64(77), p.CategoryID)
			},
		},
		{
			name: "blank optional strings stay absent",
			raw:  map[string]interface{}{"shortLink": "   ", "periodStartTime": "", "periodEndTime": 0},
			check: func(t *testing.T, p models.Product) {
				assert.Nil(t, p.ShortLink)
				assert.Nil(t, p.PeriodStartTime)
				assert.Nil(t, p.PeriodEndTime)
			},
		},
		{
			name: "date string period",
			raw:  map[string]interface{}{"periodStartTime": "2025-06-01T12:00:00Z"},
			check: func(t *testing.T, p models.Product) {
				require.NotNil(t, p.PeriodStartTime)
				assert.True(t, p.PeriodStartTime.Equal(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				tt.check(t, NormalizeProduct(tt.raw))
			})
		})
	}
}

func TestNormalizeProduct_JSONNumbers(t *testing.T) {
	dec := json.NewDecoder(strings.NewReader(`{"itemId": 123456789012, "sales": 88, "commissionRate": 0.07, "metadata": {"origin": "feed"}}`))
	dec.UseNumber()
	var raw map[string]interface{}
	require.NoError(t, dec.Decode(&raw))

	p := NormalizeProduct(raw)
	assert.Equal(t, "123456789012", p.ExternalID)
	assert.Equal(t, int64(88), p.Sales)
	assert.Equal(t, 0.07, p.CommissionRate)
	assert.Equal(t, models.Metadata{"origin": "feed"}, p.Metadata)
}

func TestNormalizeProducts_PreservesOrder(t *testing.T) {
	out := NormalizeProducts([]map[string]interface{}{
		{"itemId": "b"}, {"itemId": "a"}, {"itemId": "c"},
	})
	require.Len(t, out, 3)
	assert.Equal(t, "b", out[0].ExternalID)
	assert.Equal(t, "a", out[1].ExternalID)
	assert.Equal(t, "c", out[2].ExternalID)
}

func TestValidateForPersist(t *testing.T) {
	assert.NoError(t, ValidateForPersist(&models.Product{ExternalID: "1"}))
	assert.ErrorIs(t, ValidateForPersist(&models.Product{}), utils.ErrValidation)
	assert.ErrorIs(t, ValidateForPersist(&models.Product{ExternalID: "0"}), utils.ErrValidation)
	assert.ErrorIs(t, ValidateForPersist(&models.Product{ExternalID: "  "}), utils.ErrValidation)
}

func TestApplyAffiliate(t *testing.T) {
	p := &models.Product{ExternalID: "1"}
	ApplyAffiliate(p, nil)
	assert.Nil(t, p.ShortLink)

	subIDs := []string{"a", "b"}
	ApplyAffiliate(p, &models.AffiliateData{ShortLink: "https://s.example/q", SubIDs: subIDs})
	require.NotNil(t, p.ShortLink)
	assert.Equal(t, "https://s.example/q", *p.ShortLink)
	assert.Equal(t, models.StringList{"a", "b"}, p.SubIDs)

	subIDs[0] = "changed"
	assert.Equal(t, "a", p.SubIDs[0])
}
