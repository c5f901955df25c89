package service

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/sentinnell/analytics_api/internal/models"
	"github.com/sentinnell/analytics_api/internal/utils"
)

// modeledKeys are source keys mapped onto Product columns. Anything else in
// a raw record is kept in Metadata.
var modeledKeys = map[string]struct{}{
	"itemId": {}, "productName": {}, "priceMin": {}, "priceMax": {}, "price": {},
	"productCatIds": {}, "categoryId": {}, "shopId": {}, "shopName": {}, "shopType": {},
	"stock": {}, "commissionRate": {}, "sellerCommissionRate": {}, "shopeeCommissionRate": {},
	"sales": {}, "ratingStar": {}, "priceDiscountRate": {}, "imageUrl": {}, "itemStatus": {},
	"discount": {}, "offerLink": {}, "productLink": {}, "affiliateLink": {}, "shortLink": {},
	"subIds": {}, "periodStartTime": {}, "periodEndTime": {}, "metadata": {},
	"existsInDatabase": {}, "hotScore": {},
}

// NormalizeProduct converts a raw affiliate API record into a Product. It never
// fails: missing or malformed values become zero values, optional values stay
// nil, and negative or non-finite numbers are clamped to zero.
func NormalizeProduct(raw map[string]interface{}) models.Product {
	p := models.Product{
		ExternalID:           toString(raw["itemId"]),
		Name:                 toString(raw["productName"]),
		Price:                toRate(firstPresent(raw, "priceMin", "price")),
		OriginalPrice:        toRate(raw["priceMax"]),
		CategoryID:           categoryID(raw),
		ShopID:               toCount(raw["shopId"]),
		ShopName:             toString(raw["shopName"]),
		ShopType:             joinList(raw["shopType"]),
		Stock:                toCount(raw["stock"]),
		CommissionRate:       toRate(raw["commissionRate"]),
		SellerCommissionRate: toRate(raw["sellerCommissionRate"]),
		ShopeeCommissionRate: toRate(raw["shopeeCommissionRate"]),
		Sales:                toCount(raw["sales"]),
		RatingStar:           math.Min(toRate(raw["ratingStar"]), 5),
		PriceDiscountRate:    toRate(raw["priceDiscountRate"]),
		ImageURL:             toString(raw["imageUrl"]),
		ItemStatus:           toString(raw["itemStatus"]),
		Discount:             toString(raw["discount"]),
		OfferLink:            toString(raw["offerLink"]),
		ProductLink:          toString(raw["productLink"]),
		AffiliateLink:        toString(raw["affiliateLink"]),
		ShortLink:            optionalString(raw["shortLink"]),
		SubIDs:               optionalList(raw["subIds"]),
		PeriodStartTime:      toTime(raw["periodStartTime"]),
		PeriodEndTime:        toTime(raw["periodEndTime"]),
		Metadata:             collectMetadata(raw),
	}
	return p
}

// NormalizeProducts normalizes a batch, preserving order.
func NormalizeProducts(raws []map[string]interface{}) []models.Product {
	out := make([]models.Product, 0, len(raws))
	for _, raw := range raws {
		out = append(out, NormalizeProduct(raw))
	}
	return out
}

// ValidateForPersist reports whether p may be stored.
func ValidateForPersist(p *models.Product) error {
	id := strings.TrimSpace(p.ExternalID)
	if id == "" || id == "0" {
		return fmt.Errorf("%w: product has no itemId", utils.ErrValidation)
	}
	return nil
}

// ApplyAffiliate attaches the affiliate extension to p.
func ApplyAffiliate(p *models.Product, data *models.AffiliateData) {
	if data == nil {
		return
	}
	if data.ShortLink != "" {
		link := data.ShortLink
		p.ShortLink = &link
	}
	if data.SubIDs != nil {
		p.SubIDs = append(models.StringList{}, data.SubIDs...)
	}
}

func firstPresent(raw map[string]interface{}, keys ...string) interface{} {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func toString(v interface{}) string {
	if v == nil {
		return ""
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func optionalString(v interface{}) *string {
	s := toString(v)
	if s == "" {
		return nil
	}
	return &s
}

// toRate parses a non-negative finite float.
func toRate(v interface{}) float64 {
	if v == nil {
		return 0
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}

// toCount parses a non-negative integer, truncating decimals.
func toCount(v interface{}) int64 {
	if v == nil {
		return 0
	}
	if s, ok := v.(string); ok {
		if n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return max(n, 0)
		}
	}
	n, err := cast.ToInt64E(v)
	if err != nil {
		f := toRate(v)
		if f > math.MaxInt64 {
			return 0
		}
		return int64(f)
	}
	return max(n, 0)
}

func categoryID(raw map[string]interface{}) int64 {
	if ids, err := cast.ToSliceE(raw["productCatIds"]); err == nil && len(ids) > 0 {
		return toCount(ids[0])
	}
	return toCount(raw["categoryId"])
}

func joinList(v interface{}) string {
	switch v.(type) {
	case []interface{}, []string, []int, []float64:
		return strings.Join(cast.ToStringSlice(v), ",")
	default:
		return toString(v)
	}
}

func optionalList(v interface{}) models.StringList {
	if v == nil {
		return nil
	}
	list, err := cast.ToStringSliceE(v)
	if err != nil {
		return nil
	}
	return models.StringList(list)
}

// toTime accepts unix seconds, unix milliseconds, or a date string.
func toTime(v interface{}) *time.Time {
	if v == nil {
		return nil
	}
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		if _, err := strconv.ParseInt(s, 10, 64); err != nil {
			t, err := cast.ToTimeE(s)
			if err != nil || t.IsZero() {
				return nil
			}
			t = t.UTC()
			return &t
		}
	}
	n := toCount(v)
	if n == 0 {
		return nil
	}
	var t time.Time
	if n > 1e12 {
		t = time.UnixMilli(n).UTC()
	} else {
		t = time.Unix(n, 0).UTC()
	}
	return &t
}

func collectMetadata(raw map[string]interface{}) models.Metadata {
	md := models.Metadata{}
	if nested, err := cast.ToStringMapE(raw["metadata"]); err == nil {
		for k, v := range nested {
			md[k] = v
		}
	}
	for k, v := range raw {
		if _, ok := modeledKeys[k]; ok {
			continue
		}
		md[k] = v
	}
	if len(md) == 0 {
		return nil
	}
	return md
}
