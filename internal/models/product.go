package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Product is a catalog item observed from the affiliate API.
// Fields are tagged for both DB scanning and JSON serialization. Pointer and
// nil-able fields are optional: nil means "not observed" and never overwrites
// a stored value on upsert.
type Product struct {
	ID                   int64      `db:"id" json:"id,omitempty"`
	ExternalID           string     `db:"shopee_id" json:"itemId"`
	Name                 string     `db:"name" json:"productName"`
	Price                float64    `db:"price" json:"price"`
	OriginalPrice        float64    `db:"original_price" json:"originalPrice"`
	CategoryID           int64      `db:"category_id" json:"categoryId"`
	ShopID               int64      `db:"shop_id" json:"shopId"`
	ShopName             string     `db:"shop_name" json:"shopName"`
	ShopType             string     `db:"shop_type" json:"shopType"`
	Stock                int64      `db:"stock" json:"stock"`
	CommissionRate       float64    `db:"commission_rate" json:"commissionRate"`
	SellerCommissionRate float64    `db:"seller_commission_rate" json:"sellerCommissionRate"`
	ShopeeCommissionRate float64    `db:"shopee_commission_rate" json:"shopeeCommissionRate"`
	Sales                int64      `db:"sales" json:"sales"`
	RatingStar           float64    `db:"rating_star" json:"ratingStar"`
	PriceDiscountRate    float64    `db:"price_discount_rate" json:"priceDiscountRate"`
	ImageURL             string     `db:"image_url" json:"imageUrl"`
	ItemStatus           string     `db:"item_status" json:"itemStatus"`
	Discount             string     `db:"discount" json:"discount"`
	OfferLink            string     `db:"offer_link" json:"offerLink"`
	ProductLink          string     `db:"product_link" json:"productLink"`
	AffiliateLink        string     `db:"affiliate_link" json:"affiliateLink"`
	ShortLink            *string    `db:"short_link" json:"shortLink,omitempty"`
	SubIDs               StringList `db:"sub_ids" json:"subIds,omitempty"`
	PeriodStartTime      *time.Time `db:"period_start_time" json:"periodStartTime,omitempty"`
	PeriodEndTime        *time.Time `db:"period_end_time" json:"periodEndTime,omitempty"`
	Metadata             Metadata   `db:"product_metadata" json:"metadata,omitempty"`
	CreatedAt            time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updatedAt"`

	// Set by the reconciler, never persisted.
	ExistsInStore bool `db:"-" json:"existsInDatabase"`
}

// ScoredProduct is a Product with its batch-relative hot score.
type ScoredProduct struct {
	Product
	HotScore float64 `json:"hotScore"`
}

// AffiliateData is the optional affiliate extension attached on save.
type AffiliateData struct {
	ShortLink string   `json:"shortLink"`
	SubIDs    []string `json:"subIds"`
}

// CategoryUpdate reassigns a stored product to a category.
type CategoryUpdate struct {
	ExternalID string `json:"itemId"`
	CategoryID int64  `json:"categoryId"`
}

// StringList is stored as a JSON array; nil maps to NULL.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(value interface{}) error {
	raw, err := scanJSON(value)
	if err != nil || raw == nil {
		*l = nil
		return err
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("scan sub_ids: %w", err)
	}
	*l = out
	return nil
}

// Metadata holds source fields that have no dedicated column.
type Metadata map[string]interface{}

// Value implements driver.Valuer.
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(map[string]interface{}(m))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *Metadata) Scan(value interface{}) error {
	raw, err := scanJSON(value)
	if err != nil || raw == nil {
		*m = nil
		return err
	}
	out := make(map[string]interface{})
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("scan product_metadata: %w", err)
	}
	*m = out
	return nil
}

func scanJSON(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported JSON column type %T", value)
	}
}
