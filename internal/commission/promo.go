package commission

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DiscountType - тип скидки промокода.
type DiscountType string

const (
	DiscountPercent DiscountType = "percent" // Процент от комиссии
	DiscountFlat    DiscountType = "flat"    // Фиксированная сумма
)

// PromoError - промокод не может быть применен.
type PromoError struct {
	Code   string
	Reason string
}

func (e *PromoError) Error() string {
	return fmt.Sprintf("promo code %q: %s", e.Code, e.Reason)
}

// Promo - промокод на скидку с комиссии платформы.
type Promo struct {
	Code            string          `json:"code"`
	DiscountType    DiscountType    `json:"discountType"`
	Value           decimal.Decimal `json:"value"`
	MaxDiscount     decimal.Decimal `json:"maxDiscount"`
	MinProjectValue decimal.Decimal `json:"minProjectValue"`
	ValidFrom       *time.Time      `json:"validFrom,omitempty"`
	ValidUntil      *time.Time      `json:"validUntil,omitempty"`
	UsageLimit      int             `json:"usageLimit"`
	UsedCount       int             `json:"usedCount"`
	Active          bool            `json:"active"`
}

// Eligible проверяет, применим ли промокод к проекту в момент at.
func (p *Promo) Eligible(value decimal.Decimal, at time.Time) error {
	switch {
	case !p.Active:
		return &PromoError{Code: p.Code, Reason: "is not active"}
	case p.ValidFrom != nil && at.Before(*p.ValidFrom):
		return &PromoError{Code: p.Code, Reason: "is not valid yet"}
	case p.ValidUntil != nil && !at.Before(*p.ValidUntil):
		return &PromoError{Code: p.Code, Reason: "has expired"}
	case p.UsageLimit > 0 && p.UsedCount >= p.UsageLimit:
		return &PromoError{Code: p.Code, Reason: "usage limit reached"}
	case value.LessThan(p.MinProjectValue):
		return &PromoError{Code: p.Code, Reason: fmt.Sprintf("requires project value of at least %s", p.MinProjectValue.StringFixed(2))}
	case p.Value.IsNegative():
		return &PromoError{Code: p.Code, Reason: "has a negative discount"}
	}
	if p.DiscountType != DiscountPercent && p.DiscountType != DiscountFlat {
		return &PromoError{Code: p.Code, Reason: "has an unknown discount type"}
	}
	return nil
}

// Discount возвращает размер скидки для базовой комиссии, с учетом MaxDiscount.
func (p *Promo) Discount(baseCommission decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal
	switch p.DiscountType {
	case DiscountPercent:
		discount = round2(baseCommission.Mul(p.Value).Div(hundred))
	case DiscountFlat:
		discount = round2(p.Value)
	}
	if p.MaxDiscount.IsPositive() && discount.GreaterThan(p.MaxDiscount) {
		discount = round2(p.MaxDiscount)
	}
	return discount
}
