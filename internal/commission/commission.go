// Package commission считает комиссию платформы и выплату исполнителю.
//
// Пакет не хранит состояния и не обращается к внешним системам: одинаковые
// входные данные всегда дают одинаковый результат. Каждое денежное поле
// округляется до копеек ровно один раз.
package commission

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type (
	Method string // Способ расчета с исполнителем
	Tier   string // Тариф по стоимости проекта
)

const (
	MethodOnline Method = "online" // Оплата через платежный шлюз
	MethodDirect Method = "direct" // Прямой расчет, пониженная ставка

	TierNone       Tier = "none"
	TierStandard   Tier = "standard"
	TierPremium    Tier = "premium"
	TierEnterprise Tier = "enterprise"
)

var (
	ErrNegativeValue = errors.New("project value must not be negative")
	ErrUnknownMethod = errors.New("unknown payment method")
)

var hundred = decimal.NewFromInt(100)

// Band - одна ступень тарифной сетки. UpTo включительно; нулевой UpTo означает верхнюю ступень без ограничения.
type Band struct {
	Tier        Tier
	UpTo        decimal.Decimal
	Rate        decimal.Decimal
	PlatformFee decimal.Decimal
}

// Schedule - тарифные сетки для каждого способа расчета.
type Schedule struct {
	Bands map[Method][]Band
}

// Breakdown - результат расчета комиссии. Встраивается в договор и платеж.
type Breakdown struct {
	ProjectValue     decimal.Decimal `json:"projectValue"`
	Method           Method          `json:"method"`
	Tier             Tier            `json:"tier"`
	Rate             decimal.Decimal `json:"rate"`
	BaseCommission   decimal.Decimal `json:"baseCommission"`
	PromoCode        string          `json:"promoCode,omitempty"`
	PromoDiscount    decimal.Decimal `json:"promoDiscount"`
	CommissionAmount decimal.Decimal `json:"commissionAmount"`
	PlatformFee      decimal.Decimal `json:"platformFee"`
	TotalDeduction   decimal.Decimal `json:"totalDeduction"`
	VendorPayout     decimal.Decimal `json:"vendorPayout"`
}

// DefaultSchedule возвращает действующую тарифную сетку платформы.
func DefaultSchedule() Schedule {
	fee := decimal.NewFromInt(500)
	return Schedule{Bands: map[Method][]Band{
		MethodOnline: {
			{Tier: TierStandard, UpTo: decimal.NewFromInt(500000), Rate: decimal.NewFromInt(12), PlatformFee: fee},
			{Tier: TierPremium, UpTo: decimal.NewFromInt(2000000), Rate: decimal.NewFromInt(10), PlatformFee: fee},
			{Tier: TierEnterprise, Rate: decimal.NewFromInt(8), PlatformFee: fee},
		},
		MethodDirect: {
			{Tier: TierStandard, UpTo: decimal.NewFromInt(500000), Rate: decimal.NewFromInt(10), PlatformFee: decimal.Zero},
			{Tier: TierPremium, UpTo: decimal.NewFromInt(2000000), Rate: decimal.NewFromInt(8), PlatformFee: decimal.Zero},
			{Tier: TierEnterprise, Rate: decimal.NewFromInt(6), PlatformFee: decimal.Zero},
		},
	}}
}

// Calculate считает комиссию по действующей сетке.
func Calculate(value decimal.Decimal, method Method) (Breakdown, error) {
	return DefaultSchedule().Calculate(value, method)
}

// CalculateWithPromo считает комиссию по действующей сетке с учетом промокода.
func CalculateWithPromo(value decimal.Decimal, method Method, promo *Promo, at time.Time) (Breakdown, error) {
	return DefaultSchedule().CalculateWithPromo(value, method, promo, at)
}

// Band возвращает ступень сетки для стоимости проекта.
func (s Schedule) Band(value decimal.Decimal, method Method) (Band, error) {
	bands, ok := s.Bands[method]
	if !ok || len(bands) == 0 {
		return Band{}, ErrUnknownMethod
	}
	for _, band := range bands {
		if band.UpTo.IsZero() || value.LessThanOrEqual(band.UpTo) {
			return band, nil
		}
	}
	return bands[len(bands)-1], nil
}

// Calculate считает комиссию, сбор платформы и выплату исполнителю.
func (s Schedule) Calculate(value decimal.Decimal, method Method) (Breakdown, error) {
	if value.IsNegative() {
		return Breakdown{}, ErrNegativeValue
	}
	if method == "" {
		method = MethodOnline
	}
	if _, ok := s.Bands[method]; !ok {
		return Breakdown{}, ErrUnknownMethod
	}

	value = round2(value)
	if value.IsZero() {
		return zeroBreakdown(method), nil
	}

	band, err := s.Band(value, method)
	if err != nil {
		return Breakdown{}, err
	}

	commissionAmount := round2(value.Mul(band.Rate).Div(hundred))
	// Сбор не может сделать выплату отрицательной.
	fee := round2(band.PlatformFee)
	if rest := value.Sub(commissionAmount); fee.GreaterThan(rest) {
		fee = rest
	}
	return assemble(Breakdown{
		ProjectValue:   value,
		Method:         method,
		Tier:           band.Tier,
		Rate:           band.Rate,
		BaseCommission: commissionAmount,
		PromoDiscount:  decimal.Zero,
		PlatformFee:    fee,
	}, commissionAmount), nil
}

// CalculateWithPromo считает комиссию и применяет скидку промокода к комиссии.
// Итоговая комиссия не опускается ниже нуля.
func (s Schedule) CalculateWithPromo(value decimal.Decimal, method Method, promo *Promo, at time.Time) (Breakdown, error) {
	breakdown, err := s.Calculate(value, method)
	if err != nil {
		return Breakdown{}, err
	}
	if promo == nil {
		return breakdown, nil
	}
	if err := promo.Eligible(breakdown.ProjectValue, at); err != nil {
		return Breakdown{}, err
	}

	discount := promo.Discount(breakdown.BaseCommission)
	final := breakdown.BaseCommission.Sub(discount)
	if final.IsNegative() {
		final = decimal.Zero
	}
	breakdown.PromoCode = promo.Code
	breakdown.PromoDiscount = breakdown.BaseCommission.Sub(final)
	return assemble(breakdown, final), nil
}

func assemble(b Breakdown, commissionAmount decimal.Decimal) Breakdown {
	b.CommissionAmount = commissionAmount
	b.TotalDeduction = commissionAmount.Add(b.PlatformFee)
	b.VendorPayout = b.ProjectValue.Sub(b.TotalDeduction)
	return b
}

func zeroBreakdown(method Method) Breakdown {
	return Breakdown{
		ProjectValue:     decimal.Zero,
		Method:           method,
		Tier:             TierNone,
		Rate:             decimal.Zero,
		BaseCommission:   decimal.Zero,
		PromoDiscount:    decimal.Zero,
		CommissionAmount: decimal.Zero,
		PlatformFee:      decimal.Zero,
		TotalDeduction:   decimal.Zero,
		VendorPayout:     decimal.Zero,
	}
}

func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
