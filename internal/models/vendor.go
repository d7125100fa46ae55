package models

// Vendor - профиль исполнителя.
type Vendor struct {
	ID           string `json:"id"`
	UserID       string `json:"userId"`
	BusinessName string `json:"businessName"`
	Email        string `json:"email"`
}

// PayoutAccount - реквизиты исполнителя для выплат.
type PayoutAccount struct {
	VendorID      string `json:"vendorId"`
	AccountHolder string `json:"accountHolder"`
	AccountNumber string `json:"accountNumber"`
	IFSC          string `json:"ifsc"`
	FundAccountID string `json:"fundAccountId"`
}

// Complete сообщает, заполнены ли все реквизиты для перевода.
func (p *PayoutAccount) Complete() bool {
	return p != nil && p.AccountHolder != "" && p.AccountNumber != "" && p.IFSC != "" && p.FundAccountID != ""
}
