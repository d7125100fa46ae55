// Package render строит текст договора и сохраняет его как неизменяемый документ.
package render

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/senyabanana/forge-service/internal/models"
)

const contentType = "text/plain; charset=utf-8"

// ArtifactStore - хранилище документов договоров.
type ArtifactStore interface {
	PutArtifact(ctx context.Context, key, contentType string, body []byte, sha string) error
	GetArtifact(ctx context.Context, key string) (string, []byte, error)
}

const uriScheme = "artifact://"

// Renderer рендерит договоры и пишет их в хранилище.
type Renderer struct {
	Store ArtifactStore
}

// NewRenderer создает новый экземпляр Renderer.
func NewRenderer(store ArtifactStore) *Renderer {
	return &Renderer{Store: store}
}

// Render сохраняет документ и возвращает ссылку на него.
// Ошибка хранилища прерывает генерацию договора.
func (r *Renderer) Render(ctx context.Context, doc models.ContractDocument) (models.DocumentRef, error) {
	text, err := Text(doc)
	if err != nil {
		return models.DocumentRef{}, err
	}
	sum := sha256Hex([]byte(text))
	key := fmt.Sprintf("contracts/%s/%s", doc.ContractID, sum)
	if err := r.Store.PutArtifact(ctx, key, contentType, []byte(text), sum); err != nil {
		return models.DocumentRef{}, fmt.Errorf("failed to store contract document: %w", err)
	}
	return models.DocumentRef{URI: uriScheme + key, SHA256: sum}, nil
}

// Open читает сохраненный документ по ссылке и сверяет его хэш.
func (r *Renderer) Open(ctx context.Context, ref models.DocumentRef) (string, []byte, error) {
	key, ok := strings.CutPrefix(ref.URI, uriScheme)
	if !ok || key == "" {
		return "", nil, fmt.Errorf("unsupported document uri %q", ref.URI)
	}
	storedType, body, err := r.Store.GetArtifact(ctx, key)
	if err != nil {
		return "", nil, err
	}
	if sha256Hex(body) != ref.SHA256 {
		return "", nil, fmt.Errorf("document %s does not match its checksum", key)
	}
	return storedType, body, nil
}

// Text строит канонический текст договора. Одинаковый документ всегда дает одинаковый текст.
func Text(doc models.ContractDocument) (string, error) {
	brief, err := canonicalBrief(doc.ClientBrief)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SERVICE AGREEMENT %s\n", doc.ContractID)
	fmt.Fprintf(&b, "Event: %s\n", doc.EventID)
	fmt.Fprintf(&b, "Bid: %s\n", doc.BidID)
	fmt.Fprintf(&b, "Client: %s\n", doc.ClientID)
	fmt.Fprintf(&b, "Vendor: %s (%s)\n", doc.VendorName, doc.VendorID)
	fmt.Fprintf(&b, "Generated: %s\n", doc.GeneratedAt.UTC().Format("2006-01-02T15:04:05Z"))
	b.WriteString("\nBrief\n")
	b.WriteString(brief)
	b.WriteString("\n\nScope\n")
	for _, item := range doc.Items {
		fmt.Fprintf(&b, "- %s x%d @ %s\n", item.Description, item.Quantity, item.UnitPrice.StringFixed(2))
	}
	b.WriteString("\nPrice\n")
	fmt.Fprintf(&b, "Subtotal: %s\n", doc.Subtotal.StringFixed(2))
	fmt.Fprintf(&b, "Taxes: %s\n", doc.Taxes.StringFixed(2))
	fmt.Fprintf(&b, "Total: %s\n", doc.Total.StringFixed(2))
	fmt.Fprintf(&b, "Deposit: %s\n", doc.Deposit.StringFixed(2))
	b.WriteString("\nMilestones\n")
	for _, m := range doc.Milestones {
		fmt.Fprintf(&b, "- %s %s%% %s due %s\n", m.Name, m.Percent.String(), m.Amount.StringFixed(2), m.Due)
	}
	c := doc.Commission
	b.WriteString("\nPlatform commission\n")
	fmt.Fprintf(&b, "Method: %s, tier: %s, rate: %s\n", c.Method, c.Tier, c.Rate.String())
	fmt.Fprintf(&b, "Commission: %s\n", c.CommissionAmount.StringFixed(2))
	if c.PromoCode != "" {
		fmt.Fprintf(&b, "Promo %s: -%s\n", c.PromoCode, c.PromoDiscount.StringFixed(2))
	}
	fmt.Fprintf(&b, "Platform fee: %s\n", c.PlatformFee.StringFixed(2))
	fmt.Fprintf(&b, "Vendor payout: %s\n", c.VendorPayout.StringFixed(2))
	if strings.TrimSpace(doc.Notes) != "" {
		b.WriteString("\nNotes\n")
		b.WriteString(doc.Notes)
		b.WriteString("\n")
	}
	return normalizeText(b.String()), nil
}

// canonicalBrief перекодирует бриф, чтобы порядок ключей не влиял на хэш.
func canonicalBrief(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "{}", nil
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", fmt.Errorf("invalid client brief: %w", err)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func normalizeText(in string) string {
	s := strings.ReplaceAll(in, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " \t")
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n") + "\n"
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
