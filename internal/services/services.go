package services

import (
	"context"
	"time"

	"github.com/senyabanana/forge-service/internal/gateway"
	"github.com/senyabanana/forge-service/internal/models"
)

// Notifier отправляет уведомления участникам. Ошибки доставки не возвращаются.
type Notifier interface {
	Notify(ctx context.Context, notification models.Notification)
}

// DocumentRenderer рендерит документ договора и возвращает ссылку на сохраненный файл.
type DocumentRenderer interface {
	Render(ctx context.Context, doc models.ContractDocument) (models.DocumentRef, error)
	Open(ctx context.Context, ref models.DocumentRef) (string, []byte, error)
}

// PaymentGateway - операции платежного шлюза, которые выполняет сервис.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, req gateway.OrderRequest) (*gateway.Order, error)
	CreatePayout(ctx context.Context, req gateway.PayoutRequest) (*gateway.Payout, error)
}

type clock func() time.Time

func (c clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}

func notify(ctx context.Context, n Notifier, eventId string, template models.Template, recipient string, data map[string]string) {
	if n == nil || recipient == "" {
		return
	}
	n.Notify(ctx, models.Notification{
		EventID:   eventId,
		Template:  template,
		Recipient: recipient,
		Data:      data,
	})
}
