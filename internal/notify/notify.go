// Package notify публикует уведомления участникам в NATS.
// Доставка по каналам (почта, мессенджеры) выполняется подписчиками вне сервиса.
package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/senyabanana/forge-service/internal/models"
)

// SubjectPrefix - префикс темы, к нему добавляется имя шаблона.
const SubjectPrefix = "forge.notifications."

// publisher - часть *nats.Conn, нужная для отправки.
type publisher interface {
	Publish(subject string, data []byte) error
}

// NatsNotifier отправляет уведомления в NATS. Ошибки отправки только логируются.
type NatsNotifier struct {
	conn   publisher
	Logger *log.Logger
}

// NewNatsNotifier создает новый экземпляр NatsNotifier.
func NewNatsNotifier(conn *nats.Conn, logger *log.Logger) *NatsNotifier {
	return &NatsNotifier{conn: conn, Logger: logger}
}

// Notify публикует уведомление в тему forge.notifications.<template>.
func (n *NatsNotifier) Notify(_ context.Context, notification models.Notification) {
	if notification.ID == "" {
		notification.ID = uuid.New().String()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(notification)
	if err != nil {
		n.Logger.Printf("failed to encode notification %s: %v", notification.Template, err)
		return
	}
	subject := Subject(notification.Template)
	if err := n.conn.Publish(subject, data); err != nil {
		n.Logger.Printf("failed to publish notification to %s: %v", subject, err)
		return
	}
}

// Subject возвращает тему NATS для шаблона.
func Subject(template models.Template) string {
	return SubjectPrefix + string(template)
}

// LogNotifier пишет уведомления в лог. Используется, когда NATS не настроен.
type LogNotifier struct {
	Logger *log.Logger
}

func (n *LogNotifier) Notify(_ context.Context, notification models.Notification) {
	n.Logger.Printf("notification %s for %s (event %s)", notification.Template, notification.Recipient, notification.EventID)
}
