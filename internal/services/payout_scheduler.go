package services

import (
	"context"
	"log"
	"time"

	"github.com/senyabanana/forge-service/internal/models"
)

// DefaultSweepInterval используется, когда интервал обхода не задан.
const DefaultSweepInterval = 15 * time.Minute

// PayoutScheduler периодически выплачивает исполнителям средства, у которых истек период удержания.
type PayoutScheduler struct {
	Payments  *PaymentService
	Interval  time.Duration
	BatchSize int
	Logger    *log.Logger
}

// NewPayoutScheduler создает новый экземпляр PayoutScheduler.
func NewPayoutScheduler(payments *PaymentService, interval time.Duration, logger *log.Logger) *PayoutScheduler {
	return &PayoutScheduler{Payments: payments, Interval: interval, BatchSize: 50, Logger: logger}
}

// Run выполняет обход каждые Interval до отмены ctx.
func (p *PayoutScheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := p.Sweep(ctx); err != nil {
				p.Logger.Printf("payout sweep failed: %v", err)
			}
		}
	}
}

func (p *PayoutScheduler) interval() time.Duration {
	if p.Interval <= 0 {
		return DefaultSweepInterval
	}
	return p.Interval
}

// Sweep запускает выплаты по готовым платежам и возвращает число начатых выплат.
// Ошибка одной выплаты не останавливает обход.
func (p *PayoutScheduler) Sweep(ctx context.Context) (int, error) {
	cutoff := p.Payments.clock.now().Add(-p.Payments.PayoutHold)
	payments, err := p.Payments.Repo.ListReleasable(ctx, cutoff, p.BatchSize)
	if err != nil {
		return 0, err
	}

	started := 0
	for _, payment := range payments {
		if ctx.Err() != nil {
			break
		}
		if _, err := p.Payments.InitiatePayout(ctx, models.SystemActor, payment.ID); err != nil {
			p.Logger.Printf("payout for payment %s not started: %v", payment.ID, err)
			continue
		}
		started++
	}
	return started, nil
}
