package services

import (
	"context"
	"fmt"
	"time"

	"fabrikaProject/database"
	"fabrikaProject/models"
	"fabrikaProject/utils"
)

// PaymentReminderService периодически рассылает сводку просроченных платежей.
// Финансовое состояние он не меняет.
type PaymentReminderService struct {
	repo      database.Repository
	notifier  Notifier
	recipient string
	interval  time.Duration
	now       func() time.Time
}

// NewPaymentReminderService создает новый экземпляр PaymentReminderService
func NewPaymentReminderService(repo database.Repository, notifier Notifier, recipient string, interval time.Duration) *PaymentReminderService {
	return &PaymentReminderService{
		repo:      repo,
		notifier:  notifier,
		recipient: recipient,
		interval:  interval,
		now:       time.Now,
	}
}

// Start запускает рассылку в отдельной горутине. Она завершается вместе с ctx.
func (s *PaymentReminderService) Start(ctx context.Context) {
	if s.recipient == "" || s.notifier == nil {
		utils.LogInfo("напоминания о просроченных платежах отключены: не задан получатель")
		return
	}

	ticker := time.NewTicker(s.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.RunOnce(ctx); err != nil {
					utils.LogError("Ошибка при рассылке напоминаний о платежах: %v", err)
				}
			}
		}
	}()
}

// RunOnce находит просроченные платежи и отправляет сводку.
// Возвращает число платежей в сводке.
func (s *PaymentReminderService) RunOnce(ctx context.Context) (int, error) {
	startTime := time.Now()

	payments, err := s.repo.ListOpenPaymentsDueBefore(ctx, s.now())
	if err != nil {
		utils.LogOperation("overdue reminder", startTime, err)
		return 0, err
	}

	overdue := make([]models.Payment, 0, len(payments))
	now := s.now()
	for _, p := range payments {
		if p.Overdue(now) {
			overdue = append(overdue, p)
		}
	}
	if len(overdue) == 0 || s.notifier == nil {
		utils.LogDebug("просроченных платежей нет")
		return 0, nil
	}

	if err := s.notifier.OverduePayments(s.recipient, overdue); err != nil {
		utils.RecordNotificationError()
		err = fmt.Errorf("ошибка отправки сводки просроченных платежей: %w", err)
		utils.LogOperation("overdue reminder", startTime, err)
		return 0, err
	}

	utils.LogOperation("overdue reminder", startTime, nil)
	return len(overdue), nil
}
