package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"fabrikaProject/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReminderRunOnce(t *testing.T) {
	env := newTestEnv(t)
	project := env.project(t, "Ангар")
	contract := env.contract(t, project.ID, "Каркас", "0")

	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-48 * time.Hour)
	future := now.Add(48 * time.Hour)

	env.payment(t, CreatePaymentDTO{ProjectID: project.ID, ContractID: &contract.ID, Label: "Просрочен", Amount: eur("100"), DueDate: &past})
	env.payment(t, CreatePaymentDTO{ProjectID: project.ID, ContractID: &contract.ID, Label: "Частично", Amount: eur("100"), DueDate: &past, Status: models.PaymentStatusPartial})
	env.payment(t, CreatePaymentDTO{ProjectID: project.ID, ContractID: &contract.ID, Label: "Оплачен", Amount: eur("100"), DueDate: &past, Status: models.PaymentStatusPaid})
	env.payment(t, CreatePaymentDTO{ProjectID: project.ID, ContractID: &contract.ID, Label: "Впереди", Amount: eur("100"), DueDate: &future})
	env.payment(t, CreatePaymentDTO{ProjectID: project.ID, ContractID: &contract.ID, Label: "Без срока", Amount: eur("100")})

	before := env.reloadContract(t, contract.ID)

	notifier := &fakeNotifier{}
	reminders := NewPaymentReminderService(env.repo, notifier, "finance@example.com", time.Hour)
	reminders.now = func() time.Time { return now }

	sent, err := reminders.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	require.Len(t, notifier.overdue, 1)
	assert.Equal(t, []string{"finance@example.com"}, notifier.to)

	labels := []string{}
	for _, p := range notifier.overdue[0] {
		labels = append(labels, p.Label)
	}
	assert.ElementsMatch(t, []string{"Просрочен", "Частично"}, labels)

	// Рассылка не меняет финансовое состояние
	after := env.reloadContract(t, contract.ID)
	assert.True(t, before.PaidEUR.Equal(after.PaidEUR))
	assert.True(t, before.ValueEUR.Equal(after.ValueEUR))
}

func TestReminderReportsNotifierErrors(t *testing.T) {
	env := newTestEnv(t)
	project := env.project(t, "Ангар")
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	env.payment(t, CreatePaymentDTO{ProjectID: project.ID, Amount: eur("10"), DueDate: &past})

	notifier := &fakeNotifier{err: errors.New("smtp down")}
	reminders := NewPaymentReminderService(env.repo, notifier, "finance@example.com", time.Hour)
	reminders.now = func() time.Time { return now }

	_, err := reminders.RunOnce(context.Background())
	assert.Error(t, err)
}

func TestReminderStartStopsWithContext(t *testing.T) {
	env := newTestEnv(t)
	notifier := &fakeNotifier{}
	reminders := NewPaymentReminderService(env.repo, notifier, "finance@example.com", 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	reminders.Start(ctx)
	time.Sleep(30 * time.Millisecond)
	cancel()

	// Без просроченных платежей писем нет
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	assert.Empty(t, notifier.overdue)
}
