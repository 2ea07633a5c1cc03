package services

import (
	"errors"
	"mime"
	"strings"
	"testing"
	"time"

	"fabrikaProject/config"
	"fabrikaProject/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

func newCapturingEmailService(t *testing.T) (*EmailService, *[]*gomail.Message) {
	t.Helper()
	cfg := &config.Config{}
	cfg.SMTP.Host = "localhost"
	cfg.SMTP.Port = 2525
	cfg.SMTP.From = "noreply@example.com"

	s := NewEmailService(cfg)
	sent := []*gomail.Message{}
	s.send = func(m *gomail.Message) error {
		sent = append(sent, m)
		return nil
	}
	return s, &sent
}

func messageBody(t *testing.T, m *gomail.Message) string {
	t.Helper()
	var b strings.Builder
	_, err := m.WriteTo(&b)
	require.NoError(t, err)
	return b.String()
}

// subject раскодирует тему письма: gomail кодирует не-ASCII заголовки
func subject(t *testing.T, m *gomail.Message) string {
	t.Helper()
	header := m.GetHeader("Subject")
	require.Len(t, header, 1)
	decoded, err := new(mime.WordDecoder).DecodeHeader(header[0])
	require.NoError(t, err)
	return decoded
}

func TestContractSettledEmail(t *testing.T) {
	s, sent := newCapturingEmailService(t)

	project := &models.Project{Name: "Ангар <север>", RemainingEUR: decimal.RequireFromString("150")}
	contract := &models.Contract{Code: "C-1", Title: "Каркас", ValueEUR: decimal.RequireFromString("1000")}
	require.NoError(t, s.ContractSettled("boss@example.com", project, contract))

	require.Len(t, *sent, 1)
	m := (*sent)[0]
	assert.Equal(t, []string{"boss@example.com"}, m.GetHeader("To"))
	assert.Equal(t, []string{"noreply@example.com"}, m.GetHeader("From"))
	assert.Equal(t, "Договор Каркас оплачен", subject(t, m))

	body := messageBody(t, m)
	assert.Contains(t, body, "1000.00")
	assert.NotContains(t, body, "<север>")
}

func TestOverduePaymentsEmail(t *testing.T) {
	s, sent := newCapturingEmailService(t)

	due := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	payments := []models.Payment{
		{Label: "Аванс", AmountEUR: decimal.RequireFromString("250"), DueDate: &due, Status: models.PaymentStatusUnpaid},
		{Label: "Остаток", AmountEUR: decimal.RequireFromString("750"), Status: models.PaymentStatusPartial},
	}
	require.NoError(t, s.OverduePayments("finance@example.com", payments))

	require.Len(t, *sent, 1)
	assert.Equal(t, "Просроченные платежи: 2", subject(t, (*sent)[0]))
	body := messageBody(t, (*sent)[0])
	assert.Contains(t, body, "01.05.2024")
	assert.Contains(t, body, "250.00")
}

func TestSendEmailWrapsErrors(t *testing.T) {
	s, _ := newCapturingEmailService(t)
	s.send = func(m *gomail.Message) error { return errors.New("connection refused") }

	err := s.SendEmail("a@example.com", "тема", "<p>текст</p>")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
