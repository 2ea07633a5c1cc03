package services

import (
	"fmt"
	"html"
	"strings"
	"time"

	"fabrikaProject/config"
	"fabrikaProject/models"

	"gopkg.in/gomail.v2"
)

// EmailService предоставляет методы для отправки email
type EmailService struct {
	dialer *gomail.Dialer
	from   string
	send   func(m *gomail.Message) error
}

// NewEmailService создает новый экземпляр EmailService
func NewEmailService(cfg *config.Config) *EmailService {
	dialer := gomail.NewDialer(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Username,
		cfg.SMTP.Password,
	)

	s := &EmailService{
		dialer: dialer,
		from:   cfg.SMTP.From,
	}
	s.send = func(m *gomail.Message) error {
		return s.dialer.DialAndSend(m)
	}
	return s
}

// SendEmail отправляет email
func (s *EmailService) SendEmail(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := s.send(m); err != nil {
		return fmt.Errorf("ошибка отправки email: %w", err)
	}

	return nil
}

// ContractSettled сообщает, что договор оплачен полностью
func (s *EmailService) ContractSettled(to string, project *models.Project, contract *models.Contract) error {
	subject := fmt.Sprintf("Договор %s оплачен", contract.Title)
	body := fmt.Sprintf(`
		<h2>Договор оплачен полностью</h2>
		<p>Проект: %s</p>
		<p>Договор: %s %s</p>
		<p>Сумма: %s EUR</p>
		<p>Остаток по проекту: %s EUR</p>
		<p>Дата: %s</p>
	`,
		html.EscapeString(project.Name),
		html.EscapeString(contract.Code),
		html.EscapeString(contract.Title),
		contract.ValueEUR.StringFixed(2),
		project.RemainingEUR.StringFixed(2),
		time.Now().Format("02.01.2006 15:04:05"))

	return s.SendEmail(to, subject, body)
}

// OverduePayments отправляет сводку просроченных платежей
func (s *EmailService) OverduePayments(to string, payments []models.Payment) error {
	subject := fmt.Sprintf("Просроченные платежи: %d", len(payments))

	var rows strings.Builder
	for _, p := range payments {
		due := ""
		if p.DueDate != nil {
			due = p.DueDate.Format("02.01.2006")
		}
		fmt.Fprintf(&rows, "<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>\n",
			html.EscapeString(p.Label), due, p.AmountEUR.StringFixed(2), p.Status)
	}

	body := fmt.Sprintf(`
		<h2>Просроченные платежи</h2>
		<table>
		<tr><th>Платеж</th><th>Срок</th><th>Сумма, EUR</th><th>Статус</th></tr>
		%s</table>
		<p>Дата: %s</p>
	`, rows.String(), time.Now().Format("02.01.2006 15:04:05"))

	return s.SendEmail(to, subject, body)
}
