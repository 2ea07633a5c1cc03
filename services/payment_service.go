package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fabrikaProject/database"
	"fabrikaProject/models"
	"fabrikaProject/utils"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RateProvider переводит суммы в евро
type RateProvider interface {
	ToEUR(ctx context.Context, amount decimal.Decimal, currency string) (decimal.Decimal, error)
}

// Notifier отправляет уведомления о событиях по платежам
type Notifier interface {
	ContractSettled(to string, project *models.Project, contract *models.Contract) error
	OverduePayments(to string, payments []models.Payment) error
}

// CreatePaymentDTO представляет данные для создания платежа.
// Суммы указываются в валюте Currency (по умолчанию EUR).
type CreatePaymentDTO struct {
	ProjectID  uuid.UUID            `json:"project_id" validate:"required"`
	ContractID *uuid.UUID           `json:"contract_id"`
	Label      string               `json:"label" validate:"required,min=1,max=200"`
	Amount     *decimal.Decimal     `json:"amount" validate:"required,gt=0"`
	Currency   string               `json:"currency" validate:"omitempty,len=3"`
	DueDate    *time.Time           `json:"due_date"`
	Status     models.PaymentStatus `json:"status" validate:"omitempty,oneof=unpaid partial paid"`
	PaidAmount *decimal.Decimal     `json:"paid_amount" validate:"omitempty,gte=0"`
	PaidAt     *time.Time           `json:"paid_at"`
	Comment    string               `json:"comment"`
}

// UpdatePaymentDTO представляет частичное изменение платежа.
// DetachContract отвязывает платеж от договора.
type UpdatePaymentDTO struct {
	ContractID     *uuid.UUID            `json:"contract_id"`
	DetachContract bool                  `json:"detach_contract"`
	Label          *string               `json:"label" validate:"omitempty,min=1,max=200"`
	Amount         *decimal.Decimal      `json:"amount" validate:"omitempty,gt=0"`
	Currency       string                `json:"currency" validate:"omitempty,len=3"`
	DueDate        *time.Time            `json:"due_date"`
	Status         *models.PaymentStatus `json:"status" validate:"omitempty,oneof=unpaid partial paid"`
	PaidAmount     *decimal.Decimal      `json:"paid_amount" validate:"omitempty,gte=0"`
	PaidAt         *time.Time            `json:"paid_at"`
	Comment        *string               `json:"comment"`
}

// PaymentService предоставляет методы для работы с платежами
type PaymentService struct {
	repo      database.Repository
	finance   *FinanceService
	uow       unitOfWork
	rates     RateProvider
	notifier  Notifier
	validator *validator.Validate
	now       func() time.Time
}

// NewPaymentService создает новый экземпляр PaymentService.
// rates и notifier могут быть nil: тогда принимаются только суммы в евро
// и уведомления не отправляются.
func NewPaymentService(repo database.Repository, finance *FinanceService, locks *utils.KeyedMutex, rates RateProvider, notifier Notifier) *PaymentService {
	return &PaymentService{
		repo:      repo,
		finance:   finance,
		uow:       newUnitOfWork(repo, locks),
		rates:     rates,
		notifier:  notifier,
		validator: newValidator(),
		now:       time.Now,
	}
}

// settlement отслеживает договоры, полностью оплаченные в ходе одной операции
type settlement struct {
	contracts []models.Contract
}

// recompute пересчитывает договор и запоминает его, если остаток только что стал нулевым
func (s *PaymentService) recompute(ctx context.Context, tx database.Repository, contractID uuid.UUID, settled *settlement) error {
	wasSettled := false
	if before, err := tx.FindContract(ctx, contractID); err == nil {
		wasSettled = before.Settled()
	}

	contract, err := s.finance.RecomputeContract(ctx, tx, contractID)
	if err != nil {
		return err
	}
	if contract != nil && contract.Settled() && !wasSettled {
		settled.contracts = append(settled.contracts, *contract)
	}
	return nil
}

// convert переводит сумму в евро. Возвращает сумму в евро и исходную сумму,
// если валюта отличалась от евро.
func (s *PaymentService) convert(ctx context.Context, amount decimal.Decimal, currency string) (decimal.Decimal, decimal.NullDecimal, error) {
	if currency == models.CurrencyEUR {
		return money(amount), decimal.NullDecimal{}, nil
	}
	if s.rates == nil {
		return decimal.Zero, decimal.NullDecimal{}, newValidationError("поддерживаются только суммы в " + models.CurrencyEUR)
	}

	eur, err := s.rates.ToEUR(ctx, amount, currency)
	if err != nil {
		return decimal.Zero, decimal.NullDecimal{}, err
	}
	return money(eur), decimal.NewNullDecimal(money(amount)), nil
}

// checkContract проверяет, что договор существует и относится к проекту
func checkContract(ctx context.Context, tx database.Repository, contractID uuid.UUID, projectID uuid.UUID) error {
	contract, err := tx.FindContract(ctx, contractID)
	if err != nil {
		if IsNotFound(err) {
			return newValidationError("договор " + contractID.String() + " не найден")
		}
		return fmt.Errorf("ошибка при получении договора: %w", err)
	}
	if contract.ProjectID != projectID {
		return newValidationError("договор относится к другому проекту")
	}
	return nil
}

// checkAmounts проверяет суммы после перевода в евро и округления до центов:
// сумма платежа положительна, оплаченная сумма ее не превышает,
// а при частичной оплате меньше нее
func checkAmounts(p *models.Payment) error {
	if !p.AmountEUR.IsPositive() {
		return newValidationError("сумма платежа после округления до центов должна быть больше нуля")
	}
	if !p.PaidAmountEUR.Valid {
		return nil
	}
	paid := p.PaidAmountEUR.Decimal
	if paid.GreaterThan(p.AmountEUR) {
		return newValidationError("оплаченная сумма превышает сумму платежа")
	}
	if p.Status == models.PaymentStatusPartial && paid.Equal(p.AmountEUR) {
		return newValidationError("при частичной оплате оплаченная сумма должна быть меньше суммы платежа")
	}
	return nil
}

func normalizeCurrency(currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return models.CurrencyEUR
	}
	return currency
}

// CreatePayment создает платеж и, если он привязан к договору,
// пересчитывает договор и проект в той же транзакции
func (s *PaymentService) CreatePayment(ctx context.Context, dto CreatePaymentDTO, actor *models.User) (*models.Payment, error) {
	startTime := time.Now()
	dto.Label = strings.TrimSpace(dto.Label)
	if err := validateStruct(s.validator, dto); err != nil {
		return nil, err
	}

	currency := normalizeCurrency(dto.Currency)
	amountEUR, original, err := s.convert(ctx, *dto.Amount, currency)
	if err != nil {
		return nil, err
	}

	payment := &models.Payment{
		ProjectID:      dto.ProjectID,
		ContractID:     dto.ContractID,
		Label:          dto.Label,
		AmountEUR:      amountEUR,
		Currency:       currency,
		OriginalAmount: original,
		DueDate:        dto.DueDate,
		Status:         dto.Status,
		PaidAt:         dto.PaidAt,
		Comment:        dto.Comment,
	}
	if payment.Status == "" {
		payment.Status = models.PaymentStatusUnpaid
	}
	if dto.PaidAmount != nil {
		paidEUR, _, err := s.convert(ctx, *dto.PaidAmount, currency)
		if err != nil {
			return nil, err
		}
		payment.PaidAmountEUR = decimal.NewNullDecimal(paidEUR)
	}
	if actor != nil {
		payment.CreatedBy = &actor.ID
	}
	if err := checkAmounts(payment); err != nil {
		return nil, err
	}
	if payment.Status != models.PaymentStatusUnpaid {
		now := s.now()
		payment.MarkedPaidBy = payment.CreatedBy
		payment.MarkedPaidAt = &now
		if payment.PaidAt == nil {
			payment.PaidAt = &now
		}
	}

	settled := &settlement{}
	err = s.uow.run(ctx, dto.ProjectID, func(ctx context.Context, tx database.Repository, project *models.Project) error {
		if payment.ContractID != nil {
			if err := checkContract(ctx, tx, *payment.ContractID, project.ID); err != nil {
				return err
			}
		}
		if err := tx.InsertPayment(ctx, payment); err != nil {
			return fmt.Errorf("ошибка при создании платежа: %w", err)
		}
		if payment.ContractID != nil {
			return s.recompute(ctx, tx, *payment.ContractID, settled)
		}
		return nil
	})
	utils.LogOperation("create payment", startTime, err)
	if err != nil {
		return nil, err
	}

	s.notifySettled(ctx, settled)
	return payment, nil
}

// GetPayment возвращает платеж по идентификатору
func (s *PaymentService) GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	payment, err := s.repo.FindPayment(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrPaymentNotFound)
	}
	return payment, nil
}

// ListByProject возвращает платежи проекта по сроку оплаты
func (s *PaymentService) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Payment, error) {
	if _, err := s.repo.FindProject(ctx, projectID); err != nil {
		return nil, notFound(err, ErrProjectNotFound)
	}
	payments, err := s.repo.ListPaymentsByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении платежей: %w", err)
	}
	return payments, nil
}

// UpdatePayment применяет частичное изменение к платежу.
// Если переданы и статус paid/partial, и оплаченная сумма, платеж помечается
// оплаченным от имени actor. Статус unpaid снимает эту отметку.
// Пересчитываются прежний договор и, если платеж перенесен, новый.
func (s *PaymentService) UpdatePayment(ctx context.Context, id uuid.UUID, dto UpdatePaymentDTO, actor *models.User) (*models.Payment, error) {
	startTime := time.Now()
	if err := validateStruct(s.validator, dto); err != nil {
		return nil, err
	}
	if dto.DetachContract && dto.ContractID != nil {
		return nil, newValidationError("нельзя одновременно указать договор и отвязать платеж")
	}
	if dto.Label != nil {
		label := strings.TrimSpace(*dto.Label)
		if label == "" {
			return nil, newValidationError("поле Label обязательно")
		}
		dto.Label = &label
	}

	current, err := s.repo.FindPayment(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrPaymentNotFound)
	}

	currency := current.Currency
	if dto.Currency != "" {
		currency = normalizeCurrency(dto.Currency)
	}
	// Смена валюты без новой суммы оставила бы сумму и оплату в разных валютах
	if currency != current.Currency && dto.Amount == nil {
		return nil, newValidationError("при смене валюты нужно указать сумму платежа")
	}

	var amountEUR *decimal.Decimal
	var original decimal.NullDecimal
	if dto.Amount != nil {
		eur, orig, err := s.convert(ctx, *dto.Amount, currency)
		if err != nil {
			return nil, err
		}
		amountEUR, original = &eur, orig
	}

	var paidEUR *decimal.Decimal
	if dto.PaidAmount != nil {
		eur, _, err := s.convert(ctx, *dto.PaidAmount, currency)
		if err != nil {
			return nil, err
		}
		paidEUR = &eur
	}

	var actorID *uuid.UUID
	if actor != nil {
		actorID = &actor.ID
	}

	settled := &settlement{}
	var result *models.Payment
	err = s.uow.run(ctx, current.ProjectID, func(ctx context.Context, tx database.Repository, project *models.Project) error {
		payment, err := tx.FindPayment(ctx, id)
		if err != nil {
			return notFound(err, ErrPaymentNotFound)
		}
		oldContract := payment.ContractID

		// Отметка об оплате вычисляется до слияния изменений
		if dto.Status != nil {
			switch *dto.Status {
			case models.PaymentStatusPaid, models.PaymentStatusPartial:
				if paidEUR != nil {
					now := s.now()
					payment.MarkedPaidBy = actorID
					payment.MarkedPaidAt = &now
					if dto.PaidAt == nil && payment.PaidAt == nil {
						payment.PaidAt = &now
					}
				}
			case models.PaymentStatusUnpaid:
				payment.MarkedPaidBy = nil
				payment.MarkedPaidAt = nil
			}
		}

		switch {
		case dto.DetachContract:
			payment.ContractID = nil
		case dto.ContractID != nil:
			if err := checkContract(ctx, tx, *dto.ContractID, project.ID); err != nil {
				return err
			}
			contractID := *dto.ContractID
			payment.ContractID = &contractID
		}
		if dto.Label != nil {
			payment.Label = *dto.Label
		}
		if amountEUR != nil {
			payment.AmountEUR = *amountEUR
			payment.OriginalAmount = original
			payment.Currency = currency
		}
		if dto.DueDate != nil {
			payment.DueDate = dto.DueDate
		}
		if dto.Status != nil {
			payment.Status = *dto.Status
		}
		if paidEUR != nil {
			payment.PaidAmountEUR = decimal.NewNullDecimal(*paidEUR)
		}
		if dto.PaidAt != nil {
			payment.PaidAt = dto.PaidAt
		}
		if dto.Comment != nil {
			payment.Comment = *dto.Comment
		}

		if err := checkAmounts(payment); err != nil {
			return err
		}

		if err := tx.UpdatePayment(ctx, payment); err != nil {
			return fmt.Errorf("ошибка при обновлении платежа: %w", err)
		}

		if oldContract != nil {
			if err := s.recompute(ctx, tx, *oldContract, settled); err != nil {
				return err
			}
		}
		if payment.ContractID != nil && (oldContract == nil || *oldContract != *payment.ContractID) {
			if err := s.recompute(ctx, tx, *payment.ContractID, settled); err != nil {
				return err
			}
		}
		result = payment
		return nil
	})
	utils.LogOperation("update payment", startTime, err)
	if err != nil {
		return nil, err
	}

	s.notifySettled(ctx, settled)
	return result, nil
}

// DeletePayment удаляет платеж и пересчитывает его договор.
// Возвращает false, если платежа не было.
func (s *PaymentService) DeletePayment(ctx context.Context, id uuid.UUID) (bool, error) {
	current, err := s.repo.FindPayment(ctx, id)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("ошибка при получении платежа: %w", err)
	}

	deleted := false
	settled := &settlement{}
	err = s.uow.run(ctx, current.ProjectID, func(ctx context.Context, tx database.Repository, project *models.Project) error {
		payment, err := tx.FindPayment(ctx, id)
		if err != nil {
			if IsNotFound(err) {
				return nil
			}
			return err
		}

		ok, err := tx.DeletePayment(ctx, id)
		if err != nil {
			return fmt.Errorf("ошибка при удалении платежа: %w", err)
		}
		if !ok {
			return nil
		}
		deleted = true

		if payment.ContractID != nil {
			return s.recompute(ctx, tx, *payment.ContractID, settled)
		}
		return nil
	})
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}

	s.notifySettled(ctx, settled)
	return deleted, nil
}

// notifySettled сообщает автору проекта о полностью оплаченных договорах.
// Ошибки отправки только логируются.
func (s *PaymentService) notifySettled(ctx context.Context, settled *settlement) {
	if s.notifier == nil || len(settled.contracts) == 0 {
		return
	}

	for i := range settled.contracts {
		contract := &settled.contracts[i]
		project, err := s.repo.FindProject(ctx, contract.ProjectID)
		if err != nil {
			utils.LogWarn("уведомление не отправлено: проект %s: %v", contract.ProjectID, err)
			continue
		}

		recipient := project.CreatedBy
		if recipient == nil {
			recipient = contract.CreatedBy
		}
		if recipient == nil {
			continue
		}
		user, err := s.repo.FindUser(ctx, *recipient)
		if err != nil {
			utils.LogWarn("уведомление не отправлено: пользователь %s: %v", *recipient, err)
			continue
		}

		if err := s.notifier.ContractSettled(user.Email, project, contract); err != nil {
			utils.RecordNotificationError()
			utils.WithFields(utils.Fields{
				"contract_id": contract.ID,
				"to":          user.Email,
			}).WithError(err).Error("ошибка отправки уведомления об оплате договора")
		}
	}
}
