package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentStatus представляет статус платежа
type PaymentStatus string

const (
	PaymentStatusUnpaid  PaymentStatus = "unpaid"  // Не оплачен
	PaymentStatusPartial PaymentStatus = "partial" // Оплачен частично
	PaymentStatusPaid    PaymentStatus = "paid"    // Оплачен
)

// CurrencyEUR валюта, в которой ведется весь учет
const CurrencyEUR = "EUR"

// Payment представляет транш оплаты по проекту и, возможно, по договору
type Payment struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID  uuid.UUID  `gorm:"column:project_id;type:uuid;not null;index" json:"project_id"`
	ContractID *uuid.UUID `gorm:"column:contract_id;type:uuid;index" json:"contract_id,omitempty"`
	Label      string     `gorm:"column:label;not null;size:200" json:"label"`

	// Номинальная сумма транша
	AmountEUR decimal.Decimal `gorm:"column:amount_eur;type:decimal(20,2);not null" json:"amount_eur"`
	// Валюта и сумма, в которых платеж был введен
	Currency       string              `gorm:"column:currency;type:varchar(3);not null;default:'EUR'" json:"currency"`
	OriginalAmount decimal.NullDecimal `gorm:"column:original_amount;type:decimal(20,2)" json:"original_amount,omitempty"`

	DueDate       *time.Time          `gorm:"column:due_date;index" json:"due_date,omitempty"`
	Status        PaymentStatus       `gorm:"column:status;type:varchar(20);not null;default:'unpaid'" json:"status"`
	PaidAmountEUR decimal.NullDecimal `gorm:"column:paid_amount_eur;type:decimal(20,2)" json:"paid_amount_eur,omitempty"`
	PaidAt        *time.Time          `gorm:"column:paid_at" json:"paid_at,omitempty"`
	Comment       string              `gorm:"column:comment;type:text" json:"comment"`

	CreatedBy    *uuid.UUID `gorm:"column:created_by;type:uuid" json:"created_by,omitempty"`
	CreatedAt    time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"column:updated_at" json:"updated_at"`
	MarkedPaidBy *uuid.UUID `gorm:"column:marked_paid_by;type:uuid" json:"marked_paid_by,omitempty"`
	MarkedPaidAt *time.Time `gorm:"column:marked_paid_at" json:"marked_paid_at,omitempty"`
}

// TableName возвращает имя таблицы для модели Payment
func (Payment) TableName() string {
	return "payments"
}

// BeforeCreate назначает идентификатор новому платежу
func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// EffectivePaidEUR возвращает вклад платежа в оплаченную сумму договора:
// paid - paid_amount, а если он не задан, вся сумма;
// partial - paid_amount или 0; unpaid - 0.
func (p *Payment) EffectivePaidEUR() decimal.Decimal {
	switch p.Status {
	case PaymentStatusPaid:
		if p.PaidAmountEUR.Valid {
			return p.PaidAmountEUR.Decimal
		}
		return p.AmountEUR
	case PaymentStatusPartial:
		if p.PaidAmountEUR.Valid {
			return p.PaidAmountEUR.Decimal
		}
	}
	return decimal.Zero
}

// Overdue сообщает, просрочен ли платеж на момент now
func (p *Payment) Overdue(now time.Time) bool {
	return p.Status != PaymentStatusPaid && p.DueDate != nil && p.DueDate.Before(now)
}
