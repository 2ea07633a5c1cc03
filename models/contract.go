package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ContractStatus представляет статус договора
type ContractStatus string

const (
	ContractStatusNew        ContractStatus = "new"
	ContractStatusInProgress ContractStatus = "in_progress"
	ContractStatusDelivery   ContractStatus = "delivery"
	ContractStatusCompleted  ContractStatus = "completed"
)

// Contract представляет договор внутри проекта
type Contract struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID   uuid.UUID      `gorm:"column:project_id;type:uuid;not null;index" json:"project_id"`
	Title       string         `gorm:"column:title;not null;size:200" json:"title"`
	Code        string         `gorm:"column:code;size:50" json:"code"`
	Description string         `gorm:"column:description;type:text" json:"description"`
	StartDate   *time.Time     `gorm:"column:start_date" json:"start_date,omitempty"`
	Status      ContractStatus `gorm:"column:status;type:varchar(20);not null;default:'new'" json:"status"`
	CreatedBy   *uuid.UUID     `gorm:"column:created_by;type:uuid" json:"created_by,omitempty"`
	CreatedAt   time.Time      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"column:updated_at" json:"updated_at"`

	ValueEUR     decimal.Decimal `gorm:"column:value_eur;type:decimal(20,2);not null;default:0" json:"value_eur"`
	PaidEUR      decimal.Decimal `gorm:"column:paid_eur;type:decimal(20,2);not null;default:0" json:"paid_eur"`
	RemainingEUR decimal.Decimal `gorm:"column:remaining_eur;type:decimal(20,2);not null;default:0" json:"remaining_eur"`
}

func (Contract) TableName() string {
	return "contracts"
}

// BeforeCreate назначает идентификатор новому договору
func (c *Contract) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Settled сообщает, что по договору с ненулевой суммой оплачено все
func (c *Contract) Settled() bool {
	return c.ValueEUR.IsPositive() && !c.RemainingEUR.IsPositive()
}
