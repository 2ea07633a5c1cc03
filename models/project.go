package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProjectStatus представляет статус проекта
type ProjectStatus string

const (
	ProjectStatusNew        ProjectStatus = "new"
	ProjectStatusInProgress ProjectStatus = "in_progress"
	ProjectStatusDelivery   ProjectStatus = "delivery"
	ProjectStatusCompleted  ProjectStatus = "completed"
	ProjectStatusCancelled  ProjectStatus = "cancelled"
)

// Project представляет проект (заказ) производства.
// Финансовые поля производные: это суммы по договорам проекта.
type Project struct {
	ID         uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	Name       string        `gorm:"column:name;not null;size:200" json:"name"`
	Status     ProjectStatus `gorm:"column:status;type:varchar(20);not null;default:'new'" json:"status"`
	CreatedBy  *uuid.UUID    `gorm:"column:created_by;type:uuid" json:"created_by,omitempty"`
	CreatedAt  time.Time     `gorm:"column:created_at" json:"created_at"`
	UpdatedAt  time.Time     `gorm:"column:updated_at" json:"updated_at"`
	StartDate  *time.Time    `gorm:"column:start_date" json:"start_date,omitempty"`
	ArchivedAt *time.Time    `gorm:"column:archived_at" json:"archived_at,omitempty"`
	Comment    string        `gorm:"column:comment;type:text" json:"comment"`

	TotalValueEUR decimal.Decimal `gorm:"column:total_value_eur;type:decimal(20,2);not null;default:0" json:"total_value_eur"`
	PaidEUR       decimal.Decimal `gorm:"column:paid_eur;type:decimal(20,2);not null;default:0" json:"paid_eur"`
	RemainingEUR  decimal.Decimal `gorm:"column:remaining_eur;type:decimal(20,2);not null;default:0" json:"remaining_eur"`

	Access DepartmentAccess `gorm:"embedded;embeddedPrefix:access_" json:"access"`
}

func (Project) TableName() string {
	return "projects"
}

// BeforeCreate назначает идентификатор новому проекту
func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Archived сообщает, находится ли проект в архиве
func (p *Project) Archived() bool {
	return p.ArchivedAt != nil
}

// ProjectMember явно открывает проект конкретному пользователю
// независимо от доступа его отдела
type ProjectMember struct {
	ProjectID uuid.UUID `gorm:"type:uuid;primaryKey" json:"project_id"`
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey;index" json:"user_id"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (ProjectMember) TableName() string {
	return "project_members"
}
