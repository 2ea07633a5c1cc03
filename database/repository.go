package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fabrikaProject/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound возвращается, когда запись с указанным идентификатором отсутствует
var ErrNotFound = errors.New("запись не найдена")

// Repository описывает хранилище проектов, договоров и платежей.
// Сервисы работают только через этот интерфейс.
type Repository interface {
	// WithinTx выполняет fn в одной транзакции
	WithinTx(ctx context.Context, fn func(repo Repository) error) error

	// LockProject читает проект с блокировкой строки до конца транзакции
	LockProject(ctx context.Context, id uuid.UUID) (*models.Project, error)
	FindProject(ctx context.Context, id uuid.UUID) (*models.Project, error)
	ListProjects(ctx context.Context) ([]models.Project, error)
	InsertProject(ctx context.Context, project *models.Project) error
	UpdateProject(ctx context.Context, project *models.Project) error
	DeleteProject(ctx context.Context, id uuid.UUID) (bool, error)

	FindContract(ctx context.Context, id uuid.UUID) (*models.Contract, error)
	ListContracts(ctx context.Context) ([]models.Contract, error)
	ListContractsByProject(ctx context.Context, projectID uuid.UUID) ([]models.Contract, error)
	InsertContract(ctx context.Context, contract *models.Contract) error
	UpdateContract(ctx context.Context, contract *models.Contract) error
	DeleteContract(ctx context.Context, id uuid.UUID) (bool, error)
	DeleteContractsByProject(ctx context.Context, projectID uuid.UUID) error

	FindPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	ListPaymentsByContract(ctx context.Context, contractID uuid.UUID) ([]models.Payment, error)
	ListPaymentsByProject(ctx context.Context, projectID uuid.UUID) ([]models.Payment, error)
	CountPaymentsByContract(ctx context.Context, contractID uuid.UUID) (int64, error)
	ListOpenPaymentsDueBefore(ctx context.Context, before time.Time) ([]models.Payment, error)
	InsertPayment(ctx context.Context, payment *models.Payment) error
	UpdatePayment(ctx context.Context, payment *models.Payment) error
	DeletePayment(ctx context.Context, id uuid.UUID) (bool, error)
	DeletePaymentsByContract(ctx context.Context, contractID uuid.UUID) error
	DeletePaymentsByProject(ctx context.Context, projectID uuid.UUID) error

	ListMembers(ctx context.Context) ([]models.ProjectMember, error)
	ListMembersByUser(ctx context.Context, userID uuid.UUID) ([]models.ProjectMember, error)
	InsertMember(ctx context.Context, member *models.ProjectMember) error
	DeleteMember(ctx context.Context, projectID, userID uuid.UUID) (bool, error)
	DeleteMembersByProject(ctx context.Context, projectID uuid.UUID) error

	FindUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	InsertUser(ctx context.Context, user *models.User) error
}

// gormRepository реализует Repository поверх gorm
type gormRepository struct {
	db *gorm.DB
}

// NewRepository создает Repository поверх подключения gorm
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// Repository возвращает хранилище для этого подключения
func (d *Database) Repository() Repository {
	return NewRepository(d.DB)
}

func (r *gormRepository) WithinTx(ctx context.Context, fn func(repo Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}

// findByID ищет запись по первичному ключу и переводит gorm.ErrRecordNotFound в ErrNotFound
func findByID[T any](ctx context.Context, db *gorm.DB, id uuid.UUID) (*T, error) {
	var record T
	if err := db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

// deleteByID удаляет запись и сообщает, существовала ли она
func deleteByID[T any](ctx context.Context, db *gorm.DB, id uuid.UUID) (bool, error) {
	var record T
	result := db.WithContext(ctx).Delete(&record, "id = ?", id)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Проекты

func (r *gormRepository) LockProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	return findByID[models.Project](ctx, r.db.Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *gormRepository) FindProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	return findByID[models.Project](ctx, r.db, id)
}

func (r *gormRepository) ListProjects(ctx context.Context) ([]models.Project, error) {
	var projects []models.Project
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&projects).Error; err != nil {
		return nil, err
	}
	return projects, nil
}

func (r *gormRepository) InsertProject(ctx context.Context, project *models.Project) error {
	return r.db.WithContext(ctx).Create(project).Error
}

func (r *gormRepository) UpdateProject(ctx context.Context, project *models.Project) error {
	return r.db.WithContext(ctx).Save(project).Error
}

func (r *gormRepository) DeleteProject(ctx context.Context, id uuid.UUID) (bool, error) {
	return deleteByID[models.Project](ctx, r.db, id)
}

// Договоры

func (r *gormRepository) FindContract(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	return findByID[models.Contract](ctx, r.db, id)
}

func (r *gormRepository) ListContracts(ctx context.Context) ([]models.Contract, error) {
	var contracts []models.Contract
	if err := r.db.WithContext(ctx).Find(&contracts).Error; err != nil {
		return nil, err
	}
	return contracts, nil
}

func (r *gormRepository) ListContractsByProject(ctx context.Context, projectID uuid.UUID) ([]models.Contract, error) {
	var contracts []models.Contract
	if err := r.db.WithContext(ctx).Where("project_id = ?", projectID).Order("created_at ASC").Find(&contracts).Error; err != nil {
		return nil, err
	}
	return contracts, nil
}

func (r *gormRepository) InsertContract(ctx context.Context, contract *models.Contract) error {
	return r.db.WithContext(ctx).Create(contract).Error
}

func (r *gormRepository) UpdateContract(ctx context.Context, contract *models.Contract) error {
	return r.db.WithContext(ctx).Save(contract).Error
}

func (r *gormRepository) DeleteContract(ctx context.Context, id uuid.UUID) (bool, error) {
	return deleteByID[models.Contract](ctx, r.db, id)
}

func (r *gormRepository) DeleteContractsByProject(ctx context.Context, projectID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("project_id = ?", projectID).Delete(&models.Contract{}).Error
}

// Платежи

func (r *gormRepository) FindPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return findByID[models.Payment](ctx, r.db, id)
}

func (r *gormRepository) ListPaymentsByContract(ctx context.Context, contractID uuid.UUID) ([]models.Payment, error) {
	var payments []models.Payment
	if err := r.db.WithContext(ctx).Where("contract_id = ?", contractID).Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *gormRepository) ListPaymentsByProject(ctx context.Context, projectID uuid.UUID) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("due_date ASC").
		Order("created_at ASC").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *gormRepository) CountPaymentsByContract(ctx context.Context, contractID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Payment{}).Where("contract_id = ?", contractID).Count(&count).Error
	return count, err
}

func (r *gormRepository) ListOpenPaymentsDueBefore(ctx context.Context, before time.Time) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Where("due_date IS NOT NULL AND due_date < ? AND status <> ?", before, models.PaymentStatusPaid).
		Order("due_date ASC").
		Find(&payments).Error
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении просроченных платежей: %w", err)
	}
	return payments, nil
}

func (r *gormRepository) InsertPayment(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *gormRepository) UpdatePayment(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Save(payment).Error
}

func (r *gormRepository) DeletePayment(ctx context.Context, id uuid.UUID) (bool, error) {
	return deleteByID[models.Payment](ctx, r.db, id)
}

func (r *gormRepository) DeletePaymentsByContract(ctx context.Context, contractID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("contract_id = ?", contractID).Delete(&models.Payment{}).Error
}

func (r *gormRepository) DeletePaymentsByProject(ctx context.Context, projectID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("project_id = ?", projectID).Delete(&models.Payment{}).Error
}

// Участники проектов

func (r *gormRepository) ListMembers(ctx context.Context) ([]models.ProjectMember, error) {
	var members []models.ProjectMember
	if err := r.db.WithContext(ctx).Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

func (r *gormRepository) ListMembersByUser(ctx context.Context, userID uuid.UUID) ([]models.ProjectMember, error) {
	var members []models.ProjectMember
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

func (r *gormRepository) InsertMember(ctx context.Context, member *models.ProjectMember) error {
	// Повторное добавление участника ничего не меняет
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(member).Error
}

func (r *gormRepository) DeleteMember(ctx context.Context, projectID, userID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Delete(&models.ProjectMember{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *gormRepository) DeleteMembersByProject(ctx context.Context, projectID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("project_id = ?", projectID).Delete(&models.ProjectMember{}).Error
}

// Пользователи

func (r *gormRepository) FindUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return findByID[models.User](ctx, r.db, id)
}

func (r *gormRepository) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("LOWER(email) = LOWER(?)", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *gormRepository) InsertUser(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}
