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

// CreateContractDTO представляет данные для создания договора
type CreateContractDTO struct {
	ProjectID   uuid.UUID             `json:"project_id" validate:"required"`
	Title       string                `json:"title" validate:"required,min=1,max=200"`
	Code        string                `json:"code" validate:"max=50"`
	Description string                `json:"description"`
	StartDate   *time.Time            `json:"start_date"`
	Status      models.ContractStatus `json:"status" validate:"omitempty,oneof=new in_progress delivery completed"`
	ValueEUR    *decimal.Decimal      `json:"value_eur" validate:"required,gte=0"`
}

// UpdateContractDTO представляет частичное изменение договора
type UpdateContractDTO struct {
	Title       *string                `json:"title" validate:"omitempty,min=1,max=200"`
	Code        *string                `json:"code" validate:"omitempty,max=50"`
	Description *string                `json:"description"`
	StartDate   *time.Time             `json:"start_date"`
	Status      *models.ContractStatus `json:"status" validate:"omitempty,oneof=new in_progress delivery completed"`
	ValueEUR    *decimal.Decimal       `json:"value_eur" validate:"omitempty,gte=0"`
}

// ContractService предоставляет методы для работы с договорами
type ContractService struct {
	repo      database.Repository
	finance   *FinanceService
	uow       unitOfWork
	validator *validator.Validate
}

// NewContractService создает новый экземпляр ContractService
func NewContractService(repo database.Repository, finance *FinanceService, locks *utils.KeyedMutex) *ContractService {
	return &ContractService{
		repo:      repo,
		finance:   finance,
		uow:       newUnitOfWork(repo, locks),
		validator: newValidator(),
	}
}

// CreateContract создает договор: оплачено 0, остаток равен стоимости.
// Итоги проекта пересчитываются в той же транзакции.
func (s *ContractService) CreateContract(ctx context.Context, dto CreateContractDTO, actor *models.User) (*models.Contract, error) {
	startTime := time.Now()
	dto.Title = strings.TrimSpace(dto.Title)
	if err := validateStruct(s.validator, dto); err != nil {
		return nil, err
	}

	value := money(*dto.ValueEUR)
	contract := &models.Contract{
		ProjectID:    dto.ProjectID,
		Title:        dto.Title,
		Code:         dto.Code,
		Description:  dto.Description,
		StartDate:    dto.StartDate,
		Status:       dto.Status,
		ValueEUR:     value,
		PaidEUR:      decimal.Zero,
		RemainingEUR: value,
	}
	if contract.Status == "" {
		contract.Status = models.ContractStatusNew
	}
	if actor != nil {
		contract.CreatedBy = &actor.ID
	}

	err := s.uow.run(ctx, dto.ProjectID, func(ctx context.Context, tx database.Repository, project *models.Project) error {
		if err := tx.InsertContract(ctx, contract); err != nil {
			return fmt.Errorf("ошибка при создании договора: %w", err)
		}
		_, err := s.finance.RecomputeProject(ctx, tx, project.ID)
		return err
	})
	utils.LogOperation("create contract", startTime, err)
	if err != nil {
		return nil, err
	}
	return contract, nil
}

// GetContract возвращает договор по идентификатору
func (s *ContractService) GetContract(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	contract, err := s.repo.FindContract(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrContractNotFound)
	}
	return contract, nil
}

// ListByProject возвращает договоры проекта
func (s *ContractService) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Contract, error) {
	if _, err := s.repo.FindProject(ctx, projectID); err != nil {
		return nil, notFound(err, ErrProjectNotFound)
	}
	contracts, err := s.repo.ListContractsByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении договоров: %w", err)
	}
	return contracts, nil
}

// UpdateContract применяет частичное изменение к договору.
// Стоимость можно менять вручную, только пока по договору нет платежей:
// после этого она выводится из платежей.
func (s *ContractService) UpdateContract(ctx context.Context, id uuid.UUID, dto UpdateContractDTO) (*models.Contract, error) {
	if err := validateStruct(s.validator, dto); err != nil {
		return nil, err
	}
	if dto.Title != nil {
		title := strings.TrimSpace(*dto.Title)
		if title == "" {
			return nil, newValidationError("поле Title обязательно")
		}
		dto.Title = &title
	}

	current, err := s.repo.FindContract(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrContractNotFound)
	}

	var result *models.Contract
	err = s.uow.run(ctx, current.ProjectID, func(ctx context.Context, tx database.Repository, project *models.Project) error {
		contract, err := tx.FindContract(ctx, id)
		if err != nil {
			return notFound(err, ErrContractNotFound)
		}

		if dto.Title != nil {
			contract.Title = *dto.Title
		}
		if dto.Code != nil {
			contract.Code = *dto.Code
		}
		if dto.Description != nil {
			contract.Description = *dto.Description
		}
		if dto.StartDate != nil {
			contract.StartDate = dto.StartDate
		}
		if dto.Status != nil {
			contract.Status = *dto.Status
		}

		valueChanged := false
		if dto.ValueEUR != nil {
			value := money(*dto.ValueEUR)
			if !value.Equal(contract.ValueEUR) {
				count, err := tx.CountPaymentsByContract(ctx, id)
				if err != nil {
					return fmt.Errorf("ошибка при подсчете платежей договора: %w", err)
				}
				if count > 0 {
					return newValidationError("стоимость договора с платежами определяется платежами")
				}
				contract.ValueEUR = value
				contract.RemainingEUR = value.Sub(contract.PaidEUR)
				valueChanged = true
			}
		}

		if err := tx.UpdateContract(ctx, contract); err != nil {
			return fmt.Errorf("ошибка при обновлении договора: %w", err)
		}
		if valueChanged {
			if _, err := s.finance.RecomputeProject(ctx, tx, project.ID); err != nil {
				return err
			}
		}
		result = contract
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteContract удаляет договор вместе с его платежами.
// Возвращает false, если договора не было.
func (s *ContractService) DeleteContract(ctx context.Context, id uuid.UUID) (bool, error) {
	current, err := s.repo.FindContract(ctx, id)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("ошибка при получении договора: %w", err)
	}

	deleted := false
	err = s.uow.run(ctx, current.ProjectID, func(ctx context.Context, tx database.Repository, project *models.Project) error {
		if err := tx.DeletePaymentsByContract(ctx, id); err != nil {
			return fmt.Errorf("ошибка при удалении платежей договора: %w", err)
		}
		ok, err := tx.DeleteContract(ctx, id)
		if err != nil {
			return fmt.Errorf("ошибка при удалении договора: %w", err)
		}
		if !ok {
			return nil
		}
		deleted = true
		_, err = s.finance.RecomputeProject(ctx, tx, project.ID)
		return err
	})
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return deleted, nil
}
