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

// CreateProjectDTO представляет данные для создания проекта
type CreateProjectDTO struct {
	Name      string               `json:"name" validate:"required,min=2,max=200"`
	Status    models.ProjectStatus `json:"status" validate:"omitempty,oneof=new in_progress delivery completed cancelled"`
	StartDate *time.Time           `json:"start_date"`
	Comment   string               `json:"comment"`
}

// UpdateProjectDTO представляет частичное изменение проекта.
// Access содержит только переключаемые отделы.
type UpdateProjectDTO struct {
	Name      *string                    `json:"name" validate:"omitempty,min=2,max=200"`
	Status    *models.ProjectStatus      `json:"status" validate:"omitempty,oneof=new in_progress delivery completed cancelled"`
	StartDate *time.Time                 `json:"start_date"`
	Comment   *string                    `json:"comment"`
	Archived  *bool                      `json:"archived"`
	Access    map[models.Department]bool `json:"access"`
}

// AddMemberDTO представляет данные для добавления участника
type AddMemberDTO struct {
	UserID uuid.UUID `json:"user_id" validate:"required"`
}

// ProjectService предоставляет методы для работы с проектами
type ProjectService struct {
	repo      database.Repository
	uow       unitOfWork
	validator *validator.Validate
}

// NewProjectService создает новый экземпляр ProjectService
func NewProjectService(repo database.Repository, locks *utils.KeyedMutex) *ProjectService {
	return &ProjectService{
		repo:      repo,
		uow:       newUnitOfWork(repo, locks),
		validator: newValidator(),
	}
}

// CreateProject создает проект с нулевыми итогами, открытый только отделу продаж
func (s *ProjectService) CreateProject(ctx context.Context, dto CreateProjectDTO, actor *models.User) (*models.Project, error) {
	dto.Name = strings.TrimSpace(dto.Name)
	if err := validateStruct(s.validator, dto); err != nil {
		return nil, err
	}

	project := &models.Project{
		Name:          dto.Name,
		Status:        dto.Status,
		StartDate:     dto.StartDate,
		Comment:       dto.Comment,
		TotalValueEUR: decimal.Zero,
		PaidEUR:       decimal.Zero,
		RemainingEUR:  decimal.Zero,
		Access:        models.DefaultAccess(),
	}
	if project.Status == "" {
		project.Status = models.ProjectStatusNew
	}
	if actor != nil {
		project.CreatedBy = &actor.ID
	}

	if err := s.repo.InsertProject(ctx, project); err != nil {
		return nil, fmt.Errorf("ошибка при создании проекта: %w", err)
	}

	utils.WithFields(utils.Fields{"project_id": project.ID, "name": project.Name}).Info("создан проект")
	return project, nil
}

// GetProject возвращает проект по идентификатору
func (s *ProjectService) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	project, err := s.repo.FindProject(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrProjectNotFound)
	}
	return project, nil
}

// GetVisibleProject возвращает проект, если пользователь его видит
func (s *ProjectService) GetVisibleProject(ctx context.Context, id uuid.UUID, user *models.User) (*models.Project, error) {
	project, err := s.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}

	var members []models.ProjectMember
	if user != nil && !user.IsAdmin() {
		members, err = s.repo.ListMembersByUser(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("ошибка при получении участников: %w", err)
		}
	}

	if !CanView(user, project, members) {
		return nil, ErrAccessDenied
	}
	return project, nil
}

// ListVisible возвращает проекты, видимые пользователю
func (s *ProjectService) ListVisible(ctx context.Context, user *models.User) ([]models.Project, error) {
	projects, err := s.repo.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении проектов: %w", err)
	}
	if user == nil {
		return []models.Project{}, nil
	}

	members, err := s.repo.ListMembersByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении участников: %w", err)
	}
	return VisibleProjects(user, projects, members), nil
}

// UpdateProject применяет частичное изменение к проекту.
// Финансовые поля здесь не меняются.
func (s *ProjectService) UpdateProject(ctx context.Context, id uuid.UUID, dto UpdateProjectDTO) (*models.Project, error) {
	if dto.Name != nil {
		name := strings.TrimSpace(*dto.Name)
		dto.Name = &name
	}
	if err := validateStruct(s.validator, dto); err != nil {
		return nil, err
	}
	for d := range dto.Access {
		if !d.Valid() {
			return nil, newValidationError("неизвестный отдел: " + string(d))
		}
	}

	var result *models.Project
	err := s.uow.run(ctx, id, func(ctx context.Context, tx database.Repository, project *models.Project) error {
		if dto.Name != nil {
			project.Name = *dto.Name
		}
		if dto.Status != nil {
			project.Status = *dto.Status
		}
		if dto.StartDate != nil {
			project.StartDate = dto.StartDate
		}
		if dto.Comment != nil {
			project.Comment = *dto.Comment
		}
		if dto.Archived != nil {
			switch {
			case *dto.Archived && project.ArchivedAt == nil:
				now := time.Now()
				project.ArchivedAt = &now
			case !*dto.Archived:
				project.ArchivedAt = nil
			}
		}
		for d, open := range dto.Access {
			if err := project.Access.Set(d, open); err != nil {
				return newValidationError(err.Error())
			}
		}

		if err := tx.UpdateProject(ctx, project); err != nil {
			return fmt.Errorf("ошибка при обновлении проекта: %w", err)
		}
		result = project
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteProject удаляет проект вместе с договорами, платежами и участниками.
// Возвращает false, если проекта не было.
func (s *ProjectService) DeleteProject(ctx context.Context, id uuid.UUID) (bool, error) {
	err := s.uow.run(ctx, id, func(ctx context.Context, tx database.Repository, project *models.Project) error {
		if err := tx.DeletePaymentsByProject(ctx, id); err != nil {
			return fmt.Errorf("ошибка при удалении платежей проекта: %w", err)
		}
		if err := tx.DeleteContractsByProject(ctx, id); err != nil {
			return fmt.Errorf("ошибка при удалении договоров проекта: %w", err)
		}
		if err := tx.DeleteMembersByProject(ctx, id); err != nil {
			return fmt.Errorf("ошибка при удалении участников проекта: %w", err)
		}
		if _, err := tx.DeleteProject(ctx, id); err != nil {
			return fmt.Errorf("ошибка при удалении проекта: %w", err)
		}
		return nil
	})
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}

	utils.WithFields(utils.Fields{"project_id": id}).Info("проект удален")
	return true, nil
}

// AddMember открывает проект пользователю. Повторное добавление ничего не меняет.
func (s *ProjectService) AddMember(ctx context.Context, projectID uuid.UUID, dto AddMemberDTO) (*models.ProjectMember, error) {
	if err := validateStruct(s.validator, dto); err != nil {
		return nil, err
	}

	if _, err := s.repo.FindProject(ctx, projectID); err != nil {
		return nil, notFound(err, ErrProjectNotFound)
	}
	if _, err := s.repo.FindUser(ctx, dto.UserID); err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}

	member := &models.ProjectMember{ProjectID: projectID, UserID: dto.UserID}
	if err := s.repo.InsertMember(ctx, member); err != nil {
		return nil, fmt.Errorf("ошибка при добавлении участника: %w", err)
	}
	return member, nil
}

// RemoveMember убирает участника проекта. Возвращает false, если его не было.
func (s *ProjectService) RemoveMember(ctx context.Context, projectID, userID uuid.UUID) (bool, error) {
	removed, err := s.repo.DeleteMember(ctx, projectID, userID)
	if err != nil {
		return false, fmt.Errorf("ошибка при удалении участника: %w", err)
	}
	return removed, nil
}
