package services

import (
	"context"
	"fmt"
	"strings"

	"fabrikaProject/database"
	"fabrikaProject/models"
	"fabrikaProject/utils"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type UserService struct {
	repo      database.Repository
	validator *validator.Validate
}

type CreateUserRequest struct {
	Name       string            `json:"name" validate:"required,min=2,max=100"`
	Email      string            `json:"email" validate:"required,email,max=100"`
	Role       models.Role       `json:"role" validate:"omitempty,oneof=admin manager employee"`
	Department models.Department `json:"department" validate:"required"`
}

func NewUserService(repo database.Repository) *UserService {
	return &UserService{repo: repo, validator: newValidator()}
}

// CreateUser создает нового пользователя
func (s *UserService) CreateUser(ctx context.Context, req CreateUserRequest) (*models.User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if err := validateStruct(s.validator, req); err != nil {
		return nil, err
	}
	if !req.Department.Valid() {
		return nil, newValidationError("неизвестный отдел: " + string(req.Department))
	}

	// Проверяем, существует ли пользователь с таким email
	if _, err := s.repo.FindUserByEmail(ctx, req.Email); err == nil {
		return nil, newValidationError("user with this email already exists")
	} else if !IsNotFound(err) {
		return nil, err
	}

	user := &models.User{
		Name:       req.Name,
		Email:      req.Email,
		Role:       req.Role,
		Department: req.Department,
	}
	if user.Role == "" {
		user.Role = models.RoleEmployee
	}

	if err := s.repo.InsertUser(ctx, user); err != nil {
		return nil, fmt.Errorf("ошибка при создании пользователя: %w", err)
	}
	return user, nil
}

// FindByID ищет пользователя по ID
func (s *UserService) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.repo.FindUser(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	return user, nil
}

// FindByEmail ищет пользователя по email (игнорируя регистр)
func (s *UserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := s.repo.FindUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	return user, nil
}

// ListUsers возвращает всех пользователей
func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.repo.ListUsers(ctx)
}

// EnsureAdmin возвращает администратора с указанным email, создавая его при первом запуске
func (s *UserService) EnsureAdmin(ctx context.Context, email, name string) (*models.User, error) {
	user, err := s.FindByEmail(ctx, email)
	if err == nil {
		if !user.IsAdmin() {
			return nil, fmt.Errorf("пользователь %s существует, но не является администратором", email)
		}
		return user, nil
	}
	if !IsNotFound(err) {
		return nil, err
	}

	user, err = s.CreateUser(ctx, CreateUserRequest{
		Name:       name,
		Email:      email,
		Role:       models.RoleAdmin,
		Department: models.DepartmentSales,
	})
	if err != nil {
		return nil, err
	}
	utils.LogInfo("создан администратор %s", user.Email)
	return user, nil
}
