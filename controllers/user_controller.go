package controllers

import (
	"net/http"
	"time"

	"fabrikaProject/middleware"
	"fabrikaProject/services"
)

// Token ответ с выпущенным токеном
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// UserController обрабатывает запросы, связанные с пользователями
type UserController struct {
	users     *services.UserService
	jwtKey    []byte
	expiresIn time.Duration
}

// NewUserController создает новый экземпляр UserController
func NewUserController(users *services.UserService, jwtKey []byte, expiresIn time.Duration) *UserController {
	return &UserController{
		users:     users,
		jwtKey:    jwtKey,
		expiresIn: expiresIn,
	}
}

// CreateUser обрабатывает запрос на создание пользователя
func (c *UserController) CreateUser(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}

	var req services.CreateUserRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := c.users.CreateUser(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// GetUsers возвращает список пользователей
func (c *UserController) GetUsers(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(w, r); !ok {
		return
	}

	users, err := c.users.ListUsers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// IssueToken выпускает токен для пользователя
func (c *UserController) IssueToken(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	user, err := c.users.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	token, err := middleware.GenerateToken(c.jwtKey, user, c.expiresIn)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Token{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   time.Now().Add(c.expiresIn),
	})
}
