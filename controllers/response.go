package controllers

import (
	"encoding/json"
	"errors"
	"net/http"

	"fabrikaProject/middleware"
	"fabrikaProject/models"
	"fabrikaProject/services"
	"fabrikaProject/utils"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// errorResponse тело ответа с ошибкой
type errorResponse struct {
	Error    string   `json:"error"`
	Messages []string `json:"messages,omitempty"`
}

// writeJSON отправляет ответ в формате JSON
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		utils.LogError("ошибка записи ответа: %v", err)
	}
}

// writeError переводит ошибку сервиса в HTTP статус
func writeError(w http.ResponseWriter, err error) {
	var validationErr *services.ValidationError
	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Messages: validationErr.Messages})
	case services.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, services.ErrAccessDenied):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: err.Error()})
	default:
		utils.LogError("внутренняя ошибка: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
	}
}

// decodeBody читает JSON тело запроса
func decodeBody(w http.ResponseWriter, r *http.Request, dto interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dto); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return false
	}
	return true
}

// pathID читает идентификатор из пути запроса
func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

// currentUser возвращает пользователя, установленного AuthMiddleware
func currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user, err := middleware.GetUserFromContext(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Unauthorized"})
		return nil, false
	}
	return user, true
}

// requireAdmin пропускает только администраторов
func requireAdmin(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user, ok := currentUser(w, r)
	if !ok {
		return nil, false
	}
	if !user.IsAdmin() {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "Access denied"})
		return nil, false
	}
	return user, true
}
