package controllers

import (
	"net/http"

	"fabrikaProject/services"
)

// PaymentController обрабатывает запросы, связанные с платежами
type PaymentController struct {
	payments *services.PaymentService
	projects *services.ProjectService
}

// NewPaymentController создает новый экземпляр PaymentController
func NewPaymentController(payments *services.PaymentService, projects *services.ProjectService) *PaymentController {
	return &PaymentController{
		payments: payments,
		projects: projects,
	}
}

// CreatePayment обрабатывает запрос на создание платежа
func (c *PaymentController) CreatePayment(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var dto services.CreatePaymentDTO
	if !decodeBody(w, r, &dto) {
		return
	}
	if !checkProjectAccess(w, r, c.projects, user, dto.ProjectID) {
		return
	}

	payment, err := c.payments.CreatePayment(r.Context(), dto, user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, payment)
}

// UpdatePayment обрабатывает запрос на изменение платежа
func (c *PaymentController) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var dto services.UpdatePaymentDTO
	if !decodeBody(w, r, &dto) {
		return
	}

	current, err := c.payments.GetPayment(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !checkProjectAccess(w, r, c.projects, user, current.ProjectID) {
		return
	}

	payment, err := c.payments.UpdatePayment(r.Context(), id, dto, user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payment)
}

// DeletePayment обрабатывает запрос на удаление платежа
func (c *PaymentController) DeletePayment(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	current, err := c.payments.GetPayment(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !checkProjectAccess(w, r, c.projects, user, current.ProjectID) {
		return
	}

	deleted, err := c.payments.DeletePayment(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !deleted {
		writeError(w, services.ErrPaymentNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
