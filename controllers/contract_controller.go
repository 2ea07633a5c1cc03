package controllers

import (
	"net/http"

	"fabrikaProject/services"
)

// ContractController обрабатывает запросы, связанные с договорами
type ContractController struct {
	contracts *services.ContractService
	projects  *services.ProjectService
	finance   *services.FinanceService
}

// NewContractController создает новый экземпляр ContractController
func NewContractController(contracts *services.ContractService, projects *services.ProjectService, finance *services.FinanceService) *ContractController {
	return &ContractController{
		contracts: contracts,
		projects:  projects,
		finance:   finance,
	}
}

// CreateContract обрабатывает запрос на создание договора
func (c *ContractController) CreateContract(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var dto services.CreateContractDTO
	if !decodeBody(w, r, &dto) {
		return
	}
	if !checkProjectAccess(w, r, c.projects, user, dto.ProjectID) {
		return
	}

	contract, err := c.contracts.CreateContract(r.Context(), dto, user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, contract)
}

// UpdateContract обрабатывает запрос на изменение договора
func (c *ContractController) UpdateContract(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var dto services.UpdateContractDTO
	if !decodeBody(w, r, &dto) {
		return
	}

	current, err := c.contracts.GetContract(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !checkProjectAccess(w, r, c.projects, user, current.ProjectID) {
		return
	}

	contract, err := c.contracts.UpdateContract(r.Context(), id, dto)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contract)
}

// DeleteContract обрабатывает запрос на удаление договора
func (c *ContractController) DeleteContract(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	current, err := c.contracts.GetContract(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !checkProjectAccess(w, r, c.projects, user, current.ProjectID) {
		return
	}

	deleted, err := c.contracts.DeleteContract(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !deleted {
		writeError(w, services.ErrContractNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetFinancials возвращает итоги договора
func (c *ContractController) GetFinancials(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	contract, err := c.contracts.GetContract(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !checkProjectAccess(w, r, c.projects, user, contract.ProjectID) {
		return
	}

	financials, err := c.finance.GetContractFinancials(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, financials)
}
