package controllers

import (
	"net/http"
	"time"

	"fabrikaProject/models"
	"fabrikaProject/services"
	"fabrikaProject/utils"

	"github.com/google/uuid"
)

// ProjectController обрабатывает запросы, связанные с проектами
type ProjectController struct {
	projects  *services.ProjectService
	contracts *services.ContractService
	payments  *services.PaymentService
	finance   *services.FinanceService
	reports   *services.ReportService
}

// NewProjectController создает новый экземпляр ProjectController
func NewProjectController(
	projects *services.ProjectService,
	contracts *services.ContractService,
	payments *services.PaymentService,
	finance *services.FinanceService,
	reports *services.ReportService,
) *ProjectController {
	return &ProjectController{
		projects:  projects,
		contracts: contracts,
		payments:  payments,
		finance:   finance,
		reports:   reports,
	}
}

// visibleProject проверяет, что пользователь видит проект из пути запроса
func (c *ProjectController) visibleProject(w http.ResponseWriter, r *http.Request) (*models.Project, bool) {
	user, ok := currentUser(w, r)
	if !ok {
		return nil, false
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return nil, false
	}
	project, err := c.projects.GetVisibleProject(r.Context(), id, user)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return project, true
}

// CreateProject обрабатывает запрос на создание проекта
func (c *ProjectController) CreateProject(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var dto services.CreateProjectDTO
	if !decodeBody(w, r, &dto) {
		return
	}

	project, err := c.projects.CreateProject(r.Context(), dto, user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

// GetProjects возвращает проекты, видимые текущему пользователю
func (c *ProjectController) GetProjects(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	projects, err := c.projects.ListVisible(r.Context(), user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

// GetProject возвращает проект
func (c *ProjectController) GetProject(w http.ResponseWriter, r *http.Request) {
	project, ok := c.visibleProject(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// UpdateProject обрабатывает запрос на изменение проекта
func (c *ProjectController) UpdateProject(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var dto services.UpdateProjectDTO
	if !decodeBody(w, r, &dto) {
		return
	}

	project, err := c.projects.UpdateProject(r.Context(), id, dto)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// DeleteProject обрабатывает запрос на удаление проекта
func (c *ProjectController) DeleteProject(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	deleted, err := c.projects.DeleteProject(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !deleted {
		writeError(w, services.ErrProjectNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetFinancials возвращает итоги проекта
func (c *ProjectController) GetFinancials(w http.ResponseWriter, r *http.Request) {
	project, ok := c.visibleProject(w, r)
	if !ok {
		return
	}

	financials, err := c.finance.GetProjectFinancials(r.Context(), project.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, financials)
}

// GetContracts возвращает договоры проекта
func (c *ProjectController) GetContracts(w http.ResponseWriter, r *http.Request) {
	project, ok := c.visibleProject(w, r)
	if !ok {
		return
	}

	contracts, err := c.contracts.ListByProject(r.Context(), project.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contracts)
}

// GetPayments возвращает платежи проекта
func (c *ProjectController) GetPayments(w http.ResponseWriter, r *http.Request) {
	project, ok := c.visibleProject(w, r)
	if !ok {
		return
	}

	payments, err := c.payments.ListByProject(r.Context(), project.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payments)
}

// AddMember открывает проект пользователю
func (c *ProjectController) AddMember(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var dto services.AddMemberDTO
	if !decodeBody(w, r, &dto) {
		return
	}

	member, err := c.projects.AddMember(r.Context(), id, dto)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, member)
}

// RemoveMember закрывает проект пользователю
func (c *ProjectController) RemoveMember(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	userID, ok := pathID(w, r, "user_id")
	if !ok {
		return
	}

	removed, err := c.projects.RemoveMember(r.Context(), id, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !removed {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "участник не найден"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetReport отдает книгу XLSX с итогами проекта
func (c *ProjectController) GetReport(w http.ResponseWriter, r *http.Request) {
	project, ok := c.visibleProject(w, r)
	if !ok {
		return
	}

	f, err := c.reports.ProjectWorkbook(r.Context(), project.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	defer f.Close()

	fileName := services.ReportFileName(project, time.Now())
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename="+fileName)
	if err := f.Write(w); err != nil {
		utils.LogError("ошибка записи отчета по проекту %s: %v", project.ID, err)
	}
}

// checkProjectAccess проверяет, что пользователь видит проект
func checkProjectAccess(w http.ResponseWriter, r *http.Request, projects *services.ProjectService, user *models.User, projectID uuid.UUID) bool {
	if _, err := projects.GetVisibleProject(r.Context(), projectID, user); err != nil {
		writeError(w, err)
		return false
	}
	return true
}
