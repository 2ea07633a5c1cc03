package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fabrikaProject/config"
	"fabrikaProject/controllers"
	"fabrikaProject/database/dbtest"
	"fabrikaProject/middleware"
	"fabrikaProject/models"
	"fabrikaProject/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiClient struct {
	t       *testing.T
	handler http.Handler
}

func (c *apiClient) do(method, path, token string, body interface{}, out interface{}) int {
	c.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	c.handler.ServeHTTP(rr, req)
	if out != nil && rr.Code < 300 {
		require.NoError(c.t, json.Unmarshal(rr.Body.Bytes(), out), rr.Body.String())
	}
	return rr.Code
}

func newTestApp(t *testing.T) (*application, *apiClient) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.JWT.SecretKey = "test-secret"
	cfg.JWT.ExpiresIn = 1
	cfg.Admin.Email = "admin@example.com"
	cfg.Admin.Name = "Administrator"

	app := newApplication(cfg, dbtest.Repository(t), nil, nil)
	require.NoError(t, app.bootstrapAdmin(context.Background()))
	return app, &apiClient{t: t, handler: app.router()}
}

func adminToken(t *testing.T, app *application, api *apiClient) string {
	t.Helper()
	admin, err := app.users.FindByEmail(context.Background(), app.cfg.Admin.Email)
	require.NoError(t, err)

	var token controllers.Token
	require.Equal(t, http.StatusOK, api.do(http.MethodPost, "/api/users/"+admin.ID.String()+"/token", mustToken(t, app, admin), nil, &token))
	assert.Equal(t, "Bearer", token.TokenType)
	return token.AccessToken
}

func mustToken(t *testing.T, app *application, user *models.User) string {
	t.Helper()
	token, err := middleware.GenerateToken([]byte(app.cfg.JWT.SecretKey), user, time.Hour)
	require.NoError(t, err)
	return token
}

func requireAmount(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	require.True(t, decimal.RequireFromString(expected).Equal(actual), "expected %s, got %s", expected, actual.String())
}

func TestProjectPaymentFlow(t *testing.T) {
	app, api := newTestApp(t)
	token := adminToken(t, app, api)

	var project models.Project
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/projects", token,
		map[string]interface{}{"name": "Ангар"}, &project))

	var contract models.Contract
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/contracts", token,
		map[string]interface{}{"project_id": project.ID, "title": "Каркас", "value_eur": "0"}, &contract))

	var payment models.Payment
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/payments", token,
		map[string]interface{}{"project_id": project.ID, "contract_id": contract.ID, "label": "Аванс", "amount": "6000", "status": "paid"}, &payment))

	var financials services.ProjectFinancials
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/projects/"+project.ID.String()+"/financials", token, nil, &financials))
	requireAmount(t, "6000", financials.TotalValueEUR)
	requireAmount(t, "6000", financials.PaidEUR)
	requireAmount(t, "0", financials.RemainingEUR)

	// Частичная оплата второго транша
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/payments", token,
		map[string]interface{}{"project_id": project.ID, "contract_id": contract.ID, "label": "Остаток", "amount": "4000", "status": "partial", "paid_amount": "1500"}, nil))

	var contractFinancials services.ContractFinancials
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/contracts/"+contract.ID.String()+"/financials", token, nil, &contractFinancials))
	requireAmount(t, "10000", contractFinancials.ValueEUR)
	requireAmount(t, "7500", contractFinancials.PaidEUR)
	requireAmount(t, "2500", contractFinancials.RemainingEUR)

	var payments []models.Payment
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/projects/"+project.ID.String()+"/payments", token, nil, &payments))
	assert.Len(t, payments, 2)

	require.Equal(t, http.StatusNoContent, api.do(http.MethodDelete, "/api/payments/"+payment.ID.String(), token, nil, nil))
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/projects/"+project.ID.String()+"/financials", token, nil, &financials))
	requireAmount(t, "4000", financials.TotalValueEUR)
	requireAmount(t, "1500", financials.PaidEUR)

	// Валюта без источника курсов отклоняется
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPost, "/api/payments", token,
		map[string]interface{}{"project_id": project.ID, "label": "USD", "amount": "10", "currency": "USD"}, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/projects/"+project.ID.String()+"/report.xlsx", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	api.handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotZero(t, rr.Body.Len())
	assert.Contains(t, rr.Header().Get("Content-Disposition"), ".xlsx")
}

func TestProjectVisibility(t *testing.T) {
	app, api := newTestApp(t)
	token := adminToken(t, app, api)

	var clerk models.User
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/users", token,
		map[string]interface{}{"name": "Clerk", "email": "clerk@example.com", "department": "conta"}, &clerk))
	clerkToken := mustToken(t, app, &clerk)

	var project models.Project
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/projects", token,
		map[string]interface{}{"name": "Ангар"}, &project))
	projectPath := "/api/projects/" + project.ID.String()

	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, "/api/projects", "", nil, nil))

	var visible []models.Project
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/projects", clerkToken, nil, &visible))
	assert.Empty(t, visible)
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodGet, projectPath, clerkToken, nil, nil))
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodPost, "/api/contracts", clerkToken,
		map[string]interface{}{"project_id": project.ID, "title": "Каркас", "value_eur": "100"}, nil))

	// Изменять доступ может только администратор
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodPatch, projectPath, clerkToken,
		map[string]interface{}{"access": map[string]bool{"conta": true}}, nil))
	require.Equal(t, http.StatusOK, api.do(http.MethodPatch, projectPath, token,
		map[string]interface{}{"access": map[string]bool{"conta": true}}, nil))

	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/projects", clerkToken, nil, &visible))
	require.Len(t, visible, 1)
	assert.Equal(t, project.ID, visible[0].ID)
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, projectPath, clerkToken, nil, nil))

	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/api/projects/00000000-0000-0000-0000-000000000001", token, nil, nil))
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/api/projects/not-a-uuid", token, nil, nil))
}

func TestAdminRoutes(t *testing.T) {
	app, api := newTestApp(t)
	token := adminToken(t, app, api)

	var health map[string]interface{}
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/admin/health", "", nil, &health))
	assert.Equal(t, "ok", health["status"])

	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodPost, "/admin/reconcile", "", nil, nil))

	var clerk models.User
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/users", token,
		map[string]interface{}{"name": "Clerk", "email": "clerk@example.com", "department": "conta"}, &clerk))
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodPost, "/admin/reconcile", mustToken(t, app, &clerk), nil, nil))

	var report services.ReconcileReport
	require.Equal(t, http.StatusOK, api.do(http.MethodPost, "/admin/reconcile", token, nil, &report))
	assert.Equal(t, 0, report.Corrected)

	rr := httptest.NewRecorder()
	api.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "fabrika_reconcile_runs_total")
}
