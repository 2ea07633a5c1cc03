package services

import (
	"context"
	"strings"
	"sync"
	"testing"

	"fabrikaProject/database"
	"fabrikaProject/database/dbtest"
	"fabrikaProject/models"
	"fabrikaProject/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	mu      sync.Mutex
	settled []string
	overdue [][]models.Payment
	to      []string
	err     error
}

func (n *fakeNotifier) ContractSettled(to string, project *models.Project, contract *models.Contract) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.settled = append(n.settled, contract.Title)
	n.to = append(n.to, to)
	return n.err
}

func (n *fakeNotifier) OverduePayments(to string, payments []models.Payment) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.overdue = append(n.overdue, payments)
	n.to = append(n.to, to)
	return n.err
}

// fixedRates считает, что 1 USD = 0.5 EUR
type fixedRates struct{}

func (fixedRates) ToEUR(ctx context.Context, amount decimal.Decimal, currency string) (decimal.Decimal, error) {
	switch strings.ToUpper(currency) {
	case "EUR":
		return amount, nil
	case "USD":
		return amount.Div(decimal.NewFromInt(2)), nil
	}
	return decimal.Zero, newValidationError("неизвестная валюта: " + currency)
}

type testEnv struct {
	ctx       context.Context
	repo      database.Repository
	finance   *FinanceService
	projects  *ProjectService
	contracts *ContractService
	payments  *PaymentService
	users     *UserService
	notifier  *fakeNotifier
	admin     *models.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	repo := dbtest.Repository(t)
	locks := utils.NewKeyedMutex()
	finance := NewFinanceService(repo, locks)
	notifier := &fakeNotifier{}

	env := &testEnv{
		ctx:       context.Background(),
		repo:      repo,
		finance:   finance,
		projects:  NewProjectService(repo, locks),
		contracts: NewContractService(repo, finance, locks),
		payments:  NewPaymentService(repo, finance, locks, fixedRates{}, notifier),
		users:     NewUserService(repo),
		notifier:  notifier,
	}

	admin, err := env.users.CreateUser(env.ctx, CreateUserRequest{
		Name:       "Admin",
		Email:      "admin@example.com",
		Role:       models.RoleAdmin,
		Department: models.DepartmentSales,
	})
	require.NoError(t, err)
	env.admin = admin
	return env
}

func eur(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func (e *testEnv) project(t *testing.T, name string) *models.Project {
	t.Helper()
	p, err := e.projects.CreateProject(e.ctx, CreateProjectDTO{Name: name}, e.admin)
	require.NoError(t, err)
	return p
}

func (e *testEnv) contract(t *testing.T, projectID uuid.UUID, title, value string) *models.Contract {
	t.Helper()
	c, err := e.contracts.CreateContract(e.ctx, CreateContractDTO{
		ProjectID: projectID,
		Title:     title,
		ValueEUR:  eur(value),
	}, e.admin)
	require.NoError(t, err)
	return c
}

func (e *testEnv) payment(t *testing.T, dto CreatePaymentDTO) *models.Payment {
	t.Helper()
	if dto.Label == "" {
		dto.Label = "транш"
	}
	p, err := e.payments.CreatePayment(e.ctx, dto, e.admin)
	require.NoError(t, err)
	return p
}

func (e *testEnv) reloadContract(t *testing.T, id uuid.UUID) *models.Contract {
	t.Helper()
	c, err := e.repo.FindContract(e.ctx, id)
	require.NoError(t, err)
	return c
}

func (e *testEnv) reloadProject(t *testing.T, id uuid.UUID) *models.Project {
	t.Helper()
	p, err := e.repo.FindProject(e.ctx, id)
	require.NoError(t, err)
	return p
}

// requireDecimal сравнивает суммы по значению, а не по представлению
func requireDecimal(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	require.True(t, decimal.RequireFromString(expected).Equal(actual), "expected %s, got %s", expected, actual.String())
}
