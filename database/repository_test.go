package database_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"fabrikaProject/database"
	"fabrikaProject/database/dbtest"
	"fabrikaProject/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithinTxRollsBack(t *testing.T) {
	repo := dbtest.Repository(t)
	ctx := context.Background()

	project := &models.Project{Name: "Ангар", Status: models.ProjectStatusNew, Access: models.DefaultAccess()}
	boom := errors.New("boom")
	err := repo.WithinTx(ctx, func(tx database.Repository) error {
		require.NoError(t, tx.InsertProject(ctx, project))
		locked, err := tx.LockProject(ctx, project.ID)
		require.NoError(t, err)
		assert.Equal(t, "Ангар", locked.Name)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = repo.FindProject(ctx, project.ID)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestProjectAccessColumns(t *testing.T) {
	repo := dbtest.Repository(t)
	ctx := context.Background()

	project := &models.Project{Name: "Ангар", Status: models.ProjectStatusNew, Access: models.DepartmentAccess{Conta: true, Customs: true}}
	require.NoError(t, repo.InsertProject(ctx, project))

	stored, err := repo.FindProject(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, project.Access, stored.Access)
}

func TestPaymentQueries(t *testing.T) {
	repo := dbtest.Repository(t)
	ctx := context.Background()

	project := &models.Project{Name: "Ангар", Status: models.ProjectStatusNew}
	require.NoError(t, repo.InsertProject(ctx, project))
	contract := &models.Contract{ProjectID: project.ID, Title: "Каркас", Status: models.ContractStatusNew}
	require.NoError(t, repo.InsertContract(ctx, contract))

	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-24 * time.Hour)
	newPayment := func(label string, status models.PaymentStatus, due *time.Time) *models.Payment {
		p := &models.Payment{
			ProjectID:  project.ID,
			ContractID: &contract.ID,
			Label:      label,
			AmountEUR:  decimal.RequireFromString("125.50"),
			Currency:   models.CurrencyEUR,
			Status:     status,
			DueDate:    due,
		}
		require.NoError(t, repo.InsertPayment(ctx, p))
		return p
	}
	open := newPayment("open", models.PaymentStatusUnpaid, &past)
	newPayment("closed", models.PaymentStatusPaid, &past)
	newPayment("undated", models.PaymentStatusUnpaid, nil)

	count, err := repo.CountPaymentsByContract(ctx, contract.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	due, err := repo.ListOpenPaymentsDueBefore(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, open.ID, due[0].ID)
	assert.True(t, decimal.RequireFromString("125.5").Equal(due[0].AmountEUR))

	deleted, err := repo.DeletePayment(ctx, open.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = repo.DeletePayment(ctx, open.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	require.NoError(t, repo.DeletePaymentsByContract(ctx, contract.ID))
	payments, err := repo.ListPaymentsByProject(ctx, project.ID)
	require.NoError(t, err)
	assert.Empty(t, payments)

	_, err = repo.FindPayment(ctx, uuid.New())
	assert.ErrorIs(t, err, database.ErrNotFound)
}
