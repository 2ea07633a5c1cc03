package services

import (
	"context"
	"fmt"
	"time"

	"fabrikaProject/database"
	"fabrikaProject/models"
	"fabrikaProject/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ContractFinancials представляет итоги договора
type ContractFinancials struct {
	ValueEUR     decimal.Decimal `json:"value_eur"`
	PaidEUR      decimal.Decimal `json:"paid_eur"`
	RemainingEUR decimal.Decimal `json:"remaining_eur"`
}

// ProjectFinancials представляет итоги проекта
type ProjectFinancials struct {
	TotalValueEUR decimal.Decimal `json:"total_value_eur"`
	PaidEUR       decimal.Decimal `json:"paid_eur"`
	RemainingEUR  decimal.Decimal `json:"remaining_eur"`
}

// ReconcileReport описывает результат полной сверки итогов
type ReconcileReport struct {
	Projects  int `json:"projects"`
	Contracts int `json:"contracts"`
	Corrected int `json:"corrected"`
}

// ContractTotals сводит платежи договора: стоимость - сумма amount_eur,
// оплачено - сумма фактически оплаченного, остаток - их разность
func ContractTotals(payments []models.Payment) ContractFinancials {
	value := decimal.Zero
	paid := decimal.Zero
	for i := range payments {
		value = value.Add(payments[i].AmountEUR)
		paid = paid.Add(payments[i].EffectivePaidEUR())
	}
	return ContractFinancials{
		ValueEUR:     value,
		PaidEUR:      paid,
		RemainingEUR: value.Sub(paid),
	}
}

// ProjectTotals сводит итоги договоров проекта
func ProjectTotals(contracts []models.Contract) ProjectFinancials {
	total := decimal.Zero
	paid := decimal.Zero
	for i := range contracts {
		total = total.Add(contracts[i].ValueEUR)
		paid = paid.Add(contracts[i].PaidEUR)
	}
	return ProjectFinancials{
		TotalValueEUR: total,
		PaidEUR:       paid,
		RemainingEUR:  total.Sub(paid),
	}
}

// FinanceService пересчитывает производные финансовые поля договоров и проектов
type FinanceService struct {
	repo database.Repository
	uow  unitOfWork
}

// NewFinanceService создает новый экземпляр FinanceService
func NewFinanceService(repo database.Repository, locks *utils.KeyedMutex) *FinanceService {
	return &FinanceService{
		repo: repo,
		uow:  newUnitOfWork(repo, locks),
	}
}

// RecomputeContract пересчитывает итоги договора по его платежам и затем итоги проекта.
// Вызывается внутри транзакции с репозиторием tx.
// Отсутствующий договор не является ошибкой: возвращается nil без изменений.
func (s *FinanceService) RecomputeContract(ctx context.Context, tx database.Repository, contractID uuid.UUID) (*models.Contract, error) {
	contract, err := s.recomputeContract(ctx, tx, contractID)
	if err != nil || contract == nil {
		return contract, err
	}

	if _, err := s.RecomputeProject(ctx, tx, contract.ProjectID); err != nil {
		return nil, err
	}
	return contract, nil
}

func (s *FinanceService) recomputeContract(ctx context.Context, tx database.Repository, contractID uuid.UUID) (*models.Contract, error) {
	contract, err := tx.FindContract(ctx, contractID)
	if err != nil {
		if IsNotFound(err) {
			utils.WithFields(utils.Fields{"contract_id": contractID}).
				Warn("пересчет договора пропущен: договор не найден")
			utils.RecordCascadeNoop(utils.CascadeContract)
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка при получении договора: %w", err)
	}

	payments, err := tx.ListPaymentsByContract(ctx, contractID)
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении платежей договора: %w", err)
	}

	totals := ContractTotals(payments)
	contract.ValueEUR = totals.ValueEUR
	contract.PaidEUR = totals.PaidEUR
	contract.RemainingEUR = totals.RemainingEUR

	if err := tx.UpdateContract(ctx, contract); err != nil {
		return nil, fmt.Errorf("ошибка при сохранении итогов договора: %w", err)
	}

	utils.RecordCascade(utils.CascadeContract)
	utils.LogDebug("договор %s: стоимость %s, оплачено %s, остаток %s",
		contract.ID, contract.ValueEUR, contract.PaidEUR, contract.RemainingEUR)
	return contract, nil
}

// RecomputeProject пересчитывает итоги проекта по его договорам.
// Платежи без договора в итоги проекта не входят.
// Отсутствующий проект не является ошибкой: возвращается nil без изменений.
func (s *FinanceService) RecomputeProject(ctx context.Context, tx database.Repository, projectID uuid.UUID) (*models.Project, error) {
	project, err := tx.FindProject(ctx, projectID)
	if err != nil {
		if IsNotFound(err) {
			utils.WithFields(utils.Fields{"project_id": projectID}).
				Warn("пересчет проекта пропущен: проект не найден")
			utils.RecordCascadeNoop(utils.CascadeProject)
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка при получении проекта: %w", err)
	}

	contracts, err := tx.ListContractsByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении договоров проекта: %w", err)
	}

	totals := ProjectTotals(contracts)
	project.TotalValueEUR = totals.TotalValueEUR
	project.PaidEUR = totals.PaidEUR
	project.RemainingEUR = totals.RemainingEUR

	if err := tx.UpdateProject(ctx, project); err != nil {
		return nil, fmt.Errorf("ошибка при сохранении итогов проекта: %w", err)
	}

	utils.RecordCascade(utils.CascadeProject)
	return project, nil
}

// GetContractFinancials возвращает сохраненные итоги договора
func (s *FinanceService) GetContractFinancials(ctx context.Context, contractID uuid.UUID) (*ContractFinancials, error) {
	contract, err := s.repo.FindContract(ctx, contractID)
	if err != nil {
		return nil, notFound(err, ErrContractNotFound)
	}
	return &ContractFinancials{
		ValueEUR:     contract.ValueEUR,
		PaidEUR:      contract.PaidEUR,
		RemainingEUR: contract.RemainingEUR,
	}, nil
}

// GetProjectFinancials возвращает сохраненные итоги проекта
func (s *FinanceService) GetProjectFinancials(ctx context.Context, projectID uuid.UUID) (*ProjectFinancials, error) {
	project, err := s.repo.FindProject(ctx, projectID)
	if err != nil {
		return nil, notFound(err, ErrProjectNotFound)
	}
	return &ProjectFinancials{
		TotalValueEUR: project.TotalValueEUR,
		PaidEUR:       project.PaidEUR,
		RemainingEUR:  project.RemainingEUR,
	}, nil
}

// ReconcileAll заново сводит итоги всех договоров и проектов.
// Договоры с платежами пересчитываются по платежам. У договоров без платежей
// стоимость задана вручную, поэтому для них выравнивается только остаток.
func (s *FinanceService) ReconcileAll(ctx context.Context) (*ReconcileReport, error) {
	startTime := time.Now()
	report := &ReconcileReport{}

	projects, err := s.repo.ListProjects(ctx)
	if err != nil {
		utils.LogOperation("reconcile", startTime, err)
		return nil, fmt.Errorf("ошибка при получении проектов: %w", err)
	}

	for _, p := range projects {
		// Счетчики учитываются только после фиксации транзакции проекта
		var contractsSeen, corrected int
		err := s.uow.run(ctx, p.ID, func(ctx context.Context, tx database.Repository, project *models.Project) error {
			contractsSeen, corrected = 0, 0
			contracts, err := tx.ListContractsByProject(ctx, project.ID)
			if err != nil {
				return err
			}

			for i := range contracts {
				fixed, err := s.reconcileContract(ctx, tx, &contracts[i])
				if err != nil {
					return err
				}
				contractsSeen++
				if fixed {
					corrected++
				}
			}

			_, err = s.RecomputeProject(ctx, tx, project.ID)
			return err
		})
		if err != nil {
			if IsNotFound(err) {
				// Проект удален после получения списка
				continue
			}
			utils.LogOperation("reconcile", startTime, err)
			return nil, fmt.Errorf("ошибка сверки проекта %s: %w", p.ID, err)
		}
		report.Projects++
		report.Contracts += contractsSeen
		report.Corrected += corrected
	}

	utils.RecordReconcile()
	utils.LogOperation("reconcile", startTime, nil)
	utils.WithFields(utils.Fields{
		"projects":  report.Projects,
		"contracts": report.Contracts,
		"corrected": report.Corrected,
	}).Info("сверка итогов завершена")
	return report, nil
}

// reconcileContract выравнивает итоги одного договора и сообщает, были ли они неверны
func (s *FinanceService) reconcileContract(ctx context.Context, tx database.Repository, contract *models.Contract) (bool, error) {
	before := ContractFinancials{
		ValueEUR:     contract.ValueEUR,
		PaidEUR:      contract.PaidEUR,
		RemainingEUR: contract.RemainingEUR,
	}

	count, err := tx.CountPaymentsByContract(ctx, contract.ID)
	if err != nil {
		return false, err
	}

	if count > 0 {
		updated, err := s.recomputeContract(ctx, tx, contract.ID)
		if err != nil || updated == nil {
			return false, err
		}
		return !sameFinancials(before, ContractFinancials{
			ValueEUR:     updated.ValueEUR,
			PaidEUR:      updated.PaidEUR,
			RemainingEUR: updated.RemainingEUR,
		}), nil
	}

	expected := ContractFinancials{
		ValueEUR:     contract.ValueEUR,
		PaidEUR:      decimal.Zero,
		RemainingEUR: contract.ValueEUR,
	}
	if sameFinancials(before, expected) {
		return false, nil
	}
	contract.PaidEUR = expected.PaidEUR
	contract.RemainingEUR = expected.RemainingEUR
	if err := tx.UpdateContract(ctx, contract); err != nil {
		return false, err
	}
	return true, nil
}

func sameFinancials(a, b ContractFinancials) bool {
	return a.ValueEUR.Equal(b.ValueEUR) && a.PaidEUR.Equal(b.PaidEUR) && a.RemainingEUR.Equal(b.RemainingEUR)
}
