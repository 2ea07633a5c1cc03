package services

import (
	"context"
	"fmt"
	"time"

	"fabrikaProject/database"
	"fabrikaProject/models"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

// Листы отчета по проекту
const (
	SheetSummary   = "Сводка"
	SheetContracts = "Договоры"
	SheetPayments  = "Платежи"
)

// ReportService формирует финансовые отчеты
type ReportService struct {
	repo database.Repository
}

// NewReportService создает новый экземпляр ReportService
func NewReportService(repo database.Repository) *ReportService {
	return &ReportService{repo: repo}
}

// ProjectWorkbook строит книгу XLSX с итогами проекта, его договорами и платежами
func (s *ReportService) ProjectWorkbook(ctx context.Context, projectID uuid.UUID) (*excelize.File, error) {
	project, err := s.repo.FindProject(ctx, projectID)
	if err != nil {
		return nil, notFound(err, ErrProjectNotFound)
	}
	contracts, err := s.repo.ListContractsByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении договоров: %w", err)
	}
	payments, err := s.repo.ListPaymentsByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении платежей: %w", err)
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(SheetContracts); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(SheetPayments); err != nil {
		return nil, err
	}

	writeSummary(f, project, len(contracts), len(payments))

	contractTitles := make(map[uuid.UUID]string, len(contracts))
	writeHeader(f, SheetContracts, []string{"Код", "Договор", "Статус", "Стоимость, EUR", "Оплачено, EUR", "Остаток, EUR", "Дата начала"})
	for i, c := range contracts {
		row := i + 2
		contractTitles[c.ID] = c.Title
		f.SetCellValue(SheetContracts, fmt.Sprintf("A%d", row), c.Code)
		f.SetCellValue(SheetContracts, fmt.Sprintf("B%d", row), c.Title)
		f.SetCellValue(SheetContracts, fmt.Sprintf("C%d", row), string(c.Status))
		f.SetCellValue(SheetContracts, fmt.Sprintf("D%d", row), c.ValueEUR.InexactFloat64())
		f.SetCellValue(SheetContracts, fmt.Sprintf("E%d", row), c.PaidEUR.InexactFloat64())
		f.SetCellValue(SheetContracts, fmt.Sprintf("F%d", row), c.RemainingEUR.InexactFloat64())
		f.SetCellValue(SheetContracts, fmt.Sprintf("G%d", row), formatDate(c.StartDate))
	}

	writeHeader(f, SheetPayments, []string{"Платеж", "Договор", "Сумма, EUR", "Валюта", "Исходная сумма", "Срок", "Статус", "Оплачено, EUR", "Дата оплаты", "Комментарий"})
	for i, p := range payments {
		row := i + 2
		contract := ""
		if p.ContractID != nil {
			contract = contractTitles[*p.ContractID]
		}
		f.SetCellValue(SheetPayments, fmt.Sprintf("A%d", row), p.Label)
		f.SetCellValue(SheetPayments, fmt.Sprintf("B%d", row), contract)
		f.SetCellValue(SheetPayments, fmt.Sprintf("C%d", row), p.AmountEUR.InexactFloat64())
		f.SetCellValue(SheetPayments, fmt.Sprintf("D%d", row), p.Currency)
		if p.OriginalAmount.Valid {
			f.SetCellValue(SheetPayments, fmt.Sprintf("E%d", row), p.OriginalAmount.Decimal.InexactFloat64())
		}
		f.SetCellValue(SheetPayments, fmt.Sprintf("F%d", row), formatDate(p.DueDate))
		f.SetCellValue(SheetPayments, fmt.Sprintf("G%d", row), string(p.Status))
		f.SetCellValue(SheetPayments, fmt.Sprintf("H%d", row), p.EffectivePaidEUR().InexactFloat64())
		f.SetCellValue(SheetPayments, fmt.Sprintf("I%d", row), formatDate(p.PaidAt))
		f.SetCellValue(SheetPayments, fmt.Sprintf("J%d", row), p.Comment)
	}

	f.SetActiveSheet(0)
	return f, nil
}

// ReportFileName возвращает имя файла отчета
func ReportFileName(project *models.Project, now time.Time) string {
	return fmt.Sprintf("project_%s_%s.xlsx", project.ID.String()[:8], now.Format("20060102_150405"))
}

func writeSummary(f *excelize.File, project *models.Project, contracts, payments int) {
	rows := [][]interface{}{
		{"Проект", project.Name},
		{"Статус", string(project.Status)},
		{"Стоимость, EUR", project.TotalValueEUR.InexactFloat64()},
		{"Оплачено, EUR", project.PaidEUR.InexactFloat64()},
		{"Остаток, EUR", project.RemainingEUR.InexactFloat64()},
		{"Договоров", contracts},
		{"Платежей", payments},
		{"Сформирован", time.Now().Format("02.01.2006 15:04")},
	}
	for i, r := range rows {
		f.SetCellValue(SheetSummary, fmt.Sprintf("A%d", i+1), r[0])
		f.SetCellValue(SheetSummary, fmt.Sprintf("B%d", i+1), r[1])
	}
}

func writeHeader(f *excelize.File, sheet string, headers []string) {
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, header)
	}
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("02.01.2006")
}
