package models

import (
	"encoding/json"
	"fmt"
)

// Department представляет отдел компании
type Department string

const (
	DepartmentSales       Department = "sales"
	DepartmentProduction  Department = "production"
	DepartmentConta       Department = "conta" // бухгалтерия
	DepartmentWarehouse   Department = "warehouse"
	DepartmentCustoms     Department = "customs"
	DepartmentDelivery    Department = "delivery"
	DepartmentProcurement Department = "procurement"
	DepartmentLogistics   Department = "logistics"
)

// Departments возвращает все отделы в фиксированном порядке
func Departments() []Department {
	return []Department{
		DepartmentSales,
		DepartmentProduction,
		DepartmentConta,
		DepartmentWarehouse,
		DepartmentCustoms,
		DepartmentDelivery,
		DepartmentProcurement,
		DepartmentLogistics,
	}
}

// Valid проверяет, что отдел входит в закрытый список
func (d Department) Valid() bool {
	for _, known := range Departments() {
		if d == known {
			return true
		}
	}
	return false
}

// DepartmentAccess хранит флаг видимости проекта для каждого отдела.
// В таблице projects поля лежат в колонках access_<отдел>.
type DepartmentAccess struct {
	Sales       bool `gorm:"column:sales;not null;default:false"`
	Production  bool `gorm:"column:production;not null;default:false"`
	Conta       bool `gorm:"column:conta;not null;default:false"`
	Warehouse   bool `gorm:"column:warehouse;not null;default:false"`
	Customs     bool `gorm:"column:customs;not null;default:false"`
	Delivery    bool `gorm:"column:delivery;not null;default:false"`
	Procurement bool `gorm:"column:procurement;not null;default:false"`
	Logistics   bool `gorm:"column:logistics;not null;default:false"`
}

// DefaultAccess возвращает доступ нового проекта: открыт только отдел продаж
func DefaultAccess() DepartmentAccess {
	return DepartmentAccess{Sales: true}
}

func (a *DepartmentAccess) field(d Department) *bool {
	switch d {
	case DepartmentSales:
		return &a.Sales
	case DepartmentProduction:
		return &a.Production
	case DepartmentConta:
		return &a.Conta
	case DepartmentWarehouse:
		return &a.Warehouse
	case DepartmentCustoms:
		return &a.Customs
	case DepartmentDelivery:
		return &a.Delivery
	case DepartmentProcurement:
		return &a.Procurement
	case DepartmentLogistics:
		return &a.Logistics
	}
	return nil
}

// Allows сообщает, открыт ли проект для отдела
func (a DepartmentAccess) Allows(d Department) bool {
	if f := a.field(d); f != nil {
		return *f
	}
	return false
}

// Set меняет флаг доступа для отдела
func (a *DepartmentAccess) Set(d Department, open bool) error {
	f := a.field(d)
	if f == nil {
		return fmt.Errorf("неизвестный отдел: %s", d)
	}
	*f = open
	return nil
}

// Map возвращает доступ в виде отдел -> флаг
func (a DepartmentAccess) Map() map[Department]bool {
	m := make(map[Department]bool, 8)
	for _, d := range Departments() {
		m[d] = a.Allows(d)
	}
	return m
}

func (a DepartmentAccess) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Map())
}

func (a *DepartmentAccess) UnmarshalJSON(data []byte) error {
	var m map[Department]bool
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*a = DepartmentAccess{}
	for d, open := range m {
		if err := a.Set(d, open); err != nil {
			return err
		}
	}
	return nil
}
