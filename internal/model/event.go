package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ReservationClass 入場類別與人數上下限
type ReservationClass struct {
	Name     string `json:"name"`
	MinUnits int    `json:"min_units"`
	MaxUnits int    `json:"max_units"`
}

// Clamp 將請求數量限制在 [MinUnits, MaxUnits]
func (c ReservationClass) Clamp(requested int) int {
	if requested < c.MinUnits {
		return c.MinUnits
	}
	if requested > c.MaxUnits {
		return c.MaxUnits
	}
	return requested
}

// EventCatalog 活動設定，程序執行期間不會變動
type EventCatalog struct {
	Title     string             `json:"title"`
	Subtitle  string             `json:"subtitle,omitempty"`
	Venue     string             `json:"venue,omitempty"`
	Address   string             `json:"address,omitempty"`
	StartsAt  string             `json:"starts_at,omitempty"`
	UnitPrice decimal.Decimal    `json:"unit_price"`
	Classes   []ReservationClass `json:"classes"`
}

const DefaultMaxUnits = 40

// DefaultEventCatalog 預設活動：Periquera 最少 3 人、Sala 最少 10 人，上限共用 40，單價 100
func DefaultEventCatalog() EventCatalog {
	return EventCatalog{
		Title:     "BACK TO SCHOOL PARTY",
		Subtitle:  "Fiesta de Bienvenida - Nuevo Ingreso ITSU",
		Venue:     "Dion Fake Life",
		Address:   "C. Hilanderos 97, La Magdalena, Uruapan, Mich.",
		StartsAt:  "Viernes, 5 de septiembre 9:30 PM",
		UnitPrice: decimal.NewFromInt(100),
		Classes: []ReservationClass{
			{Name: "Periquera", MinUnits: 3, MaxUnits: DefaultMaxUnits},
			{Name: "Sala", MinUnits: 10, MaxUnits: DefaultMaxUnits},
		},
	}
}

// Class 依名稱查詢類別
func (c EventCatalog) Class(name string) (ReservationClass, bool) {
	for _, class := range c.Classes {
		if class.Name == name {
			return class, true
		}
	}
	return ReservationClass{}, false
}

// Validate 檢查類別設定是否合理
func (c EventCatalog) Validate() error {
	if len(c.Classes) == 0 {
		return fmt.Errorf("event catalog has no classes")
	}
	if !c.UnitPrice.IsPositive() {
		return fmt.Errorf("unit price must be positive, got %s", c.UnitPrice)
	}
	seen := make(map[string]bool, len(c.Classes))
	for _, class := range c.Classes {
		if class.Name == "" {
			return fmt.Errorf("class name is required")
		}
		if seen[class.Name] {
			return fmt.Errorf("duplicate class %q", class.Name)
		}
		seen[class.Name] = true
		if class.MinUnits < 1 || class.MaxUnits < class.MinUnits {
			return fmt.Errorf("class %q has invalid bounds [%d, %d]", class.Name, class.MinUnits, class.MaxUnits)
		}
	}
	return nil
}

// EventInfo 活動資訊與是否開放預約
type EventInfo struct {
	EventCatalog
	SalesOpen bool `json:"sales_open"`
}

// UpdateSalesRequest 開關預約請求
type UpdateSalesRequest struct {
	Open *bool `json:"open" binding:"required"`
}
