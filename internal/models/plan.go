package models

// Plan представляет тарифный план из каталога.
// Каталог заполняется миграциями и доступен только для чтения.
type Plan struct {
	ID             string `json:"id"`              // Идентификатор плана
	Name           string `json:"name"`            // Название плана
	Price          int    `json:"price"`           // Цена за период в минимальных единицах валюты
	Currency       string `json:"currency"`        // Валюта, ISO 4217
	IntervalMonths int    `json:"interval_months"` // Длина расчётного периода в месяцах
}
