// Package model содержит доменные сущности панели заказов.
package model

import "time"

// Значения по умолчанию для отсутствующих полей заказа.
// Некорректная запись никогда не отклоняется — пропущенные поля замещаются.
const (
	DefaultCustomerName  = "Anonymous customer"
	DefaultAddress       = "Not specified"
	DefaultPhone         = "Not available"
	DefaultPaymentMethod = "Not specified"
	DefaultNote          = "No additional notes"
)

// OrderItem описывает одну позицию заказа.
type OrderItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Note     string `json:"note,omitempty"`
}

// Order описывает заказ клиента и статус его просмотра администратором.
// Поле Reviewed — единственное изменяемое после создания: переходит
// false → true ровно один раз и обратно не возвращается.
type Order struct {
	ID            string
	CustomerName  string
	Total         int64 // сумма в минорных единицах валюты
	Items         []OrderItem
	Address       string
	Phone         string
	PaymentMethod string
	Note          string
	CreatedAt     time.Time
	Reviewed      bool
}

// Normalized возвращает копию заказа, в которой отсутствующие необязательные
// поля заменены значениями по умолчанию.
func (o Order) Normalized() Order {
	if o.CustomerName == "" {
		o.CustomerName = DefaultCustomerName
	}
	if o.Address == "" {
		o.Address = DefaultAddress
	}
	if o.Phone == "" {
		o.Phone = DefaultPhone
	}
	if o.PaymentMethod == "" {
		o.PaymentMethod = DefaultPaymentMethod
	}
	if o.Note == "" {
		o.Note = DefaultNote
	}
	items := make([]OrderItem, len(o.Items))
	copy(items, o.Items)
	for i := range items {
		if items[i].Quantity <= 0 {
			items[i].Quantity = 1
		}
	}
	o.Items = items
	return o
}

// DeliveryToken описывает адрес доставки пуш-уведомлений одного администратора.
// Запись перезаписывается каждый раз, когда клиент получает свежий токен.
type DeliveryToken struct {
	AdminID    string
	Token      string
	LastActive time.Time
	DeviceInfo string
}
