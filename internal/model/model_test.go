package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalized_Defaults(t *testing.T) {
	o := Order{
		ID:        "order-1",
		CreatedAt: time.Now(),
	}

	n := o.Normalized()

	assert.Equal(t, DefaultCustomerName, n.CustomerName)
	assert.Equal(t, DefaultAddress, n.Address)
	assert.Equal(t, DefaultPhone, n.Phone)
	assert.Equal(t, DefaultPaymentMethod, n.PaymentMethod)
	assert.Equal(t, DefaultNote, n.Note)
	assert.NotNil(t, n.Items)
	assert.Empty(t, n.Items)
}

func TestNormalized_KeepsPresentFields(t *testing.T) {
	o := Order{
		ID:            "order-2",
		CustomerName:  "Ana",
		Total:         2550,
		Address:       "Calle 1",
		Phone:         "+57 300",
		PaymentMethod: "cash",
		Note:          "ring twice",
		Items: []OrderItem{
			{Name: "Pizza", Quantity: 2, Note: "no onion"},
		},
	}

	n := o.Normalized()

	assert.Equal(t, "Ana", n.CustomerName)
	assert.Equal(t, int64(2550), n.Total)
	assert.Equal(t, "Calle 1", n.Address)
	assert.Equal(t, "ring twice", n.Note)
	assert.Equal(t, o.Items, n.Items)
}

func TestNormalized_ItemQuantityDefaultsToOne(t *testing.T) {
	o := Order{
		Items: []OrderItem{
			{Name: "Pizza"},
			{Name: "Soda", Quantity: 3},
		},
	}

	n := o.Normalized()

	assert.Equal(t, 1, n.Items[0].Quantity)
	assert.Equal(t, 3, n.Items[1].Quantity)

	// Исходный заказ не меняется.
	assert.Equal(t, 0, o.Items[0].Quantity)
}
