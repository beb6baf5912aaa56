package models

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPageRequest_Normalize(t *testing.T) {
	tests := []struct {
		name string
		in   PageRequest
		want PageRequest
	}{
		{"defaults", PageRequest{}, PageRequest{Page: 1, Limit: 10}},
		{"negative page", PageRequest{Page: -3, Limit: 5}, PageRequest{Page: 1, Limit: 5}},
		{"capped limit", PageRequest{Page: 2, Limit: 1000}, PageRequest{Page: 2, Limit: MaxPageLimit}},
		{"untouched", PageRequest{Page: 4, Limit: 25}, PageRequest{Page: 4, Limit: 25}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Normalize(10))
		})
	}
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(PageRequest{Page: 2, Limit: 10}, 25)
	assert.Equal(t, Pagination{CurrentPage: 2, TotalPages: 3, Total: 25, HasNext: true, HasPrev: true}, p)
	assert.Equal(t, 10, PageRequest{Page: 2, Limit: 10}.Offset())

	empty := NewPagination(PageRequest{Page: 1, Limit: 10}, 0)
	assert.Equal(t, 0, empty.TotalPages)
	assert.False(t, empty.HasNext)
	assert.False(t, empty.HasPrev)
}

func TestNewOrderNumber(t *testing.T) {
	at := time.Date(2026, 10, 18, 23, 30, 0, 0, time.UTC)
	number := NewOrderNumber(at, "3f2a9c1b-0000-4000-8000-000000000000")

	assert.Equal(t, "ORD-20261018-3F2A9C1B0000", number)
	assert.Regexp(t, regexp.MustCompile(`^ORD-\d{8}-[0-9A-F]{12}$`), number)
}

func TestOrderStatus(t *testing.T) {
	assert.True(t, OrderStatusShipped.Valid())
	assert.False(t, OrderStatus("lost").Valid())

	assert.True(t, OrderStatusPending.Cancellable())
	assert.True(t, OrderStatusConfirmed.Cancellable())
	assert.False(t, OrderStatusProcessing.Cancellable())
	assert.False(t, OrderStatusCancelled.Cancellable())
}

func TestOrderItem_LineTotal(t *testing.T) {
	item := OrderItem{Price: Money(19.99), Quantity: 3}
	assert.True(t, item.LineTotal().Equal(Money(59.97)), item.LineTotal().String())
}
