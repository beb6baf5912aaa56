package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ordersPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_orders_placed_total",
		Help: "Total number of orders placed",
	})

	orderRevenue = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_order_revenue_total",
		Help: "Sum of order totals at placement, in currency units",
	})

	orderRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_order_rejections_total",
			Help: "Order placements rejected, by error kind",
		},
		[]string{"kind"},
	)

	orderTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_order_status_transitions_total",
			Help: "Order status changes, by target status",
		},
		[]string{"status"},
	)
)
