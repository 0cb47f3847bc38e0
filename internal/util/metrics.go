package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dinein_sessions_created_total",
		Help: "Total number of table sessions created by a QR scan",
	})

	SessionsReusedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dinein_sessions_reused_total",
		Help: "Total number of QR scans that joined an already active session",
	})

	SessionConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dinein_session_conflicts_total",
		Help: "Concurrent scans that lost the session creation race and reused the winner",
	})

	SessionsClosedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dinein_sessions_closed_total",
		Help: "Total number of sessions that reached a terminal status",
	}, []string{"status"})

	CartMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dinein_cart_mutations_total",
		Help: "Total number of cart mutations",
	}, []string{"op"})

	OrdersPlacedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dinein_orders_placed_total",
		Help: "Total number of orders placed",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dinein_orders_failed_total",
		Help: "Total number of rejected order placements",
	}, []string{"reason"})

	OrderTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dinein_order_transitions_total",
		Help: "Total number of order status transitions",
	}, []string{"status"})

	OrderPlacementLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dinein_order_placement_latency_seconds",
		Help:    "Latency of the order placement transaction",
		Buckets: prometheus.DefBuckets,
	})

	PaymentsInitiatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dinein_payments_initiated_total",
		Help: "Total number of payments initiated",
	}, []string{"method"})

	PaymentsConfirmedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dinein_payments_confirmed_total",
		Help: "Total number of payments confirmed by the gateway",
	})

	PaymentsFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dinein_payments_failed_total",
		Help: "Total number of payments failed by the gateway",
	})

	BillsGeneratedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dinein_bills_generated_total",
		Help: "Total number of bills generated",
	})

	BillNumberCollisionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dinein_bill_number_collisions_total",
		Help: "Bill number collisions retried with a new suffix",
	})

	RealtimeDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dinein_realtime_dropped_total",
		Help: "Realtime events dropped before delivery",
	}, []string{"reason"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
