package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SalesCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_sales_completed_total",
		Help: "Total number of committed POS sales",
	})

	SalesFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_sales_failed_total",
		Help: "Total number of rejected or failed POS sales",
	}, []string{"kind"})

	SaleAmountTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_sale_amount_total",
		Help: "Sum of committed sale totals",
	})

	SaleLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pos_sale_latency_seconds",
		Help:    "Latency of the sale transaction including post-commit hooks",
		Buckets: prometheus.DefBuckets,
	})

	SaleReferenceRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_sale_reference_retries_total",
		Help: "Sale units retried after a reference collision",
	})

	StockDecrementRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_decrement_rejected_total",
		Help: "Guarded stock decrements that found insufficient stock",
	})

	StockRestoredUnits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_restored_units_total",
		Help: "Units returned to stock by cancellations and receipts",
	})

	RewardsIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rewards_issued_total",
		Help: "Total number of reward codes issued",
	})

	RewardsFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rewards_issue_failed_total",
		Help: "Reward issuance attempts that failed after a committed sale",
	})

	RewardsRedeemedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rewards_redeemed_total",
		Help: "Total number of reward codes redeemed",
	})

	OrdersPlacedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Total number of online orders placed",
	})

	OrdersCancelledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_cancelled_total",
		Help: "Total number of cancelled online orders",
	}, []string{"source"})

	ReclaimFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_reclaim_failed_total",
		Help: "Stale orders the reclaimer could not cancel",
	})

	ReclaimDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "orders_reclaim_duration_seconds",
		Help:    "Duration of an abandoned-order sweep",
		Buckets: prometheus.DefBuckets,
	})

	PurchaseOrdersReceivedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purchase_orders_received_total",
		Help: "Total number of purchase orders received into stock",
	})

	HookFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "post_commit_hook_failures_total",
		Help: "Post-commit hook failures by hook name",
	}, []string{"hook"})

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
