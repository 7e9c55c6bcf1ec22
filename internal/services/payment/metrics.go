package payment

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeSuccess   = "success"
	outcomeFailed    = "failed"
	outcomeCancelled = "cancelled"
)

var settledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "webgate_payments_settled_total",
	Help: "Checkout outcomes by terminal state.",
}, []string{"outcome"})
