package service

import (
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apperrors "github.com/utafrali/order-service/pkg/errors"
)

var (
	workflowTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_workflow_total",
		Help: "Order operations by outcome. The outcome is the error code in lower case, or success.",
	}, []string{"operation", "outcome"})

	workflowDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "order_workflow_duration_seconds",
		Help:    "Duration of order operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
)

func observe(operation string, start time.Time, err error) {
	workflowDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	workflowTotal.WithLabelValues(operation, outcome(err)).Inc()
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return strings.ToLower(appErr.Code)
	}
	return "internal_error"
}
