// Package metrics holds the prometheus collectors shared by the upload
// pipeline and the HTTP layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vetlink_http_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vetlink_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

var (
	// UploadsTotal counts finished uploads by target and outcome. outcome is
	// "done" or the failure kind.
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vetlink_uploads_total",
			Help: "Image uploads by target and outcome",
		},
		[]string{"target", "outcome"},
	)

	// UploadStageFailures counts failures by the state they happened in.
	UploadStageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vetlink_upload_stage_failures_total",
			Help: "Upload failures by pipeline state",
		},
		[]string{"target", "state"},
	)

	UploadBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vetlink_upload_bytes_total",
			Help: "Bytes written for accepted uploads",
		},
	)

	// Compensations counts rollback deletes after a failed pointer update.
	Compensations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vetlink_upload_compensations_total",
			Help: "Compensating deletes by result",
		},
		[]string{"result"},
	)

	SecurityEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vetlink_security_events_total",
			Help: "Security-relevant events such as path traversal attempts",
		},
		[]string{"event"},
	)
)
