package scan

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	diagnosesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "palai_scan_diagnoses_total",
		Help: "Completed leaf scans by predicted class and certainty",
	}, []string{"disease", "uncertain"})

	predictionErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "palai_scan_prediction_errors_total",
		Help: "Leaf scans that failed at the prediction service",
	})

	archiveErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "palai_scan_archive_errors_total",
		Help: "Scanned images that could not be archived",
	})
)
