package middleware

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// Metrics stores application metrics
type Metrics struct {
	RequestsTotal      uint64
	RequestsInProgress uint64
	RequestsSuccess    uint64
	RequestsFailed     uint64

	UploadsTotal             uint64
	UploadsRejected          uint64
	StorageFailures          uint64
	ClassifierRunning        uint64
	ClassifierLaunchFailures uint64
	ClassifierFailed         uint64
	ClassifierTimeouts       uint64
	AnalysesSaved            uint64
	PersistenceFailures      uint64
	StartTime                time.Time
}

var globalMetrics = &Metrics{
	StartTime: time.Now(),
}

// IncrementRequests increments total request counter
func IncrementRequests() {
	atomic.AddUint64(&globalMetrics.RequestsTotal, 1)
}

// IncrementInProgress increments in-progress request counter
func IncrementInProgress() {
	atomic.AddUint64(&globalMetrics.RequestsInProgress, 1)
}

// DecrementInProgress decrements in-progress request counter
func DecrementInProgress() {
	atomic.AddUint64(&globalMetrics.RequestsInProgress, ^uint64(0))
}

func IncrementSuccess() {
	atomic.AddUint64(&globalMetrics.RequestsSuccess, 1)
}

func IncrementFailed() {
	atomic.AddUint64(&globalMetrics.RequestsFailed, 1)
}

// IncrementUploads counts every upload attempt
func IncrementUploads() {
	atomic.AddUint64(&globalMetrics.UploadsTotal, 1)
}

// IncrementRejected counts uploads refused at intake
func IncrementRejected() {
	atomic.AddUint64(&globalMetrics.UploadsRejected, 1)
}

// IncrementStorageFailures counts accepted uploads that could not be written to disk
func IncrementStorageFailures() {
	atomic.AddUint64(&globalMetrics.StorageFailures, 1)
}

// IncrementClassifying marks a classifier run as started
func IncrementClassifying() {
	atomic.AddUint64(&globalMetrics.ClassifierRunning, 1)
}

func DecrementClassifying() {
	atomic.AddUint64(&globalMetrics.ClassifierRunning, ^uint64(0))
}

func IncrementLaunchFailures() {
	atomic.AddUint64(&globalMetrics.ClassifierLaunchFailures, 1)
}

// IncrementClassifierFailed counts runs that produced no result
func IncrementClassifierFailed() {
	atomic.AddUint64(&globalMetrics.ClassifierFailed, 1)
}

func IncrementTimeouts() {
	atomic.AddUint64(&globalMetrics.ClassifierTimeouts, 1)
}

func IncrementSaved() {
	atomic.AddUint64(&globalMetrics.AnalysesSaved, 1)
}

// IncrementPersistenceFailures counts analyses that could not be saved
func IncrementPersistenceFailures() {
	atomic.AddUint64(&globalMetrics.PersistenceFailures, 1)
}

// GetMetrics returns current metrics
func GetMetrics() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]interface{}{
		"requests_total":             atomic.LoadUint64(&globalMetrics.RequestsTotal),
		"requests_in_progress":       atomic.LoadUint64(&globalMetrics.RequestsInProgress),
		"requests_success":           atomic.LoadUint64(&globalMetrics.RequestsSuccess),
		"requests_failed":            atomic.LoadUint64(&globalMetrics.RequestsFailed),
		"uploads_total":              atomic.LoadUint64(&globalMetrics.UploadsTotal),
		"uploads_rejected":           atomic.LoadUint64(&globalMetrics.UploadsRejected),
		"storage_failures":           atomic.LoadUint64(&globalMetrics.StorageFailures),
		"classifier_running":         atomic.LoadUint64(&globalMetrics.ClassifierRunning),
		"classifier_launch_failures": atomic.LoadUint64(&globalMetrics.ClassifierLaunchFailures),
		"classifier_failed":          atomic.LoadUint64(&globalMetrics.ClassifierFailed),
		"classifier_timeouts":        atomic.LoadUint64(&globalMetrics.ClassifierTimeouts),
		"analyses_saved":             atomic.LoadUint64(&globalMetrics.AnalysesSaved),
		"persistence_failures":       atomic.LoadUint64(&globalMetrics.PersistenceFailures),
		"uptime_seconds":             time.Since(globalMetrics.StartTime).Seconds(),
		"memory": map[string]interface{}{
			"alloc_bytes":       m.Alloc,
			"total_alloc_bytes": m.TotalAlloc,
			"sys_bytes":         m.Sys,
			"num_gc":            m.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}

// MetricsMiddleware tracks request metrics
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		IncrementRequests()
		IncrementInProgress()
		defer DecrementInProgress()

		wrapped := wrapWriter(w)
		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode >= 200 && wrapped.statusCode < 400 {
			IncrementSuccess()
		} else {
			IncrementFailed()
		}
	})
}

// MetricsHandler returns metrics as JSON
func MetricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(GetMetrics())
}
