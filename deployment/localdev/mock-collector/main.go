package main

import (
	"encoding/json"
	"log"
	"net/http"
	"time"
)

// The mock rotates through load phases so the engine's transitions are
// visible during local development: one minute healthy, one minute
// stressed, one minute on the floor.
const phasePeriod = time.Minute

type clusterSignals struct {
	Throughput     float64
	CompletionRate float64
	BacklogAge     float64
	PersistErrRate float64
	Narrative      []map[string]any
}

func currentPhase() int {
	return int(time.Now().Unix()/int64(phasePeriod.Seconds())) % 3
}

func signalsForPhase(phase int) clusterSignals {
	switch phase {
	case 1:
		return clusterSignals{
			Throughput:     35,
			CompletionRate: 0.88,
			BacklogAge:     45,
			Narrative: []map[string]any{
				{"pattern": "task backlog growing", "service": "history", "count": 12},
			},
		}
	case 2:
		return clusterSignals{
			Throughput:     4,
			CompletionRate: 0.4,
			BacklogAge:     250,
			PersistErrRate: 22,
			Narrative: []map[string]any{
				{"pattern": "persistence timeout", "service": "history", "count": 80, "sample_message": "UpdateWorkflowExecution: context deadline exceeded"},
				{"pattern": "shard ownership lost", "service": "history", "count": 14},
			},
		}
	default:
		return clusterSignals{
			Throughput:     65,
			CompletionRate: 0.99,
			BacklogAge:     3,
		}
	}
}

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/api/v1/signals/cluster", func(w http.ResponseWriter, r *http.Request) {
		if !enforcePost(w, r) {
			return
		}
		s := signalsForPhase(currentPhase())
		writeJSON(w, map[string]any{
			"timestamp": time.Now().UTC(),
			"primary": map[string]any{
				"state_transitions": map[string]any{
					"throughput_per_sec": s.Throughput,
					"latency_p95_ms":     120.0,
					"latency_p99_ms":     310.0,
				},
				"workflow_completion": map[string]any{
					"completion_rate": s.CompletionRate,
					"success_per_sec": s.Throughput * s.CompletionRate,
					"failed_per_sec":  s.Throughput * (1 - s.CompletionRate),
				},
				"history": map[string]any{
					"backlog_age_sec":              s.BacklogAge,
					"task_processing_rate_per_sec": s.Throughput,
					"shard_churn_rate_per_sec":     0.2,
				},
				"frontend": map[string]any{
					"error_rate_per_sec": 0.4,
					"latency_p95_ms":     45.0,
					"latency_p99_ms":     180.0,
				},
				"matching": map[string]any{
					"workflow_backlog_age_sec": s.BacklogAge / 2,
					"activity_backlog_age_sec": s.BacklogAge / 3,
				},
				"poller": map[string]any{
					"poll_success_rate":    0.97,
					"poll_timeout_rate":    0.02,
					"long_poll_latency_ms": 900.0,
				},
				"persistence": map[string]any{
					"latency_p95_ms":     30.0,
					"latency_p99_ms":     85.0,
					"error_rate_per_sec": s.PersistErrRate,
					"retry_rate_per_sec": s.PersistErrRate / 2,
				},
			},
			"amplifiers": map[string]any{},
			"narrative":  s.Narrative,
		})
	})

	mux.HandleFunc("/api/v1/signals/workers", func(w http.ResponseWriter, r *http.Request) {
		if !enforcePost(w, r) {
			return
		}
		phase := currentPhase()
		slots := 20
		if phase == 2 {
			slots = 0
		}
		writeJSON(w, map[string]any{
			"timestamp": time.Now().UTC(),
			"signals": map[string]any{
				"wft_schedule_to_start_p95_ms":      float64(10 + phase*40),
				"wft_schedule_to_start_p99_ms":      float64(25 + phase*80),
				"activity_schedule_to_start_p95_ms": 12.0,
				"activity_schedule_to_start_p99_ms": 30.0,
				"workflow_slots_available":          slots,
				"workflow_slots_used":               20 - slots,
				"activity_slots_available":          slots * 2,
				"activity_slots_used":               (20 - slots) * 2,
				"workflow_pollers":                  4,
				"activity_pollers":                  4,
			},
			"cache": map[string]any{
				"sticky_cache_size":              512,
				"sticky_cache_hit_rate":          0.92,
				"sticky_cache_miss_rate_per_sec": 1.5,
			},
			"poll": map[string]any{
				"long_poll_latency_p95_ms":       820.0,
				"long_poll_failure_rate_per_sec": 0.1,
			},
		})
	})

	logger := log.New(log.Writer(), "collector-mock ", log.LstdFlags|log.Lmicroseconds)
	srv := &http.Server{
		Addr:    ":9090",
		Handler: logRequests(logger, mux),
	}

	logger.Println("listening on :9090")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

func enforcePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
