// Package metrics holds the node's prometheus collectors. They live on a dedicated registry so
// several nodes in one process (tests, local mode) share counters without double registration.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	tplog "github.com/TopiaNetwork/aggregation/log"
)

const namespace = "aggregation"

var Registry = prometheus.NewRegistry()

var (
	Rounds = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rounds_total",
		Help:      "Rounds by outcome: started, finalized, timeout, discarded.",
	}, []string{"result"})

	PartialSignatures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "partial_signatures_total",
		Help:      "Partial signatures seen by the orchestrator, by outcome.",
	}, []string{"result"})

	InvariantViolations = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "invariant_violations_total",
		Help:      "Aggregates that failed verification although every partial verified.",
	})

	ContributorRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "contributor_requests_total",
		Help:      "Signing requests handled by contributors, by outcome.",
	}, []string{"result"})

	RoundDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "round_duration_seconds",
		Help:      "Time from round start to finalization.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	P2PMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "p2p_messages_total",
		Help: "Transport messages by direction and outcome.",
	}, []string{"direction", "result"})
)

func init() {
	Registry.MustRegister(
		Rounds,
		PartialSignatures,
		InvariantViolations,
		ContributorRequests,
		RoundDuration,
		P2PMessages,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, log tplog.Logger, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Infof("Serving metrics on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
