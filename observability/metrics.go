package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// RPCMetrics records JSON-RPC activity for the settlement service.
type RPCMetrics struct {
	Requests    *prometheus.CounterVec
	Settlements prometheus.Counter
	Orders      prometheus.Counter
}

var (
	rpcMetricsOnce sync.Once
	rpcRegistry    *RPCMetrics
)

// Metrics returns the lazily-initialised RPC metrics registry.
func Metrics() *RPCMetrics {
	rpcMetricsOnce.Do(func() {
		rpcRegistry = &RPCMetrics{
			Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "swapbook",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			Settlements: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "swapbook",
				Subsystem: "orderbook",
				Name:      "settlements_total",
				Help:      "Total successful order resolutions.",
			}),
			Orders: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "swapbook",
				Subsystem: "orderbook",
				Name:      "orders_placed_total",
				Help:      "Total successfully placed orders.",
			}),
		}
		prometheus.MustRegister(rpcRegistry.Requests, rpcRegistry.Settlements, rpcRegistry.Orders)
	})
	return rpcRegistry
}
