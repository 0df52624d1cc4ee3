package wallet

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts lifecycle transitions. A nil *Metrics records nothing.
type Metrics struct {
	provision  *prometheus.CounterVec
	initialize *prometheus.CounterVec
	shutdown   prometheus.Counter
}

// NewMetrics creates the lifecycle counters and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		provision: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "didkey",
			Subsystem: "wallet",
			Name:      "provision_total",
			Help:      "Store provisioning attempts by outcome.",
		}, []string{"outcome"}),
		initialize: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "didkey",
			Subsystem: "wallet",
			Name:      "initialize_total",
			Help:      "Store initialization attempts by outcome.",
		}, []string{"outcome"}),
		shutdown: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "didkey",
			Subsystem: "wallet",
			Name:      "shutdown_total",
			Help:      "Runtimes shut down.",
		}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.provision, m.initialize, m.shutdown} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Outcome labels.
const (
	outcomeCreated   = "created"
	outcomeExisting  = "existing"
	outcomeCancelled = "cancelled"
	outcomeFailed    = "failed"
	outcomeOK        = "ok"
)

func (m *Metrics) observeProvision(outcome string) {
	if m == nil {
		return
	}
	m.provision.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeInitialize(outcome string) {
	if m == nil {
		return
	}
	m.initialize.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeShutdown() {
	if m == nil {
		return
	}
	m.shutdown.Inc()
}
