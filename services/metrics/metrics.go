package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the auth and route guard metrics, on a registry of its own.
type Collector struct {
	registry    *prometheus.Registry
	signIns     *prometheus.CounterVec
	signOuts    *prometheus.CounterVec
	routeAccess *prometheus.CounterVec
}

func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		signIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sign_ins_total",
			Help:      "Sign in attempts by result.",
		}, []string{"result"}),
		signOuts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sign_outs_total",
			Help:      "Sign outs by backend result. Local state is cleared in every case.",
		}, []string{"result"}),
		routeAccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_access_total",
			Help:      "Route guard decisions by route and state.",
		}, []string{"route", "state"}),
	}
	c.registry.MustRegister(
		c.signIns,
		c.signOuts,
		c.routeAccess,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) SignIn(result string) {
	c.signIns.WithLabelValues(result).Inc()
}

func (c *Collector) SignOut(result string) {
	c.signOuts.WithLabelValues(result).Inc()
}

func (c *Collector) RouteAccess(route, state string) {
	c.routeAccess.WithLabelValues(route, state).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
