// Package metrics exports relay counters in the prometheus text format.
package metrics

import (
	"net/http"

	"github.com/dkeye/Meet/internal/app"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "meet"

type Prometheus struct {
	reg *prometheus.Registry

	sessions       prometheus.Gauge
	sessionsTotal  prometheus.Counter
	refused        *prometheus.CounterVec
	routed         *prometheus.CounterVec
	dropped        *prometheus.CounterVec
	deliveryFailed prometheus.Counter
}

// New registers the relay collectors on a private registry. rooms, when not
// nil, backs the live room and handle gauges.
func New(rooms *app.Registry) *Prometheus {
	p := &Prometheus{
		reg: prometheus.NewRegistry(),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "sessions_active",
			Help: "Participants currently connected.",
		}),
		sessionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "sessions_total",
			Help: "Participants admitted since start.",
		}),
		refused: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "joins_refused_total",
			Help: "Connection attempts refused, by reason.",
		}, []string{"reason"}),
		routed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "messages_routed_total",
			Help: "Inbound messages handled, by kind.",
		}, []string{"kind"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "messages_dropped_total",
			Help: "Inbound messages dropped, by reason.",
		}, []string{"reason"}),
		deliveryFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "delivery_failures_total",
			Help: "Sends that failed and pruned a handle.",
		}),
	}

	p.reg.MustRegister(
		p.sessions, p.sessionsTotal, p.refused, p.routed, p.dropped, p.deliveryFailed,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if rooms != nil {
		p.reg.MustRegister(
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace, Name: "rooms_live",
				Help: "Rooms with at least one registered handle.",
			}, func() float64 { return float64(len(rooms.Rooms())) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace, Name: "handles_live",
				Help: "Registered connection handles across all rooms.",
			}, func() float64 {
				n := 0
				for _, r := range rooms.Rooms() {
					n += r.MemberCount
				}
				return float64(n)
			}),
		)
	}
	return p
}

func (p *Prometheus) SessionStarted() {
	p.sessions.Inc()
	p.sessionsTotal.Inc()
}

func (p *Prometheus) SessionEnded()                { p.sessions.Dec() }
func (p *Prometheus) JoinRefused(reason string)    { p.refused.WithLabelValues(reason).Inc() }
func (p *Prometheus) MessageRouted(kind string)    { p.routed.WithLabelValues(kind).Inc() }
func (p *Prometheus) MessageDropped(reason string) { p.dropped.WithLabelValues(reason).Inc() }
func (p *Prometheus) DeliveryFailed(n int)         { p.deliveryFailed.Add(float64(n)) }

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{Registry: p.reg})
}
