package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the counters for the comms service. Each instance carries its
// own registry so tests can create throwaway collectors.
type Metrics struct {
	registry  *prometheus.Registry
	consumed  prometheus.Counter
	processed prometheus.Counter
	failed    prometheus.Counter
	emails    prometheus.Counter
	chatPosts prometheus.Counter
}

// New returns a zeroed Metrics collector with a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		consumed: factory.NewCounter(prometheus.CounterOpts{
			Name: "comms_events_consumed_total",
			Help: "Events pulled from the queue.",
		}),
		processed: factory.NewCounter(prometheus.CounterOpts{
			Name: "comms_events_processed_total",
			Help: "Events fully processed.",
		}),
		failed: factory.NewCounter(prometheus.CounterOpts{
			Name: "comms_events_failed_total",
			Help: "Events that ended in a fault.",
		}),
		emails: factory.NewCounter(prometheus.CounterOpts{
			Name: "comms_emails_sent_total",
			Help: "Individual emails accepted by the provider.",
		}),
		chatPosts: factory.NewCounter(prometheus.CounterOpts{
			Name: "comms_chat_posts_total",
			Help: "Messages posted to the chat channel.",
		}),
	}
}

func (m *Metrics) IncConsumed()  { m.consumed.Inc() }
func (m *Metrics) IncProcessed() { m.processed.Inc() }
func (m *Metrics) IncFailed()    { m.failed.Inc() }
func (m *Metrics) IncEmailSent() { m.emails.Inc() }
func (m *Metrics) IncChatPost()  { m.chatPosts.Inc() }

// Handler exposes the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
