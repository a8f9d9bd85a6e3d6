package metrics

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"
)

// WritePrometheus encodes the collector's counters in the Prometheus text
// exposition format. Metric names are prefixed with the service name.
func (c *Collector) WritePrometheus(w io.Writer) error {
	prefix := metricPrefix(c.serviceName)
	snap := c.Snapshot()

	families := []*dto.MetricFamily{
		counterFamily(prefix+"_messages_received_total", "Messages taken off the transport.", snap.MessagesReceived),
		counterFamily(prefix+"_messages_processed_total", "Messages handled successfully.", snap.MessagesProcessed),
		counterFamily(prefix+"_messages_published_total", "Records published or persisted.", snap.MessagesPublished),
		counterFamily(prefix+"_processing_errors_total", "Processing errors.", snap.ProcessingErrors),
		gaugeFamily(prefix+"_avg_processing_latency_seconds", "Average processing latency since start.",
			snap.AvgProcessingLatencyNs/float64(time.Second)),
		gaugeFamily(prefix+"_uptime_seconds", "Seconds since the collector was created.",
			snap.LastUpdated.Sub(snap.StartedAt).Seconds()),
	}

	if len(snap.CustomCounters) > 0 {
		events := &dto.MetricFamily{
			Name: proto.String(prefix + "_events_total"),
			Help: proto.String("Named service events."),
			Type: dto.MetricType_COUNTER.Enum(),
		}
		for _, name := range c.customNames() {
			events.Metric = append(events.Metric, &dto.Metric{
				Label:   []*dto.LabelPair{{Name: proto.String("name"), Value: proto.String(name)}},
				Counter: &dto.Counter{Value: proto.Float64(float64(snap.CustomCounters[name]))},
			})
		}
		families = append(families, events)
	}

	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("failed to encode metric family %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// Handler serves WritePrometheus over HTTP.
func (c *Collector) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", string(expfmt.NewFormat(expfmt.TypeTextPlain)))
		if err := c.WritePrometheus(w); err != nil {
			slog.Error("Failed to write Prometheus metrics", "service", c.serviceName, "error", err)
		}
	})
}

// metricPrefix turns "alert-service" into "alert_service".
func metricPrefix(serviceName string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, serviceName)
}

func counterFamily(name, help string, value uint64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   proto.String(name),
		Help:   proto.String(help),
		Type:   dto.MetricType_COUNTER.Enum(),
		Metric: []*dto.Metric{{Counter: &dto.Counter{Value: proto.Float64(float64(value))}}},
	}
}

func gaugeFamily(name, help string, value float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   proto.String(name),
		Help:   proto.String(help),
		Type:   dto.MetricType_GAUGE.Enum(),
		Metric: []*dto.Metric{{Gauge: &dto.Gauge{Value: proto.Float64(value)}}},
	}
}
