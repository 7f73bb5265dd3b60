package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gpumon/check-gpu/internal/check"
)

// WriteTextfile exports the performance record and the overall status as
// gauges in the node-exporter textfile collector format.
func WriteTextfile(path, product string, perf check.PerfRecord, result *check.Result) error {
	registry := prometheus.NewRegistry()
	if err := registry.Register(&perfCollector{product: product, perf: perf, result: result}); err != nil {
		return fmt.Errorf("register collector: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, registry); err != nil {
		return fmt.Errorf("write textfile: %w", err)
	}
	return nil
}

// perfCollector adapts one evaluation pass to the prometheus.Collector
// interface. Descriptors are derived from the sensor names on the fly
// since the sensor set depends on the device.
type perfCollector struct {
	product string
	perf    check.PerfRecord
	result  *check.Result
}

var statusDesc = prometheus.NewDesc(
	prometheus.BuildFQName("checkgpu", "", "status"),
	"Overall check severity (0 OK, 1 warning, 2 critical).",
	[]string{"gpu"},
	nil,
)

func (c *perfCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- statusDesc
}

func (c *perfCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(statusDesc, prometheus.GaugeValue, float64(c.result.Severity()), c.product)

	names := make([]string, 0, len(c.perf))
	for name := range c.perf {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		desc := prometheus.NewDesc(
			prometheus.BuildFQName("checkgpu", "sensor", metricName(name)),
			fmt.Sprintf("Current value of the %s sensor.", name),
			[]string{"gpu"},
			nil,
		)
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, c.perf[name], c.product)
	}
}

// metricName converts a camel-case sensor name to the snake-case form
// prometheus expects.
func metricName(sensor string) string {
	var b strings.Builder
	var prevLower bool
	for _, r := range sensor {
		switch {
		case r >= 'A' && r <= 'Z':
			if prevLower {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
			prevLower = false
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			prevLower = r >= 'a' && r <= 'z'
		default:
			b.WriteByte('_')
			prevLower = false
		}
	}
	return b.String()
}
