package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aniladanir/webhook-inbox/internal/domain"
)

type httpKey struct {
	path   string
	status int
}

// Collector holds the process-lifetime request counters. Counts only grow
// and reset on restart; there is no persistence behind them.
type Collector struct {
	mtx     sync.Mutex
	http    map[httpKey]uint64
	webhook map[domain.IngestOutcome]uint64
}

func NewCollector() *Collector {
	return &Collector{
		http:    make(map[httpKey]uint64),
		webhook: make(map[domain.IngestOutcome]uint64),
	}
}

// IncHTTP records one completed request for a route/status pair.
func (c *Collector) IncHTTP(path string, status int) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.http[httpKey{path: path, status: status}]++
}

// IncWebhook records one classified webhook delivery outcome.
func (c *Collector) IncWebhook(outcome domain.IngestOutcome) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.webhook[outcome]++
}

// Render writes the counters in a minimal text exposition format, one
// counter per line. Lines are sorted so output is stable across calls.
func (c *Collector) Render() string {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	lines := make([]string, 0, len(c.http)+len(c.webhook))
	for k, v := range c.http {
		lines = append(lines, fmt.Sprintf("http_requests_total{path=%q,status=%q} %d", k.path, fmt.Sprint(k.status), v))
	}
	for outcome, v := range c.webhook {
		lines = append(lines, fmt.Sprintf("webhook_requests_total{result=%q} %d", string(outcome), v))
	}
	sort.Strings(lines)

	return strings.Join(lines, "\n")
}
