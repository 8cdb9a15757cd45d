package connectivity

import (
	"context"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/telreader/telugu-science-reader/internal/apperr"
	"github.com/telreader/telugu-science-reader/pkg/log"
)

// Prober periodically checks reachability of the AI endpoint and feeds the
// result into the monitor. Any HTTP response, including an error status,
// counts as reachable: the probe tests the network path, not the handler.
type Prober struct {
	monitor  *Monitor
	client   *http.Client
	url      string
	schedule string
	cron     *cron.Cron
}

func NewProber(monitor *Monitor, url, schedule string) *Prober {
	return &Prober{
		monitor:  monitor,
		client:   &http.Client{Timeout: 5 * time.Second},
		url:      url,
		schedule: schedule,
	}
}

// Start registers the probe on its cron schedule and runs one probe
// immediately so the monitor starts from a measured state.
func (p *Prober) Start(ctx context.Context) error {
	p.Probe(ctx)

	c := cron.New()
	if _, err := c.AddFunc(p.schedule, func() { p.Probe(context.Background()) }); err != nil {
		return apperr.Wrap(err, apperr.ErrConfig, "invalid probe schedule").WithContext("schedule", p.schedule)
	}
	c.Start()
	p.cron = c
	log.Info("Connectivity probe scheduled (%s) against %s", p.schedule, p.url)
	return nil
}

func (p *Prober) Stop() {
	if p.cron != nil {
		<-p.cron.Stop().Done()
	}
}

// Probe performs a single reachability check and updates the monitor.
func (p *Prober) Probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		p.monitor.Set(false)
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		log.Debug("Probe failed: %v", err)
		p.monitor.Set(false)
		return false
	}
	resp.Body.Close()
	p.monitor.Set(true)
	return true
}
