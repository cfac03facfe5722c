package audit

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/robfig/cron/v3"

	"care-gateway/internal/common/logging"
)

// Entry is the record pushed through the audit sink. The sink is consumed
// here, not implemented: audit persistence belongs to the surrounding
// system.
type Entry struct {
	OrgID      string                 `json:"org_id"`
	UserID     string                 `json:"user_id,omitempty"`
	Action     string                 `json:"action"`
	Resource   string                 `json:"resource"`
	ResourceID string                 `json:"resource_id"`
	Details    map[string]interface{} `json:"details"`
	IPAddress  string                 `json:"ip_address,omitempty"`
	UserAgent  string                 `json:"user_agent,omitempty"`
}

// Sink delivers one audit entry and reports success or failure per call.
type Sink func(ctx context.Context, entry Entry) error

// Flusher periodically drains the recorder, groups violations by IP, and
// pushes one audit record per group through the sink. Delivery is
// best-effort: a failed group is logged and not re-queued.
type Flusher struct {
	recorder *Recorder
	sink     Sink
	orgID    string
	interval time.Duration
	logger   logging.Logger

	cron *cron.Cron
}

// NewFlusher creates a flusher. A non-positive interval defaults to one
// minute.
func NewFlusher(recorder *Recorder, sink Sink, orgID string, interval time.Duration, logger logging.Logger) *Flusher {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Flusher{
		recorder: recorder,
		sink:     sink,
		orgID:    orgID,
		interval: interval,
		logger:   logger,
	}
}

// Start schedules the periodic flush.
func (f *Flusher) Start() error {
	f.cron = cron.New()
	_, err := f.cron.AddFunc(fmt.Sprintf("@every %s", f.interval), func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		f.Flush(ctx)
	})
	if err != nil {
		return err
	}
	f.cron.Start()

	f.logger.Info("Audit flusher started", logging.Duration("interval", f.interval))
	return nil
}

// Stop halts the schedule and runs one final flush so buffered violations
// are not lost on shutdown.
func (f *Flusher) Stop(ctx context.Context) {
	if f.cron != nil {
		<-f.cron.Stop().Done()
	}
	f.Flush(ctx)
}

// Flush drains the buffer and delivers one entry per source IP. A sink
// failure for one group does not abort the remaining groups.
func (f *Flusher) Flush(ctx context.Context) {
	violations := f.recorder.Drain()
	if len(violations) == 0 {
		return
	}

	groups := groupByIP(violations)

	ips := make([]string, 0, len(groups))
	for ip := range groups {
		ips = append(ips, ip)
	}
	sort.Strings(ips)

	delivered := 0
	for _, ip := range ips {
		entry := buildEntry(f.orgID, ip, groups[ip])
		if err := f.sink(ctx, entry); err != nil {
			f.logger.Error("failed to deliver violation audit record", err,
				logging.String("ip", ip),
				logging.Int("violations", len(groups[ip])),
			)
			continue
		}
		delivered++
	}

	f.logger.Info("Flushed rate limit violations",
		logging.Int("violations", len(violations)),
		logging.Int("groups", len(groups)),
		logging.Int("delivered", delivered),
	)
}

// groupByIP buckets violations by source IP; violations with no IP share
// the "unknown" group.
func groupByIP(violations []Violation) map[string][]Violation {
	groups := make(map[string][]Violation)
	for _, v := range violations {
		ip := v.IP
		if ip == "" {
			ip = "unknown"
		}
		groups[ip] = append(groups[ip], v)
	}
	return groups
}

// buildEntry picks the most severe violation as the group representative
// (ties broken by order) and summarizes the group around it.
func buildEntry(orgID, ip string, group []Violation) Entry {
	representative := group[0]
	for _, v := range group[1:] {
		if severityRank(Classify(v)) > severityRank(Classify(representative)) {
			representative = v
		}
	}

	seen := make(map[string]bool)
	var categories []string
	for _, v := range group {
		name := string(v.Category)
		if !seen[name] {
			seen[name] = true
			categories = append(categories, name)
		}
	}

	ipAddress := ip
	if ip == "unknown" {
		ipAddress = ""
	}

	return Entry{
		OrgID:      orgID,
		UserID:     representative.UserID,
		Action:     "rate_limit.violation",
		Resource:   "rate_limit",
		ResourceID: string(representative.Category),
		Details: map[string]interface{}{
			"severity":        string(Classify(representative)),
			"path":            representative.Path,
			"method":          representative.Method,
			"limit":           representative.Limit,
			"retry_after":     representative.RetryAfter,
			"violation_count": len(group),
			"categories":      categories,
		},
		IPAddress: ipAddress,
		UserAgent: representative.UserAgent,
	}
}
