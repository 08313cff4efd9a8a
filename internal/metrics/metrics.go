package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/chatterbox-server/chatterbox/internal/relay"
)

// OnlineUsersProvider exposes the number of live control sessions.
type OnlineUsersProvider interface {
	OnlineCount() int
}

// ActiveCallsProvider exposes the number of non-terminal calls.
type ActiveCallsProvider interface {
	ActiveCount() int
}

// RelayStatsProvider exposes the voice relay packet counters.
type RelayStatsProvider interface {
	Stats() relay.Stats
}

// AccountCounter returns the number of registered accounts.
type AccountCounter interface {
	Count(ctx context.Context) (int64, error)
}

// Collector is a prometheus.Collector that gathers server metrics at
// scrape time. Any provider may be nil if unavailable.
type Collector struct {
	online    OnlineUsersProvider
	calls     ActiveCallsProvider
	relay     RelayStatsProvider
	accounts  AccountCounter
	startTime time.Time

	onlineUsersDesc        *prometheus.Desc
	activeCallsDesc        *prometheus.Desc
	accountsDesc           *prometheus.Desc
	voiceRegistrationsDesc *prometheus.Desc
	voiceForwardedDesc     *prometheus.Desc
	voiceDroppedDesc       *prometheus.Desc
	voiceBytesDesc         *prometheus.Desc
	voiceIgnoredDesc       *prometheus.Desc
	uptimeDesc             *prometheus.Desc
}

// NewCollector creates a new metrics collector.
func NewCollector(
	online OnlineUsersProvider,
	calls ActiveCallsProvider,
	relayStats RelayStatsProvider,
	accounts AccountCounter,
	startTime time.Time,
) *Collector {
	return &Collector{
		online:    online,
		calls:     calls,
		relay:     relayStats,
		accounts:  accounts,
		startTime: startTime,

		onlineUsersDesc: prometheus.NewDesc(
			"chatterbox_online_users",
			"Number of users with a live signaling connection",
			nil, nil,
		),
		activeCallsDesc: prometheus.NewDesc(
			"chatterbox_active_calls",
			"Number of calls currently ringing or active",
			nil, nil,
		),
		accountsDesc: prometheus.NewDesc(
			"chatterbox_registered_accounts",
			"Total number of registered accounts",
			nil, nil,
		),
		voiceRegistrationsDesc: prometheus.NewDesc(
			"chatterbox_voice_registrations_total",
			"Total voice endpoint registration datagrams processed",
			nil, nil,
		),
		voiceForwardedDesc: prometheus.NewDesc(
			"chatterbox_voice_frames_forwarded_total",
			"Total voice frames forwarded by the relay",
			nil, nil,
		),
		voiceDroppedDesc: prometheus.NewDesc(
			"chatterbox_voice_frames_dropped_total",
			"Total voice frames dropped (malformed, unknown receiver, or send failure)",
			nil, nil,
		),
		voiceBytesDesc: prometheus.NewDesc(
			"chatterbox_voice_bytes_forwarded_total",
			"Total bytes forwarded by the voice relay",
			nil, nil,
		),
		voiceIgnoredDesc: prometheus.NewDesc(
			"chatterbox_voice_datagrams_ignored_total",
			"Total datagrams ignored for not matching any known shape",
			nil, nil,
		),
		uptimeDesc: prometheus.NewDesc(
			"chatterbox_uptime_seconds",
			"Seconds since the server process started",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.onlineUsersDesc
	ch <- c.activeCallsDesc
	ch <- c.accountsDesc
	ch <- c.voiceRegistrationsDesc
	ch <- c.voiceForwardedDesc
	ch <- c.voiceDroppedDesc
	ch <- c.voiceBytesDesc
	ch <- c.voiceIgnoredDesc
	ch <- c.uptimeDesc
}

// Collect implements prometheus.Collector. It queries all providers at
// scrape time.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if c.online != nil {
		ch <- prometheus.MustNewConstMetric(
			c.onlineUsersDesc, prometheus.GaugeValue,
			float64(c.online.OnlineCount()),
		)
	}

	if c.calls != nil {
		ch <- prometheus.MustNewConstMetric(
			c.activeCallsDesc, prometheus.GaugeValue,
			float64(c.calls.ActiveCount()),
		)
	}

	if c.accounts != nil {
		count, err := c.accounts.Count(ctx)
		if err != nil {
			slog.Error("metrics: failed to count accounts", "error", err)
		} else {
			ch <- prometheus.MustNewConstMetric(
				c.accountsDesc, prometheus.GaugeValue,
				float64(count),
			)
		}
	}

	if c.relay != nil {
		stats := c.relay.Stats()
		ch <- prometheus.MustNewConstMetric(
			c.voiceRegistrationsDesc, prometheus.CounterValue,
			float64(stats.Registrations),
		)
		ch <- prometheus.MustNewConstMetric(
			c.voiceForwardedDesc, prometheus.CounterValue,
			float64(stats.FramesForwarded),
		)
		ch <- prometheus.MustNewConstMetric(
			c.voiceDroppedDesc, prometheus.CounterValue,
			float64(stats.FramesDropped),
		)
		ch <- prometheus.MustNewConstMetric(
			c.voiceBytesDesc, prometheus.CounterValue,
			float64(stats.BytesForwarded),
		)
		ch <- prometheus.MustNewConstMetric(
			c.voiceIgnoredDesc, prometheus.CounterValue,
			float64(stats.Ignored),
		)
	}

	ch <- prometheus.MustNewConstMetric(
		c.uptimeDesc, prometheus.GaugeValue,
		time.Since(c.startTime).Seconds(),
	)
}
