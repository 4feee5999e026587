package engine

import (
	"time"
)

// Defaults applied when the corresponding config field is zero.
const (
	defaultTimeoutDuration  = 24 * time.Hour
	defaultPhashThreshold   = 8
	defaultPhashCooldown    = 6 * time.Hour
	defaultPhashConcurrency = 3
	defaultQRConcurrency    = 2
	defaultQRMaxBytes       = 5 << 20
)

// EngineConfig is the static behavior configuration, resolved once at startup.
type EngineConfig struct {
	// WindowDays bounds which accounts are subject to detection: only accounts
	// that joined within this many days are scored and scanned. Zero disables
	// the gate.
	WindowDays int

	// TimeoutDuration is how long a timeout sanction lasts.
	TimeoutDuration time.Duration

	// Channel scoping. An empty list matches no channels.
	MonitoredChannels []int64
	QRChannels        []int64
	// LogOnlyChannels are monitored but never enforced against.
	LogOnlyChannels []int64

	// Policy verbs per event kind, one of log, delete, timeout,
	// delete_timeout. Empty means log.
	PolicyMessage string
	PolicyThread  string
	PolicyQR      string
	PolicyAvatar  string

	// Ban switches. Ban takes precedence over timeout when both would apply.
	BanOnQR     bool
	BanOnStrict bool
	BanOnNormal bool

	// Avatar matcher tuning.
	PhashThreshold   int
	PhashCooldown    time.Duration
	PhashConcurrency int64

	// QR scanner tuning.
	QRMaxBytes    int64
	QRExcludeGIF  bool
	QRConcurrency int64
}

func (c *EngineConfig) timeoutDuration() time.Duration {
	if c.TimeoutDuration <= 0 {
		return defaultTimeoutDuration
	}
	return c.TimeoutDuration
}

func (c *EngineConfig) phashThreshold() int {
	if c.PhashThreshold <= 0 {
		return defaultPhashThreshold
	}
	return c.PhashThreshold
}

func (c *EngineConfig) phashCooldown() time.Duration {
	if c.PhashCooldown <= 0 {
		return defaultPhashCooldown
	}
	return c.PhashCooldown
}

func (c *EngineConfig) qrMaxBytes() int64 {
	if c.QRMaxBytes <= 0 {
		return defaultQRMaxBytes
	}
	return c.QRMaxBytes
}

// channelMatch reports whether id is in list. An empty list matches nothing,
// so an unconfigured channel class is inert rather than wide open.
func channelMatch(list []int64, id int64) bool {
	for _, c := range list {
		if c == id {
			return true
		}
	}
	return false
}

// joinedWithin reports whether the account joined recently enough to be
// subject to detection. Accounts with an unknown join time are treated as
// recent, so an unresolvable member record cannot dodge the gate.
func (c *EngineConfig) joinedWithin(am AccountMeta, now time.Time) bool {
	if c.WindowDays <= 0 {
		return true
	}
	if am.JoinedAt.IsZero() {
		return true
	}
	return now.Sub(am.JoinedAt) <= time.Duration(c.WindowDays)*24*time.Hour
}
