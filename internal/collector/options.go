package collector

import (
	"time"

	"github.com/sbctool/sbctool/internal/config"
	"github.com/sbctool/sbctool/internal/logger"
)

// Options configures the collectors. Zero values fall back to
// config.DefaultConfig.
type Options struct {
	Collect config.CollectConfig

	// CommandTimeout bounds each remote command. Zero uses the session's
	// own default.
	CommandTimeout time.Duration

	// StreamJournal follows the journal live when the session supports it.
	StreamJournal bool

	Logger logger.Logger

	// Now stamps synthetic log entries. Defaults to time.Now.
	Now func() time.Time
}

// OptionsFromConfig builds Options from a loaded configuration.
func OptionsFromConfig(cfg *config.Config, log logger.Logger) Options {
	return Options{
		Collect:       cfg.Collect,
		StreamJournal: cfg.SSH.StreamJournal,
		Logger:        log,
	}
}

func (o Options) withDefaults() Options {
	def := config.DefaultConfig().Collect
	if o.Collect.SysinfoInterval <= 0 {
		o.Collect.SysinfoInterval = def.SysinfoInterval
	}
	if o.Collect.AndroidLogInterval <= 0 {
		o.Collect.AndroidLogInterval = def.AndroidLogInterval
	}
	if o.Collect.JournalInterval <= 0 {
		o.Collect.JournalInterval = def.JournalInterval
	}
	if o.Collect.SyslogInterval <= 0 {
		o.Collect.SyslogInterval = def.SyslogInterval
	}
	if o.Collect.StreamRetryInterval <= 0 {
		o.Collect.StreamRetryInterval = def.StreamRetryInterval
	}
	if o.Collect.LogLines <= 0 {
		o.Collect.LogLines = def.LogLines
	}
	if len(o.Collect.SyslogPaths) == 0 {
		o.Collect.SyslogPaths = def.SyslogPaths
	}
	o.Logger = logger.Or(o.Logger)
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}
