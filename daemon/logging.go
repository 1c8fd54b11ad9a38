package daemon

import (
	"github.com/evalphobia/logrus_sentry"
	"github.com/sirupsen/logrus"
	"github.com/wolfpack-dev/wolfpack/config"
)

// NewLogger builds the logrus logger every daemon command shares, matching
// the teacher's log.verbosity/log.format/log.color flags (SPEC_FULL.md
// ambient stack). When cfg.SentryDSN is set, fatal-error and state-index
// corruption reports (§7: FatalIoError, StateIndexBusy exhaustion) also
// flow to Sentry; an empty DSN makes the hook a no-op.
func NewLogger(cfg config.LoggingConfig) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetLevel(logrus.Level(cfg.Verbosity + 1))

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{DisableColors: !cfg.Color})
	}

	if cfg.SentryDSN != "" {
		hook, err := logrus_sentry.NewSentryHook(cfg.SentryDSN, []logrus.Level{
			logrus.PanicLevel,
			logrus.FatalLevel,
			logrus.ErrorLevel,
		})
		if err != nil {
			return nil, err
		}
		logger.AddHook(hook)
	}

	return logger, nil
}
