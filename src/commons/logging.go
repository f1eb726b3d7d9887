package commons

import (
	"github.com/getsentry/raven-go"
	log "github.com/sirupsen/logrus"
)

func SetupLogging(level string, release bool) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.Warn("[Main] Unknown log level ", level, ", falling back to debug")
		lvl = log.DebugLevel
	}
	log.SetLevel(lvl)

	if release {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

// SetupSentry enables error reporting. Without a DSN reporting stays disabled.
func SetupSentry(dsn string, release bool) error {
	if dsn == "" {
		return nil
	}
	if err := raven.SetDSN(dsn); err != nil {
		return err
	}
	if release {
		raven.SetEnvironment("production")
	} else {
		raven.SetEnvironment("development")
	}
	return nil
}

// ReportError forwards err to Sentry when reporting is enabled.
func ReportError(err error, tags map[string]string) {
	if err == nil || raven.DefaultClient.URL() == "" {
		return
	}
	raven.CaptureError(err, tags)
}
