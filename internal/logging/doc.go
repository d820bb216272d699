// Package logging provides module-scoped slog loggers for camctl.
//
// Every logger writes to an in-memory ring buffer (served at /api/logs), to
// stdout when it is connected, and to the systemd journal when journald is
// running. Levels are held in slog.LevelVar values so they can be changed
// while the daemon runs:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"camera":   "debug",
//			"platform": "warn",
//		},
//	})
//
//	logger := logging.GetLogger("camera")
//	logger.Info("Camera opened", "camera_id", id)
//
// The config file watcher calls SetLevels when the [logging] section changes.
//
// Journal entries carry SYSLOG_IDENTIFIER=camctl and one upper-cased field per
// attribute:
//
//	journalctl -t camctl MODULE=camera -f
package logging
