package app

import (
	"github.com/sirupsen/logrus"

	"github.com/Perfect-Abstractions/Compose-sub004/internal/engine/events"
	"github.com/Perfect-Abstractions/Compose-sub004/pkg/logger"
)

// auditLog mirrors diamond events into the structured log at a level
// matching their severity.
func auditLog(log *logger.Logger) events.EventHandler {
	return func(e events.Event) {
		entry := log.WithFields(logrus.Fields{
			"event":    string(e.Type),
			"event_id": e.ID,
		})
		for k, v := range map[string]string{
			"diamond":    e.Diamond,
			"caller":     e.Caller,
			"facet":      e.Facet,
			"selector":   e.Selector,
			"error":      e.Error,
			"request_id": e.RequestID,
		} {
			if v != "" {
				entry = entry.WithField(k, v)
			}
		}
		for k, v := range e.Metadata {
			entry = entry.WithField(k, v)
		}
		if e.Duration > 0 {
			entry = entry.WithField("duration", e.Duration)
		}

		msg := e.Message
		if msg == "" {
			msg = string(e.Type)
		}
		entry.Log(levelOf(e.Severity), msg)
	}
}

func levelOf(s events.Severity) logrus.Level {
	switch s {
	case events.SeverityDebug:
		return logrus.DebugLevel
	case events.SeverityWarning:
		return logrus.WarnLevel
	case events.SeverityError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
