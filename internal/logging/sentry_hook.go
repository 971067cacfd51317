package logging

import (
	"errors"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
)

// sentryCapturer is the part of the sentry hub the hook uses.
type sentryCapturer interface {
	CaptureEvent(event *sentry.Event) *sentry.EventID
	CaptureException(exception error) *sentry.EventID
}

// SentryHook forwards logrus entries of the given levels to sentry.
type SentryHook struct {
	levels []logrus.Level
	hub    sentryCapturer
}

func NewSentryHook(levels []logrus.Level) *SentryHook {
	return &SentryHook{
		levels: levels,
		hub:    sentry.CurrentHub(),
	}
}

func (h *SentryHook) Levels() []logrus.Level {
	return h.levels
}

func (h *SentryHook) Fire(entry *logrus.Entry) error {
	if errField, ok := entry.Data[logrus.ErrorKey]; ok {
		if err, ok := errField.(error); ok {
			h.hub.CaptureException(err)
			return nil
		}
	}

	event := sentry.NewEvent()
	event.Level = sentryLevel(entry.Level)
	event.Message = entry.Message
	event.Timestamp = entry.Time
	event.Extra = make(map[string]interface{}, len(entry.Data))
	for k, v := range entry.Data {
		event.Extra[k] = v
	}

	if eventID := h.hub.CaptureEvent(event); eventID == nil {
		return errors.New("sentry event not captured")
	}
	return nil
}

func sentryLevel(level logrus.Level) sentry.Level {
	switch level {
	case logrus.PanicLevel, logrus.FatalLevel:
		return sentry.LevelFatal
	case logrus.ErrorLevel:
		return sentry.LevelError
	case logrus.WarnLevel:
		return sentry.LevelWarning
	case logrus.InfoLevel:
		return sentry.LevelInfo
	default:
		return sentry.LevelDebug
	}
}
