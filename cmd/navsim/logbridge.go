package main

import (
	"context"
	"log/slog"

	"github.com/sirupsen/logrus"
)

// logrusHandler sends slog records from the firmware packages to a logrus
// logger, so the simulator has one log stream and one level switch.
type logrusHandler struct {
	logger *logrus.Logger
	fields logrus.Fields
	group  string
}

func newLogrusHandler(logger *logrus.Logger) *logrusHandler {
	return &logrusHandler{logger: logger, fields: logrus.Fields{}}
}

func (h *logrusHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.logger.IsLevelEnabled(logrusLevel(level))
}

func (h *logrusHandler) Handle(_ context.Context, r slog.Record) error {
	fields := make(logrus.Fields, len(h.fields)+r.NumAttrs())
	for k, v := range h.fields {
		fields[k] = v
	}
	r.Attrs(func(a slog.Attr) bool {
		h.add(fields, a)
		return true
	})
	h.logger.WithFields(fields).Log(logrusLevel(r.Level), r.Message)
	return nil
}

func (h *logrusHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	fields := make(logrus.Fields, len(h.fields)+len(attrs))
	for k, v := range h.fields {
		fields[k] = v
	}
	for _, a := range attrs {
		h.add(fields, a)
	}
	return &logrusHandler{logger: h.logger, fields: fields, group: h.group}
}

func (h *logrusHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	group := name
	if h.group != "" {
		group = h.group + "." + name
	}
	return &logrusHandler{logger: h.logger, fields: h.fields, group: group}
}

func (h *logrusHandler) add(fields logrus.Fields, a slog.Attr) {
	key := a.Key
	switch {
	case key == "":
		key = h.group
	case h.group != "":
		key = h.group + "." + key
	}
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		sub := &logrusHandler{logger: h.logger, group: key}
		for _, ga := range v.Group() {
			sub.add(fields, ga)
		}
		return
	}
	fields[key] = v.Any()
}

func logrusLevel(level slog.Level) logrus.Level {
	switch {
	case level >= slog.LevelError:
		return logrus.ErrorLevel
	case level >= slog.LevelWarn:
		return logrus.WarnLevel
	case level >= slog.LevelInfo:
		return logrus.InfoLevel
	default:
		return logrus.DebugLevel
	}
}
