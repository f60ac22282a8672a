package alerting

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"link-watcher/internal/report"
)

// Severity follows the Alerta severity vocabulary.
type Severity string

const (
	SeverityCritical      Severity = "critical"
	SeverityMajor         Severity = "major"
	SeverityMinor         Severity = "minor"
	SeverityWarning       Severity = "warning"
	SeverityInformational Severity = "informational"
	SeverityDebug         Severity = "debug"
	SeverityTrace         Severity = "trace"
	SeverityOK            Severity = "ok"
	SeverityNormal        Severity = "normal"
	SeveritySecurity      Severity = "security"
	SeverityUnknown       Severity = "unknown"
)

var severities = []Severity{
	SeverityCritical, SeverityMajor, SeverityMinor, SeverityWarning, SeverityInformational,
	SeverityDebug, SeverityTrace, SeverityOK, SeverityNormal, SeveritySecurity, SeverityUnknown,
}

// ParseSeverity validates a configured severity name.
func ParseSeverity(s string) (Severity, error) {
	candidate := Severity(strings.ToLower(strings.TrimSpace(s)))
	for _, sev := range severities {
		if sev == candidate {
			return sev, nil
		}
	}
	return "", fmt.Errorf("unknown severity %q", s)
}

// Notification 封装告警上下文。
type Notification struct {
	Title    string
	Text     string
	Severity Severity
	Window   report.Window
}

// Notifier 定义告警输送接口。
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// Multi delivers a notification to every channel. A failing channel does not stop the
// others; the returned error joins every failure.
type Multi struct {
	notifiers []Notifier
	logger    zerolog.Logger
}

// NewMulti fans out to notifiers, skipping nil entries.
func NewMulti(logger zerolog.Logger, notifiers ...Notifier) *Multi {
	m := &Multi{logger: logger.With().Str("component", "alert_fanout").Logger()}
	for _, n := range notifiers {
		if n != nil {
			m.notifiers = append(m.notifiers, n)
		}
	}
	return m
}

// Len returns the number of channels.
func (m *Multi) Len() int {
	return len(m.notifiers)
}

// Notify sends note to every channel.
func (m *Multi) Notify(ctx context.Context, note Notification) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, note); err != nil {
			m.logger.Error().Err(err).Str("channel", fmt.Sprintf("%T", n)).Msg("alert delivery failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ Notifier = (*Multi)(nil)
