package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"link-watcher/internal/version"
)

// AlertaOptions configure the Alerta channel.
type AlertaOptions struct {
	URL             string
	APIKey          string
	Environment     string
	Resource        string
	Origin          string
	Severity        Severity
	TelegramChatIDs []string
	Emails          []string
	Timeout         time.Duration
}

// AlertaNotifier posts alerts to the Alerta REST API.
type AlertaNotifier struct {
	opts   AlertaOptions
	client *http.Client
	logger zerolog.Logger
}

type alertaRawData struct {
	Contacts []string `json:"contacts"`
	Telegram []string `json:"telegram"`
	Email    []string `json:"email"`
	SMS      []string `json:"sms"`
	Ticket   []string `json:"ticket"`
	Discord  []string `json:"discord"`
	Teams    []string `json:"teams"`
}

type alertaPayload struct {
	Environment string        `json:"environment"`
	Event       string        `json:"event"`
	Resource    string        `json:"resource"`
	Origin      string        `json:"origin"`
	Text        string        `json:"text"`
	Severity    Severity      `json:"severity"`
	Value       string        `json:"value"`
	Type        string        `json:"type"`
	Service     []string      `json:"service"`
	Group       string        `json:"group"`
	RawData     alertaRawData `json:"rawData"`
}

// NewAlertaNotifier builds the Alerta channel.
func NewAlertaNotifier(opts AlertaOptions, logger zerolog.Logger) *AlertaNotifier {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Environment == "" {
		opts.Environment = "Default"
	}
	if opts.Origin == "" {
		opts.Origin = "Link Watcher"
	}
	if opts.Severity == "" {
		opts.Severity = SeverityInformational
	}
	return &AlertaNotifier{
		opts:   opts,
		client: &http.Client{Timeout: opts.Timeout},
		logger: logger.With().Str("component", "alert_alerta").Logger(),
	}
}

// Notify posts one alert whose event is the message title.
func (n *AlertaNotifier) Notify(ctx context.Context, note Notification) error {
	severity := note.Severity
	if severity == "" {
		severity = n.opts.Severity
	}

	contacts := make([]string, 0, 2)
	if len(n.opts.Emails) > 0 {
		contacts = append(contacts, "email")
	}
	if len(n.opts.TelegramChatIDs) > 0 {
		contacts = append(contacts, "telegram")
	}

	payload := alertaPayload{
		Environment: n.opts.Environment,
		Event:       note.Title,
		Resource:    n.opts.Resource,
		Origin:      n.opts.Origin,
		Text:        note.Text,
		Severity:    severity,
		Value:       "",
		Type:        "linkWatcherAlert",
		Service:     []string{"watcherCheck"},
		Group:       "watcher",
		RawData: alertaRawData{
			Contacts: contacts,
			Telegram: nonNil(n.opts.TelegramChatIDs),
			Email:    nonNil(n.opts.Emails),
			SMS:      []string{},
			Ticket:   []string{},
			Discord:  []string{},
			Teams:    []string{},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal alerta payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(n.opts.URL, "/")+"/alert", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create alerta request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if n.opts.APIKey != "" {
		req.Header.Set("Authorization", "Key "+n.opts.APIKey)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send alerta request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("alerta status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	n.logger.Info().Str("event", note.Title).Str("severity", string(severity)).Msg("alert sent to alerta")
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

var _ Notifier = (*AlertaNotifier)(nil)
