package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"
)

// AlertStore persists alerts for audit and history
type AlertStore interface {
	SaveAlert(ctx context.Context, alert *Alert) error
}

// Notifier delivers an alert to one channel
type Notifier interface {
	Channel() Channel
	Send(ctx context.Context, alert *Alert) error
}

// Dispatcher fans a fired alert out to its channels. Channels fail
// independently: one timing out never blocks the others, and the persisted
// record is always written so alert history is never silently lost.
type Dispatcher struct {
	notifiers map[Channel]Notifier
	store     AlertStore
	log       *zap.SugaredLogger
}

// NewDispatcher creates a dispatcher. The store is required; external
// channels are registered separately.
func NewDispatcher(store AlertStore, log *zap.SugaredLogger) (*Dispatcher, error) {
	if store == nil {
		return nil, fmt.Errorf("alert store is required")
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Dispatcher{
		notifiers: make(map[Channel]Notifier),
		store:     store,
		log:       log,
	}, nil
}

// Register adds a channel implementation
func (d *Dispatcher) Register(n Notifier) {
	d.notifiers[n.Channel()] = n
}

// Dispatch delivers the alert. Persistence happens first regardless of the
// channel list; per-channel failures are logged and isolated, never
// surfaced to the caller.
func (d *Dispatcher) Dispatch(ctx context.Context, alert *Alert) {
	if err := d.store.SaveAlert(ctx, alert); err != nil {
		d.log.Errorw("failed to persist alert",
			"alert_id", alert.ID, "tool_id", alert.ToolID, "error", err)
	}

	for _, ch := range alert.Channels {
		if ch == ChannelStore {
			continue
		}
		notifier, ok := d.notifiers[ch]
		if !ok {
			d.log.Warnw("no notifier registered for channel",
				"channel", ch, "alert_id", alert.ID)
			continue
		}
		if err := notifier.Send(ctx, alert); err != nil {
			d.log.Warnw("alert delivery failed",
				"channel", ch, "alert_id", alert.ID, "error", err)
			continue
		}
		d.log.Debugw("alert delivered", "channel", ch, "alert_id", alert.ID)
	}
}

// ConsoleNotifier prints alerts to the terminal, colored by severity
type ConsoleNotifier struct{}

// NewConsoleNotifier creates a console channel
func NewConsoleNotifier() *ConsoleNotifier {
	return &ConsoleNotifier{}
}

// Channel implements Notifier
func (n *ConsoleNotifier) Channel() Channel { return ChannelConsole }

// Send implements Notifier
func (n *ConsoleNotifier) Send(ctx context.Context, alert *Alert) error {
	paint := severityColor(alert.Severity)
	fmt.Printf("%s [%s] %s\n", paint(strings.ToUpper(string(alert.Severity))), alert.ToolName, alert.Title)
	for _, line := range alert.Changes {
		fmt.Printf("    - %s\n", line)
	}
	return nil
}

func severityColor(sev Severity) func(a ...interface{}) string {
	switch sev {
	case SeverityCritical:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	case SeverityHigh:
		return color.New(color.FgRed).SprintFunc()
	case SeverityMedium:
		return color.New(color.FgYellow).SprintFunc()
	case SeverityLow:
		return color.New(color.FgCyan).SprintFunc()
	default:
		return color.New(color.FgWhite).SprintFunc()
	}
}

// EmailConfig holds SMTP delivery settings
type EmailConfig struct {
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
}

// Validate checks the email settings
func (c *EmailConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("smtp host is required")
	}
	if c.Port <= 0 {
		return fmt.Errorf("smtp port must be positive (got %d)", c.Port)
	}
	if c.From == "" {
		return fmt.Errorf("from address is required")
	}
	if len(c.To) == 0 {
		return fmt.Errorf("at least one recipient is required")
	}
	return nil
}

// EmailNotifier delivers alerts over SMTP
type EmailNotifier struct {
	cfg EmailConfig
}

// NewEmailNotifier creates an email channel
func NewEmailNotifier(cfg EmailConfig) (*EmailNotifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid email config: %w", err)
	}
	return &EmailNotifier{cfg: cfg}, nil
}

// Channel implements Notifier
func (n *EmailNotifier) Channel() Channel { return ChannelEmail }

// Send implements Notifier
func (n *EmailNotifier) Send(ctx context.Context, alert *Alert) error {
	var body bytes.Buffer
	fmt.Fprintf(&body, "From: %s\r\n", n.cfg.From)
	fmt.Fprintf(&body, "To: %s\r\n", strings.Join(n.cfg.To, ", "))
	fmt.Fprintf(&body, "Subject: [%s] %s\r\n\r\n", strings.ToUpper(string(alert.Severity)), alert.Title)
	fmt.Fprintf(&body, "%s\r\n", alert.Message)

	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}
	if err := smtp.SendMail(addr, auth, n.cfg.From, n.cfg.To, body.Bytes()); err != nil {
		return fmt.Errorf("smtp send failed: %w", err)
	}
	return nil
}

// ChatNotifier posts alerts to a chat webhook (Slack-compatible payload)
type ChatNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewChatNotifier creates a chat channel
func NewChatNotifier(webhookURL string) (*ChatNotifier, error) {
	if webhookURL == "" {
		return nil, fmt.Errorf("chat webhook url is required")
	}
	return &ChatNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// Channel implements Notifier
func (n *ChatNotifier) Channel() Channel { return ChannelChat }

// Send implements Notifier
func (n *ChatNotifier) Send(ctx context.Context, alert *Alert) error {
	text := fmt.Sprintf("*[%s]* %s\n%s", strings.ToUpper(string(alert.Severity)), alert.Title, alert.Message)
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("failed to marshal chat payload: %w", err)
	}
	return postJSON(ctx, n.client, n.webhookURL, payload)
}

// WebhookNotifier POSTs the full alert as JSON to one or more endpoints
type WebhookNotifier struct {
	urls   []string
	client *http.Client
}

// NewWebhookNotifier creates a generic webhook channel
func NewWebhookNotifier(urls []string) (*WebhookNotifier, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("at least one webhook url is required")
	}
	return &WebhookNotifier{
		urls:   urls,
		client: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// Channel implements Notifier
func (n *WebhookNotifier) Channel() Channel { return ChannelWebhook }

// Send implements Notifier. Endpoints fail independently; the error
// reports how many deliveries failed.
func (n *WebhookNotifier) Send(ctx context.Context, alert *Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	failed := 0
	for _, url := range n.urls {
		if err := postJSON(ctx, n.client, url, payload); err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d webhook deliveries failed", failed, len(n.urls))
	}
	return nil
}

func postJSON(ctx context.Context, client *http.Client, url string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("post to %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("post to %s returned status %d", url, resp.StatusCode)
	}
	return nil
}
