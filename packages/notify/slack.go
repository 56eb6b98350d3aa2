package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SlackNotifier sends notifications to Slack via webhook
type SlackNotifier struct {
	webhookURL string
	channel    string
	username   string
	iconEmoji  string
	client     *http.Client
}

// SlackOption is a functional option for SlackNotifier
type SlackOption func(*SlackNotifier)

// WithSlackChannel sets the Slack channel
func WithSlackChannel(channel string) SlackOption {
	return func(s *SlackNotifier) {
		s.channel = channel
	}
}

// WithSlackUsername sets the Slack bot username
func WithSlackUsername(username string) SlackOption {
	return func(s *SlackNotifier) {
		s.username = username
	}
}

// WithSlackIconEmoji sets the Slack bot icon emoji
func WithSlackIconEmoji(emoji string) SlackOption {
	return func(s *SlackNotifier) {
		s.iconEmoji = emoji
	}
}

// WithSlackHTTPClient replaces the client used to post the webhook
func WithSlackHTTPClient(c *http.Client) SlackOption {
	return func(s *SlackNotifier) {
		s.client = c
	}
}

// NewSlackNotifier creates a new Slack notifier
func NewSlackNotifier(webhookURL string, opts ...SlackOption) *SlackNotifier {
	s := &SlackNotifier{
		webhookURL: webhookURL,
		username:   "mirrorperf",
		iconEmoji:  ":chart_with_upwards_trend:",
		client:     &http.Client{Timeout: 10 * time.Second},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the name of the notifier
func (s *SlackNotifier) Name() string {
	return "slack"
}

type slackMessage struct {
	Channel     string            `json:"channel,omitempty"`
	Username    string            `json:"username,omitempty"`
	IconEmoji   string            `json:"icon_emoji,omitempty"`
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Text   string       `json:"text,omitempty"`
	Fields []slackField `json:"fields,omitempty"`
	Footer string       `json:"footer,omitempty"`
	TS     int64        `json:"ts,omitempty"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// Notify sends a notification to Slack
func (s *SlackNotifier) Notify(summary *RunSummary) error {
	color := "good"
	emoji := ":white_check_mark:"
	if !summary.Passed {
		color = "danger"
		emoji = ":x:"
	} else if summary.IsRecovery {
		emoji = ":tada:"
	}

	fields := []slackField{
		{Title: "Scenarios", Value: strings.Join(summary.Scenarios, ", "), Short: false},
		{Title: "Iterations", Value: fmt.Sprintf("%d", summary.Iterations), Short: true},
		{Title: "Errors", Value: fmt.Sprintf("%d", summary.Errors), Short: true},
		{Title: "Checks", Value: formatPercent(summary.CheckRate), Short: true},
		{Title: "p95", Value: summary.P95.Round(time.Millisecond).String(), Short: true},
		{Title: "Rate", Value: fmt.Sprintf("%.1f/s", summary.RPS), Short: true},
		{Title: "Duration", Value: summary.Duration.Round(time.Second).String(), Short: true},
	}

	if summary.Target != "" {
		fields = append(fields, slackField{Title: "Target", Value: summary.Target, Short: false})
	}

	var text strings.Builder
	if len(summary.FailedThresholds) > 0 {
		text.WriteString("*Failed thresholds:*\n")
		for _, ft := range summary.FailedThresholds {
			fmt.Fprintf(&text, "• `%s` expected %s, got %s\n", ft.Name, ft.Expected, ft.Actual)
		}
	}
	if len(summary.FailedChecks) > 0 {
		text.WriteString("*Failed checks:*\n")
		for _, fc := range summary.FailedChecks {
			fmt.Fprintf(&text, "• `%s` (%s): %d of %d\n", fc.Name, fc.Scenario, fc.Failed, fc.Total)
		}
	}

	attachment := slackAttachment{
		Color:  color,
		Title:  fmt.Sprintf("%s %s", emoji, headline(summary)),
		Text:   text.String(),
		Fields: fields,
		Footer: "mirrorperf run " + summary.RunID,
		TS:     time.Now().Unix(),
	}

	msg := slackMessage{
		Channel:     s.channel,
		Username:    s.username,
		IconEmoji:   s.iconEmoji,
		Attachments: []slackAttachment{attachment},
	}

	return s.send(msg)
}

func (s *SlackNotifier) send(msg slackMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal Slack message: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, s.webhookURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send Slack notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("slack API returned status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}
