package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const slackPostMessageURL = "https://slack.com/api/chat.postMessage"

// SlackNotifier posts operational warnings to Slack, through an incoming
// webhook or, when a bot token and channel are set, chat.postMessage
type SlackNotifier struct {
	webhookURL string
	botToken   string
	channelID  string
	apiURL     string
	source     string
	client     *http.Client
	logger     *zap.Logger
}

// NewSlackNotifier creates a notifier. source names this instance in messages.
func NewSlackNotifier(webhookURL, botToken, channelID, source string, logger *zap.Logger) *SlackNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlackNotifier{
		webhookURL: webhookURL,
		botToken:   botToken,
		channelID:  channelID,
		apiURL:     slackPostMessageURL,
		source:     source,
		client:     &http.Client{Timeout: 10 * time.Second},
		logger:     logger.Named("slack"),
	}
}

// IsConfigured checks if Slack notifications are configured
func (n *SlackNotifier) IsConfigured() bool {
	return n.webhookURL != "" || n.hasBotToken()
}

func (n *SlackNotifier) hasBotToken() bool {
	return n.botToken != "" && n.channelID != ""
}

// Warn posts text as a warning. It is a no-op when Slack is not configured.
func (n *SlackNotifier) Warn(ctx context.Context, text string) error {
	if !n.IsConfigured() {
		return nil
	}
	msg := n.buildWarning(text)
	if n.hasBotToken() {
		msg.Channel = n.channelID
		return n.postMessage(ctx, msg)
	}
	return n.postWebhook(ctx, msg)
}

func (n *SlackNotifier) buildWarning(text string) Message {
	title := ":warning: Feedback dataset warning"
	if n.source != "" {
		title += " (" + n.source + ")"
	}
	return Message{
		Text: title + ": " + text,
		Blocks: []Block{
			{Type: "header", Text: &TextObject{Type: "plain_text", Text: title}},
			{Type: "section", Text: &TextObject{Type: "mrkdwn", Text: truncateForSlack(text, 2900)}},
			{Type: "context", Elements: []TextObject{{Type: "mrkdwn", Text: time.Now().UTC().Format(time.RFC3339)}}},
		},
	}
}

func (n *SlackNotifier) postWebhook(ctx context.Context, msg Message) error {
	jsonData, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal Slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send to Slack: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Slack webhook returned status %d: %s", resp.StatusCode, string(body))
	}

	// Incoming webhooks typically just return "ok"
	if strings.TrimSpace(string(body)) != "ok" {
		n.logger.Debug("Unexpected Slack webhook response", zap.String("body", string(body)))
	}
	return nil
}

// Reference: https://api.slack.com/methods/chat.postMessage
func (n *SlackNotifier) postMessage(ctx context.Context, msg Message) error {
	jsonData, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal Slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+n.botToken)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send to Slack: %w", err)
	}
	defer resp.Body.Close()

	var slackResp response
	if err := json.NewDecoder(resp.Body).Decode(&slackResp); err != nil {
		return fmt.Errorf("failed to parse Slack response: %w", err)
	}
	if !slackResp.OK {
		return fmt.Errorf("Slack error: %s", slackResp.Error)
	}

	n.logger.Debug("Message sent to Slack", zap.String("ts", slackResp.TS))
	return nil
}

func truncateForSlack(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	return text[:maxLen] + "\n... (truncated)"
}
