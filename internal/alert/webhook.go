package alert

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// webhookPayload is accepted by both Discord ("content") and Slack ("text") incoming webhooks.
type webhookPayload struct {
	Content string `json:"content"`
	Text    string `json:"text"`
}

// WebhookNotifier buffers messages and posts them as one report per interval,
// so a failing loop does not flood the channel.
type WebhookNotifier struct {
	url            string
	client         *resty.Client
	logger         *zap.Logger
	bufferInterval time.Duration

	mu     sync.Mutex
	buffer []string
	closed bool

	done chan struct{}
	wg   sync.WaitGroup
}

// NewWebhookNotifier starts a notifier posting to url every bufferInterval.
func NewWebhookNotifier(url string, bufferInterval time.Duration, logger *zap.Logger) (*WebhookNotifier, error) {
	if url == "" {
		return nil, errors.New("webhook URL must be configured")
	}
	if bufferInterval <= 0 {
		bufferInterval = time.Minute
	}
	n := &WebhookNotifier{
		url:            url,
		client:         resty.New().SetTimeout(10 * time.Second),
		logger:         logger,
		bufferInterval: bufferInterval,
		done:           make(chan struct{}),
	}
	n.wg.Add(1)
	go n.run()
	return n, nil
}

// Send queues message for the next report.
func (n *WebhookNotifier) Send(message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return errors.New("notifier is closed")
	}
	n.buffer = append(n.buffer, message)
	return nil
}

// Close stops the loop and posts anything still buffered.
func (n *WebhookNotifier) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	n.mu.Unlock()

	close(n.done)
	n.wg.Wait()
	return nil
}

func (n *WebhookNotifier) run() {
	defer n.wg.Done()
	ticker := time.NewTicker(n.bufferInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n.flush()
		case <-n.done:
			n.flush()
			return
		}
	}
}

func (n *WebhookNotifier) flush() {
	n.mu.Lock()
	if len(n.buffer) == 0 {
		n.mu.Unlock()
		return
	}
	messages := n.buffer
	n.buffer = nil
	n.mu.Unlock()

	var sb strings.Builder
	fmt.Fprintf(&sb, "--- **Error Report (%d)** ---\n", len(messages))
	for _, m := range messages {
		sb.WriteString("- ")
		sb.WriteString(m)
		sb.WriteString("\n")
	}
	report := sb.String()

	resp, err := n.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(webhookPayload{Content: report, Text: report}).
		Post(n.url)
	if err != nil {
		n.logger.Error("Failed to post alert webhook", zap.Error(err), zap.Int("messages", len(messages)))
		return
	}
	if resp.IsError() {
		n.logger.Error("Alert webhook rejected report", zap.Int("status", resp.StatusCode()), zap.String("body", resp.String()))
	}
}
