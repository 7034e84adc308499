package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ScoutRadar/internal/domain"
	"ScoutRadar/internal/ports"
)

const maxAttempts = 3

// Publisher sends findings to a Telegram chat via bot API with bounded retry
// on transient failures. The injected gate predicate checks the final
// rendered text before every attempt as a last line of defense.
type Publisher struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
	gate     func(text string) bool
	sleep    func(time.Duration)
}

var _ ports.Publisher = (*Publisher)(nil)

// NewPublisher registers bot token and chat identifier; unsafe reports true
// when the rendered text must not be sent (nil disables the gate).
func NewPublisher(botToken, chatID string, unsafe func(string) bool) *Publisher {
	return &Publisher{
		botToken: botToken,
		chatID:   chatID,
		apiBase:  "https://api.telegram.org",
		client:   &http.Client{Timeout: 10 * time.Second},
		gate:     unsafe,
		sleep:    time.Sleep,
	}
}

// Publish renders the finding and posts it as an HTML message. Transient
// errors (429, 5xx, network) are retried with increasing backoff; permanent
// rejections return ports.ErrPermanentDelivery immediately.
func (p *Publisher) Publish(ctx context.Context, finding domain.Finding) error {
	if p.botToken == "" || p.chatID == "" || p.client == nil {
		return fmt.Errorf("telegram publisher misconfigured: %w", ports.ErrPermanentDelivery)
	}

	text := renderMessage(finding)

	backoff := time.Second
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			p.sleep(backoff)
			backoff *= 2
		}

		if p.gate != nil && p.gate(text) {
			return ports.ErrUnsafeContent
		}

		err := p.send(ctx, text)
		if err == nil {
			return nil
		}
		if errors.Is(err, ports.ErrPermanentDelivery) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("publish failed after %d attempts: %w", maxAttempts, lastErr)
}

func (p *Publisher) send(ctx context.Context, text string) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", p.apiBase, p.botToken)
	form := url.Values{}
	form.Set("chat_id", p.chatID)
	form.Set("text", text)
	form.Set("parse_mode", "HTML")
	form.Set("disable_web_page_preview", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("telegram transient error: %s", resp.Status)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram error %s: %s: %w", resp.Status, strings.TrimSpace(string(body)), ports.ErrPermanentDelivery)
	}
}

func renderMessage(finding domain.Finding) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🛡 <b>GITHUB RADAR: %s</b>\n\n", escapeHTML(finding.Source))
	if finding.Report != "" {
		b.WriteString(finding.Report)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "🔗 <a href='%s'>%s</a>", finding.Repo.URL, escapeHTML(finding.Repo.FullName))
	return b.String()
}

func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
