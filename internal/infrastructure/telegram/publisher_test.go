package telegram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ScoutRadar/internal/domain"
	"ScoutRadar/internal/ports"
)

func testPublisher(server *httptest.Server, unsafe func(string) bool) *Publisher {
	p := NewPublisher("token", "chat42", unsafe)
	p.apiBase = server.URL
	p.client = server.Client()
	p.sleep = func(time.Duration) {}
	return p
}

func finding() domain.Finding {
	return domain.Finding{
		Repo:   domain.Repo{FullName: "user/zapret-tool", URL: "https://github.com/user/zapret-tool"},
		Source: "DPI Bypass",
		Report: "DPI bypass for RU",
	}
}

func TestPublishSuccess(t *testing.T) {
	t.Parallel()

	var gotForm map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/bottoken/sendMessage") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotForm = map[string]string{
			"chat_id":    r.PostForm.Get("chat_id"),
			"parse_mode": r.PostForm.Get("parse_mode"),
			"text":       r.PostForm.Get("text"),
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	if err := testPublisher(server, nil).Publish(context.Background(), finding()); err != nil {
		t.Fatalf("Publish error: %v", err)
	}

	if gotForm["chat_id"] != "chat42" {
		t.Fatalf("unexpected chat_id: %s", gotForm["chat_id"])
	}
	if gotForm["parse_mode"] != "HTML" {
		t.Fatalf("unexpected parse_mode: %s", gotForm["parse_mode"])
	}
	if !strings.Contains(gotForm["text"], "GITHUB RADAR: DPI Bypass") {
		t.Fatalf("unexpected text: %s", gotForm["text"])
	}
	if !strings.Contains(gotForm["text"], "user/zapret-tool") {
		t.Fatalf("expected repo link in text: %s", gotForm["text"])
	}
}

func TestPublishRetriesTransientThenSucceeds(t *testing.T) {
	t.Parallel()

	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	if err := testPublisher(server, nil).Publish(context.Background(), finding()); err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestPublishTransientExhaustsRetries(t *testing.T) {
	t.Parallel()

	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	err := testPublisher(server, nil).Publish(context.Background(), finding())
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ports.ErrPermanentDelivery) {
		t.Fatal("transient exhaustion must not look permanent")
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestPublishPermanentErrorNoRetry(t *testing.T) {
	t.Parallel()

	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	err := testPublisher(server, nil).Publish(context.Background(), finding())
	if !errors.Is(err, ports.ErrPermanentDelivery) {
		t.Fatalf("expected ports.ErrPermanentDelivery, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected exactly 1 attempt, got %d", attempts)
	}
}

func TestPublishContentGateAbortsBeforeSend(t *testing.T) {
	t.Parallel()

	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
	}))
	defer server.Close()

	unsafe := func(string) bool { return true }
	err := testPublisher(server, unsafe).Publish(context.Background(), finding())
	if !errors.Is(err, ports.ErrUnsafeContent) {
		t.Fatalf("expected ports.ErrUnsafeContent, got %v", err)
	}
	if attempts != 0 {
		t.Fatalf("gate must abort before any send, got %d attempts", attempts)
	}
}

func TestRenderMessageEscapesHTML(t *testing.T) {
	t.Parallel()

	f := finding()
	f.Source = "a <b> & c"
	text := renderMessage(f)

	if strings.Contains(text, "<b> & c") {
		t.Fatalf("source must be escaped: %s", text)
	}
	if !strings.Contains(text, "a &lt;b&gt; &amp; c") {
		t.Fatalf("expected escaped source: %s", text)
	}
}
