package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"maps"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/tphakala/preloadwatch/internal/conf"
	"github.com/tphakala/preloadwatch/internal/errors"
)

const (
	defaultWebhookTimeout = 5 * time.Second

	// maxErrorBodySize limits how much of an error response is kept
	maxErrorBodySize = 1024
)

// WebhookPayload is the JSON document posted for each report.
type WebhookPayload struct {
	UnitOfWork string          `json:"unit_of_work"`
	Source     string          `json:"source,omitzero"`
	Timestamp  string          `json:"timestamp"`
	Summary    string          `json:"summary"`
	Notices    []NoticePayload `json:"notices"`
}

// NoticePayload is one notice inside a WebhookPayload.
type NoticePayload struct {
	Kind         string   `json:"kind"`
	Title        string   `json:"title"`
	Class        string   `json:"class"`
	Associations []string `json:"associations"`
	CallSite     string   `json:"call_site,omitzero"`
}

// WebhookNotifier posts reports as JSON to one endpoint, optionally rate
// limited.
type WebhookNotifier struct {
	url     string
	headers map[string]string
	timeout time.Duration
	client  *http.Client
	limiter *rate.Limiter
}

// NewWebhookNotifier builds a notifier from settings. A nil client uses a
// fresh http.Client.
func NewWebhookNotifier(s *conf.WebhookSettings, client *http.Client) (*WebhookNotifier, error) {
	if s.URL == "" {
		return nil, errors.New(errors.NewStd("webhook URL is required")).
			Category(errors.CategoryConfiguration).
			Build()
	}
	if client == nil {
		client = &http.Client{}
	}
	w := &WebhookNotifier{
		url:     s.URL,
		headers: maps.Clone(s.Headers),
		timeout: s.Timeout,
		client:  client,
	}
	if w.timeout <= 0 {
		w.timeout = defaultWebhookTimeout
	}
	if s.RateLimit > 0 {
		w.limiter = rate.NewLimiter(rate.Limit(s.RateLimit), 1)
	}
	return w, nil
}

func (w *WebhookNotifier) Name() string { return "webhook" }

// NewWebhookPayload converts a report into its wire form.
func NewWebhookPayload(r Report) WebhookPayload {
	p := WebhookPayload{
		UnitOfWork: r.UnitOfWork,
		Source:     r.Source,
		Timestamp:  r.Time.UTC().Format(time.RFC3339),
		Summary:    r.Summary(),
		Notices:    make([]NoticePayload, 0, len(r.Notices)),
	}
	for _, n := range r.Notices {
		p.Notices = append(p.Notices, NoticePayload{
			Kind:         n.Kind.String(),
			Title:        n.Title(),
			Class:        n.Class,
			Associations: n.Associations,
			CallSite:     n.CallSite,
		})
	}
	return p
}

func (w *WebhookNotifier) Notify(ctx context.Context, r Report) error {
	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			return errors.New(err).
				Category(errors.CategoryNotification).
				Context("notifier", "webhook").
				Context("operation", "rate_limiter_wait").
				Build()
		}
	}

	body, err := json.Marshal(NewWebhookPayload(r))
	if err != nil {
		return errors.New(err).Category(errors.CategoryNotification).Build()
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return errors.New(err).Category(errors.CategoryConfiguration).Build()
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "preloadwatch")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryNetwork).
			Context("notifier", "webhook").
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return errors.Newf("webhook returned status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet)).
			Category(errors.CategoryNotification).
			Context("notifier", "webhook").
			Context("status", resp.StatusCode).
			Build()
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
