package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"taskboard/internal/config"
	"taskboard/internal/domain"
)

const (
	defaultWebhookTimeout = 5 * time.Second
	defaultWebhookQueue   = 256
)

// WebhookDispatcher posts every activity entry to the configured hooks. It
// implements engine.Notifier; Notify never blocks and drops entries when the
// queue is full.
type WebhookDispatcher struct {
	hooks  []config.WebhookConfig
	client *http.Client
	logger log.FieldLogger
	queue  chan domain.ActivityLogEntry

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewWebhookDispatcher returns nil when no hook is active.
func NewWebhookDispatcher(hooks []config.WebhookConfig, logger log.FieldLogger) *WebhookDispatcher {
	var active []config.WebhookConfig
	for _, h := range hooks {
		if h.Active() {
			active = append(active, h)
		}
	}
	if len(active) == 0 {
		return nil
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &WebhookDispatcher{
		hooks:  active,
		client: &http.Client{Timeout: defaultWebhookTimeout},
		logger: logger.WithField("component", "webhooks"),
		queue:  make(chan domain.ActivityLogEntry, defaultWebhookQueue),
	}
}

// Start launches the delivery loop. It returns when ctx is done or Close is
// called and the queue has drained.
func (d *WebhookDispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-d.queue:
				if !ok {
					return
				}
				d.dispatch(ctx, entry)
			}
		}
	}()
}

func (d *WebhookDispatcher) Notify(entry domain.ActivityLogEntry) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	select {
	case d.queue <- entry:
	default:
		d.logger.WithField("action", entry.Action).Warn("webhook queue full, entry dropped")
	}
}

// Close stops accepting entries and waits for queued deliveries.
func (d *WebhookDispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *WebhookDispatcher) dispatch(ctx context.Context, entry domain.ActivityLogEntry) {
	for _, hook := range d.hooks {
		if !newEventFilter(hook.Events).match(entry.Action) {
			continue
		}
		if err := d.post(ctx, hook, entry); err != nil {
			d.logger.WithError(err).WithField("url", hook.URL).Warn("webhook delivery failed")
		}
	}
}

type webhookPayload struct {
	Event     string `json:"event"`
	UserName  string `json:"user_name"`
	Details   string `json:"details"`
	Timestamp string `json:"timestamp"`
}

func (d *WebhookDispatcher) post(ctx context.Context, hook config.WebhookConfig, entry domain.ActivityLogEntry) error {
	data, err := json.Marshal(webhookPayload{
		Event:     entry.Action,
		UserName:  entry.UserName,
		Details:   entry.Details,
		Timestamp: entry.Timestamp,
	})
	if err != nil {
		return err
	}
	timeout := defaultWebhookTimeout
	if hook.Timeout > 0 {
		timeout = hook.Timeout
	}
	client := d.client
	if timeout != d.client.Timeout {
		client = &http.Client{Timeout: timeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Taskboard-Event", entry.Action)
	req.Header.Set("X-Taskboard-Delivery", uuid.NewString())
	if strings.TrimSpace(hook.Secret) != "" {
		req.Header.Set("X-Taskboard-Secret", hook.Secret)
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

type eventFilter struct {
	all bool
	set map[string]struct{}
}

func newEventFilter(events []string) eventFilter {
	set := make(map[string]struct{}, len(events))
	for _, evt := range events {
		if key := strings.TrimSpace(evt); key != "" {
			set[key] = struct{}{}
		}
	}
	if len(set) == 0 {
		return eventFilter{all: true}
	}
	return eventFilter{set: set}
}

func (f eventFilter) match(evt string) bool {
	if f.all {
		return true
	}
	_, ok := f.set[evt]
	return ok
}
