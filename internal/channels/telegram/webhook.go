package telegram

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/mymmrac/telego"

	"github.com/nextlevelbuilder/shopclaw/internal/channels"
)

const (
	defaultWebhookListen = "0.0.0.0:8443"
	defaultWebhookPath   = "/telegram/webhook"

	// secretTokenHeader carries the secret configured via setWebhook;
	// Telegram echoes it on every delivery.
	secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"
)

type webhookServer struct {
	srv  *http.Server
	done chan struct{}
}

func (w *webhookServer) shutdown(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := w.srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("webhook server shutdown failed", "error", err)
	}
	<-w.done
}

// startWebhook serves Telegram webhook deliveries. Each request is
// authenticated against the shared secret, rate limited per source and
// decoded into the same update path long polling uses.
func (c *Channel) startWebhook(ctx context.Context) error {
	listen := c.config.WebhookListen
	if listen == "" {
		listen = defaultWebhookListen
	}
	path := c.config.WebhookPath
	if path == "" {
		path = defaultWebhookPath
	}

	limiter := channels.NewWebhookRateLimiter(c.config.WebhookMaxPerMinute, time.Minute)
	secret := c.config.WebhookSecret

	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if secret != "" {
			got := r.Header.Get(secretTokenHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				slog.Warn("webhook request with bad secret", "remote", r.RemoteAddr)
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
		}
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !limiter.Allow(host) {
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}

		var update telego.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			slog.Warn("webhook payload decode failed", "error", err)
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		// Respond before processing; Telegram retries slow deliveries and
		// the gateway dedups those replays anyway. Processing runs on the
		// channel's lifecycle context, not the request's, which ends as
		// soon as the response is written.
		w.WriteHeader(http.StatusOK)
		c.handleUpdate(ctx, update)
	})

	c.webhook = &webhookServer{
		srv:  &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 10 * time.Second},
		done: make(chan struct{}),
	}

	slog.Info("starting telegram bot (webhook mode)", "listen", listen, "path", path)
	go func() {
		defer close(c.webhook.done)
		if err := c.webhook.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("webhook server failed", "error", err)
		}
	}()

	c.SetRunning(true)
	return nil
}
