package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/fentro/cms-console/internal/apiclient"
	"github.com/fentro/cms-console/internal/metrics"
)

const (
	pushEventNotification = "notification"

	defaultInitialBackoff = time.Second
	defaultMaxBackoff     = 30 * time.Second
)

// ErrPushActive is returned when a second channel is opened while one is live.
var ErrPushActive = errors.New("notifications: push channel already open")

// Subscriber delivers server-pushed notifications until ctx ends.
type Subscriber interface {
	Run(ctx context.Context, deliver func(Notification)) error
}

// PushConfig configures PushClient.
type PushConfig struct {
	URL            string
	Tokens         apiclient.TokenSource
	Dialer         *websocket.Dialer
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Logger         *zap.Logger
}

// PushClient keeps one websocket to the service's push endpoint and
// reconnects with exponential backoff. Disconnects are logged, never toasted.
type PushClient struct {
	url     string
	tokens  apiclient.TokenSource
	dialer  *websocket.Dialer
	initial time.Duration
	max     time.Duration
	logger  *zap.Logger
	running atomic.Bool
}

type pushEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// NewPushClient validates cfg.
func NewPushClient(cfg PushConfig) (*PushClient, error) {
	if cfg.URL == "" {
		return nil, errors.New("notifications: push url is required")
	}
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, err
	}
	client := &PushClient{
		url:     cfg.URL,
		tokens:  cfg.Tokens,
		dialer:  cfg.Dialer,
		initial: cfg.InitialBackoff,
		max:     cfg.MaxBackoff,
		logger:  cfg.Logger,
	}
	if client.dialer == nil {
		client.dialer = websocket.DefaultDialer
	}
	if client.initial <= 0 {
		client.initial = defaultInitialBackoff
	}
	if client.max <= 0 {
		client.max = defaultMaxBackoff
	}
	if client.logger == nil {
		client.logger = zap.NewNop()
	}
	return client, nil
}

// Run holds the channel open until ctx is cancelled.
func (p *PushClient) Run(ctx context.Context, deliver func(Notification)) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrPushActive
	}
	defer p.running.Store(false)

	policy := p.newBackOff()
	for {
		connected, err := p.connectOnce(ctx, deliver)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			policy.Reset()
		}
		wait := policy.NextBackOff()
		p.logger.Debug("push channel disconnected", zap.Error(err), zap.Duration("retry_in", wait))
		metrics.PushReconnects.Inc()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// Active reports whether a channel is currently held.
func (p *PushClient) Active() bool {
	return p.running.Load()
}

func (p *PushClient) newBackOff() *backoff.ExponentialBackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = p.initial
	policy.MaxInterval = p.max
	policy.Multiplier = 2
	policy.RandomizationFactor = 0
	policy.MaxElapsedTime = 0
	policy.Reset()
	return policy
}

func (p *PushClient) connectOnce(ctx context.Context, deliver func(Notification)) (bool, error) {
	target, header := p.handshake()
	conn, response, err := p.dialer.DialContext(ctx, target, header)
	if response != nil && response.Body != nil {
		response.Body.Close()
	}
	if err != nil {
		return false, err
	}
	defer conn.Close()

	closed := make(chan struct{})
	defer close(closed)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		case <-closed:
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		var envelope pushEnvelope
		if err := json.Unmarshal(message, &envelope); err != nil {
			p.logger.Debug("push message ignored", zap.Error(err))
			continue
		}
		if envelope.Event != pushEventNotification {
			continue
		}
		var item Notification
		if err := json.Unmarshal(envelope.Data, &item); err != nil || item.ID == "" {
			p.logger.Debug("push notification ignored", zap.Error(err))
			continue
		}
		metrics.PushEvents.Inc()
		if ctx.Err() != nil {
			return true, ctx.Err()
		}
		deliver(item)
	}
}

func (p *PushClient) handshake() (string, http.Header) {
	header := http.Header{}
	target := p.url
	token := ""
	if p.tokens != nil {
		token = p.tokens.Token()
	}
	if token == "" {
		return target, header
	}
	header.Set("Authorization", "Bearer "+token)
	if parsed, err := url.Parse(p.url); err == nil {
		query := parsed.Query()
		query.Set("token", token)
		parsed.RawQuery = query.Encode()
		target = parsed.String()
	}
	return target, header
}
