// Package notify delivers web-push alerts for new missions.
package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"leitstelle/api/internal/config"
	"leitstelle/api/internal/model"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Sender sends one web-push message.
type Sender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender sends through the webpush library.
type WebPushSender struct{}

func (WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Subscriptions is the slice of the store the pool needs.
type Subscriptions interface {
	ListPushSubscriptions(ctx context.Context, userID uuid.UUID) ([]model.PushSubscription, error)
	DeletePushSubscription(ctx context.Context, userID uuid.UUID, endpoint string) error
}

// MissionAlert announces a new mission to a player.
type MissionAlert struct {
	UserID    uuid.UUID `json:"-"`
	MissionID uuid.UUID `json:"mission_id"`
	Title     string    `json:"title"`
	Address   string    `json:"address"`
	Payout    int64     `json:"payout"`
}

// Pool is a fixed set of workers draining a bounded job queue.
type Pool struct {
	size    int
	jobs    chan MissionAlert
	subs    Subscriptions
	options *webpush.Options
	sender  Sender
	enabled bool
	log     zerolog.Logger
	wg      sync.WaitGroup
}

// NewPool builds a pool. Without VAPID keys it is created disabled and Enqueue discards alerts.
func NewPool(cfg config.PushConfig, subs Subscriptions, log zerolog.Logger) *Pool {
	size := cfg.Workers
	if size < 1 {
		size = 1
	}
	return &Pool{
		size: size,
		jobs: make(chan MissionAlert, size*16),
		subs: subs,
		options: &webpush.Options{
			VAPIDPublicKey:  cfg.PublicKey,
			VAPIDPrivateKey: cfg.PrivateKey,
			Subscriber:      cfg.Subject,
			TTL:             cfg.TTL,
		},
		sender:  WebPushSender{},
		enabled: cfg.Enabled(),
		log:     log.With().Str("component", "notify").Logger(),
	}
}

// WithSender replaces the transport, used by tests.
func (p *Pool) WithSender(s Sender) *Pool {
	p.sender = s
	return p
}

// Enabled reports whether alerts are delivered.
func (p *Pool) Enabled() bool {
	return p.enabled
}

// Start launches the workers; they stop when ctx is done.
func (p *Pool) Start(ctx context.Context) {
	if !p.enabled {
		p.log.Info().Msg("push disabled, no VAPID keys configured")
		return
	}
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Wait blocks until all workers returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Enqueue schedules an alert without blocking. A full queue drops the alert.
func (p *Pool) Enqueue(alert MissionAlert) bool {
	if !p.enabled {
		return false
	}
	select {
	case p.jobs <- alert:
		return true
	default:
		p.log.Warn().Str("user_id", alert.UserID.String()).Str("mission_id", alert.MissionID.String()).Msg("push queue full, alert dropped")
		return false
	}
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case alert := <-p.jobs:
			p.deliver(ctx, alert)
		case <-ctx.Done():
			p.log.Debug().Int("worker", id).Msg("push worker stopped")
			return
		}
	}
}

func (p *Pool) deliver(ctx context.Context, alert MissionAlert) {
	subs, err := p.subs.ListPushSubscriptions(ctx, alert.UserID)
	if err != nil {
		p.log.Error().Err(err).Str("user_id", alert.UserID.String()).Msg("list push subscriptions")
		return
	}
	if len(subs) == 0 {
		return
	}

	payload, err := json.Marshal(alert)
	if err != nil {
		p.log.Error().Err(err).Msg("encode alert")
		return
	}
	for _, sub := range subs {
		p.send(ctx, sub, payload)
	}
}

func (p *Pool) send(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := p.sender.Send(payload, wpSub, p.options)
	if err != nil {
		pushSentTotal.WithLabelValues("error").Inc()
		p.log.Warn().Err(err).Str("endpoint", sub.Endpoint).Msg("push send failed")
		return
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotFound, http.StatusGone:
		pushSentTotal.WithLabelValues("expired").Inc()
		p.log.Info().Str("endpoint", sub.Endpoint).Int("status", resp.StatusCode).Msg("push subscription expired, deleting")
		if err := p.subs.DeletePushSubscription(ctx, sub.UserID, sub.Endpoint); err != nil {
			p.log.Error().Err(err).Str("endpoint", sub.Endpoint).Msg("delete expired subscription")
		}
	default:
		if resp.StatusCode >= 300 {
			pushSentTotal.WithLabelValues("rejected").Inc()
			p.log.Warn().Str("endpoint", sub.Endpoint).Int("status", resp.StatusCode).Msg("push rejected")
			return
		}
		pushSentTotal.WithLabelValues("ok").Inc()
	}
}
