package notify

import (
	"context"
	"fmt"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/certificate"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
)

// APNsConfig holds push gateway credentials. Token auth (.p8 key) is
// preferred; a .p12 certificate is used when no key is given.
type APNsConfig struct {
	KeyPath         string
	KeyID           string
	TeamID          string
	CertificatePath string
	CertificatePass string
	Topic           string
	Production      bool
}

// Enabled reports whether any credentials are configured
func (c APNsConfig) Enabled() bool {
	return c.KeyPath != "" || c.CertificatePath != ""
}

// APNsPusher sends Push messages through Apple Push Notification service
type APNsPusher struct {
	client *apns2.Client
	topic  string
}

// NewAPNsPusher creates a pusher from configured credentials
func NewAPNsPusher(cfg APNsConfig) (*APNsPusher, error) {
	var client *apns2.Client
	switch {
	case cfg.KeyPath != "":
		authKey, err := token.AuthKeyFromFile(cfg.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load APNs auth key: %w", err)
		}
		client = apns2.NewTokenClient(&token.Token{
			AuthKey: authKey,
			KeyID:   cfg.KeyID,
			TeamID:  cfg.TeamID,
		})
	case cfg.CertificatePath != "":
		cert, err := certificate.FromP12File(cfg.CertificatePath, cfg.CertificatePass)
		if err != nil {
			return nil, fmt.Errorf("failed to load APNs certificate: %w", err)
		}
		client = apns2.NewClient(cert)
	default:
		return nil, &ConfigurationError{Channel: ChannelPush, Reason: "no APNs credentials configured"}
	}

	if cfg.Production {
		client = client.Production()
	} else {
		client = client.Development()
	}
	return &APNsPusher{client: client, topic: cfg.Topic}, nil
}

// Send delivers one push notification. No delivery receipt is tracked.
func (p *APNsPusher) Send(ctx context.Context, push Push) error {
	notification := &apns2.Notification{
		DeviceToken: push.DeviceToken,
		Topic:       p.topic,
		Payload:     payload.NewPayload().AlertTitle(push.Title).AlertBody(push.Body).Sound("default"),
	}

	res, err := p.client.PushWithContext(ctx, notification)
	if err != nil {
		return transient(ChannelPush, "push to %s: %w", shortToken(push.DeviceToken), err)
	}
	if !res.Sent() {
		return transient(ChannelPush, "push to %s rejected: %d %s", shortToken(push.DeviceToken), res.StatusCode, res.Reason)
	}
	return nil
}

// DisabledPusher stands in when no push credentials are configured
type DisabledPusher struct{}

// Send always reports the missing configuration
func (DisabledPusher) Send(context.Context, Push) error {
	return &ConfigurationError{Channel: ChannelPush, Reason: "no APNs credentials configured"}
}

func shortToken(t string) string {
	if len(t) > 20 {
		return t[:20] + "..."
	}
	return t
}
