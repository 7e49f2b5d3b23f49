package notify

import (
	"context"
	"fmt"
	"log"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// PushResult is the provider's answer for one token. Invalid means the token will never work again.
type PushResult struct {
	Token     string
	MessageID string
	Err       error
	Invalid   bool
}

// Pusher sends one message to a set of device tokens of the same user.
type Pusher interface {
	SendMulticast(ctx context.Context, tokens []string, msg Message) ([]PushResult, error)
}

// FCM accepts at most 500 tokens per multicast request.
const fcmMaxTokens = 500

type FCMPusher struct {
	client *messaging.Client
}

// NewFCMPusher initialises the Firebase Admin SDK from a service-account file.
func NewFCMPusher(ctx context.Context, credentialsFile string) (*FCMPusher, error) {
	if credentialsFile == "" {
		return nil, fmt.Errorf("firebase credentials file is not configured")
	}
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("firebase.NewApp: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase messaging client: %w", err)
	}
	log.Printf("[INFO] notify: firebase messaging initialised")
	return &FCMPusher{client: client}, nil
}

func (p *FCMPusher) SendMulticast(ctx context.Context, tokens []string, msg Message) ([]PushResult, error) {
	out := make([]PushResult, 0, len(tokens))
	for start := 0; start < len(tokens); start += fcmMaxTokens {
		end := min(start+fcmMaxTokens, len(tokens))
		chunk := tokens[start:end]

		br, err := p.client.SendEachForMulticast(ctx, buildMulticast(chunk, msg))
		if err != nil {
			return nil, fmt.Errorf("fcm multicast: %w", err)
		}
		for i, r := range br.Responses {
			pr := PushResult{Token: chunk[i], MessageID: r.MessageID, Err: r.Error}
			if r.Error != nil {
				pr.Invalid = invalidToken(r.Error)
			}
			out = append(out, pr)
		}
	}
	return out, nil
}

// invalidToken reports whether FCM rejected the token itself. INVALID_ARGUMENT
// is left out: it is also returned for a malformed or oversized payload.
func invalidToken(err error) bool {
	return messaging.IsUnregistered(err)
}

func buildMulticast(tokens []string, msg Message) *messaging.MulticastMessage {
	m := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: msg.Data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ClickAction: msg.ClickAction,
			},
		},
	}
	// webpush links must be absolute https URLs
	if strings.HasPrefix(msg.ClickAction, "https://") {
		m.Webpush = &messaging.WebpushConfig{
			FCMOptions: &messaging.WebpushFCMOptions{Link: msg.ClickAction},
		}
	}
	return m
}
