package notify

import (
	"context"
	"fmt"
	"log"
	"time"
)

const (
	msgNotInitialized = "not initialized"
	msgNoActiveTokens = "no active tokens"
)

// Dispatcher fans a message out to the active device tokens of one or more users.
type Dispatcher struct {
	store      TokenStore
	pusher     Pusher
	deliveries DeliveryLog
	now        func() time.Time
}

// NewDispatcher builds a dispatcher. A nil pusher means the push provider failed to
// initialise; every send then reports "not initialized" instead of failing.
func NewDispatcher(store TokenStore, pusher Pusher, deliveries DeliveryLog) *Dispatcher {
	if deliveries == nil {
		deliveries = nopDeliveryLog{}
	}
	return &Dispatcher{store: store, pusher: pusher, deliveries: deliveries, now: time.Now}
}

func (d *Dispatcher) Initialized() bool { return d.pusher != nil }

// SendToUser sends msg to every active token of userID in one multicast. Tokens reported
// invalid are deactivated; delivered tokens get last_used_at refreshed. The returned error is
// non-nil only for infrastructure failures worth retrying.
func (d *Dispatcher) SendToUser(ctx context.Context, userID int64, msg Message) (SendResult, error) {
	res := SendResult{UserID: userID}
	if d.pusher == nil {
		res.Message = msgNotInitialized
		return res, nil
	}

	tokens, err := d.store.ActiveTokens(ctx, userID)
	if err != nil {
		return res, fmt.Errorf("load tokens for user %d: %w", userID, err)
	}
	if len(tokens) == 0 {
		res.Message = msgNoActiveTokens
		return res, nil
	}

	values := make([]string, len(tokens))
	for i, t := range tokens {
		values[i] = t.Token
	}

	results, err := d.pusher.SendMulticast(ctx, values, msg)
	if err != nil {
		return res, err
	}

	now := d.now()
	var ok, invalid []string
	deliveries := make([]Delivery, 0, len(results))
	for _, r := range results {
		dl := Delivery{UserID: userID, Token: r.Token, Title: msg.Title, Body: msg.Body, SentAt: now}
		switch {
		case r.Err == nil:
			ok = append(ok, r.Token)
			dl.Success = true
		case r.Invalid:
			invalid = append(invalid, r.Token)
			dl.Error, dl.Invalid = r.Err.Error(), true
		default:
			dl.Error = r.Err.Error()
		}
		deliveries = append(deliveries, dl)
	}

	if err := d.store.DeactivateTokens(ctx, invalid); err != nil {
		log.Printf("[WARN] notify: deactivate %d invalid tokens for user %d: %v", len(invalid), userID, err)
	}
	if err := d.store.TouchTokens(ctx, ok, now); err != nil {
		log.Printf("[WARN] notify: update last_used_at for user %d: %v", userID, err)
	}
	if err := d.deliveries.Record(ctx, deliveries); err != nil {
		log.Printf("[WARN] notify: delivery log: %v", err)
	}

	res.SuccessCount = len(ok)
	res.FailureCount = len(results) - len(ok)
	res.InvalidTokens = len(invalid)
	res.Success = len(ok) > 0
	if !res.Success {
		res.Message = "all deliveries failed"
	}
	return res, nil
}

// SendToUsers sends to each user in turn. A failure for one user is recorded in its result
// and does not stop the others.
func (d *Dispatcher) SendToUsers(ctx context.Context, userIDs []int64, msg Message) BatchResult {
	out := BatchResult{Total: len(userIDs), Results: make([]SendResult, 0, len(userIDs))}
	for _, id := range userIDs {
		r, err := d.SendToUser(ctx, id, msg)
		if err != nil {
			log.Printf("[ERROR] notify: send to user %d: %v", id, err)
			r.Success = false
			r.Error = err.Error()
			r.retryable = true
		}
		if r.Success {
			out.Succeeded++
		} else {
			out.Failed++
		}
		out.Results = append(out.Results, r)
	}
	out.Success = out.Succeeded > 0
	return out
}

// ReapStale deactivates tokens not used within maxAge.
func (d *Dispatcher) ReapStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	n, err := d.store.DeactivateStale(ctx, d.now().Add(-maxAge))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Printf("[INFO] notify: deactivated %d stale tokens", n)
	}
	return n, nil
}
