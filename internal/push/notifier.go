// Package push sends Web Push notifications to members who are not
// connected when a message lands.
package push

import (
	"context"
	"encoding/json"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/Rajatk8400/gochat/internal/logger"
	"github.com/Rajatk8400/gochat/internal/store"
)

// Notifier pushes to every subscription a user registered. A nil Notifier
// or one built without keys is a no-op.
type Notifier struct {
	subs  store.SubscriptionStore
	vapid *webpush.Options
}

// NewNotifier wires the subscription store to the Web Push sender.
// subscriber is the contact mailto/URL required by the VAPID spec.
func NewNotifier(subs store.SubscriptionStore, keys *VAPIDKeys, subscriber string) *Notifier {
	if keys == nil || keys.PublicKey == "" || keys.PrivateKey == "" {
		return &Notifier{subs: subs}
	}
	return &Notifier{
		subs: subs,
		vapid: &webpush.Options{
			Subscriber:      subscriber,
			VAPIDPublicKey:  keys.PublicKey,
			VAPIDPrivateKey: keys.PrivateKey,
			TTL:             60,
		},
	}
}

// Notify sends {title, body, data} to all of userID's endpoints. Dead
// endpoints (410/404) are pruned from the store.
func (n *Notifier) Notify(ctx context.Context, userID, title, body string, data map[string]string) {
	if n == nil || n.vapid == nil {
		return
	}
	subs, err := n.subs.ListByUser(ctx, userID)
	if err != nil {
		logger.Errorf("push list subscriptions user=%s: %v", userID, err)
		return
	}
	if len(subs) == 0 {
		return
	}
	payload, err := json.Marshal(map[string]any{"title": title, "body": body, "data": data})
	if err != nil {
		logger.Errorf("push marshal payload: %v", err)
		return
	}
	for i := range subs {
		sub := &subs[i]
		wpSub := &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys:     webpush.Keys{P256dh: sub.P256dh, Auth: sub.Auth},
		}
		resp, err := webpush.SendNotificationWithContext(ctx, payload, wpSub, n.vapid)
		if err != nil {
			logger.Errorf("push send user=%s: %v", userID, err)
			continue
		}
		resp.Body.Close()
		if resp.StatusCode == 410 || resp.StatusCode == 404 {
			if err := n.subs.Delete(ctx, userID, sub.Endpoint); err != nil {
				logger.Errorf("push prune endpoint user=%s: %v", userID, err)
			}
		}
	}
}
