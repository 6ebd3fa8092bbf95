package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/doorlock-core/internal/infrastructure/mqtt"
)

// checkInTimeout bounds the store write for one heartbeat.
const checkInTimeout = 5 * time.Second

// CheckInPayload is the heartbeat body published by a lock.
type CheckInPayload struct {
	Address string `json:"address"`
}

// CheckInHandler records a lock's current address.
type CheckInHandler interface {
	CheckIn(ctx context.Context, mac, address string) error
}

// Subscriber registers MQTT handlers. *mqtt.Client satisfies it.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// SubscribeCheckIns routes heartbeats on doorlock/checkin/{MAC} to locks.
// ctx bounds the lifetime of the handler; messages after it is done are ignored.
func SubscribeCheckIns(ctx context.Context, sub Subscriber, qos byte, locks CheckInHandler) error {
	return sub.Subscribe(mqtt.Topics{}.AllLockCheckIns(), qos, CheckInMessageHandler(ctx, locks))
}

// CheckInMessageHandler decodes one heartbeat and applies it.
func CheckInMessageHandler(ctx context.Context, locks CheckInHandler) mqtt.MessageHandler {
	return func(topic string, payload []byte) error {
		if ctx.Err() != nil {
			return nil
		}
		mac, ok := mqtt.Topics{}.ParseLockCheckIn(topic)
		if !ok {
			return fmt.Errorf("unexpected check-in topic %q", topic)
		}

		var msg CheckInPayload
		if err := json.Unmarshal(payload, &msg); err != nil {
			return fmt.Errorf("decoding check-in from %s: %w", mac, err)
		}
		if msg.Address == "" {
			return errors.New("check-in without address")
		}

		cctx, cancel := context.WithTimeout(ctx, checkInTimeout)
		defer cancel()
		return locks.CheckIn(cctx, mac, msg.Address)
	}
}
