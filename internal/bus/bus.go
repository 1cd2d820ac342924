// Package bus abstracts the publish/subscribe transport. Topics are always
// written in MQTT notation; backends with another syntax translate them.
package bus

import (
	"context"
	"errors"
)

var ErrNotConnected = errors.New("bus not connected")

// Handler receives a message delivered on a subscribed topic
type Handler func(topic string, payload []byte)

// Bus is a message bus connection
type Bus interface {
	Publish(ctx context.Context, topic, payload string, retain bool) error
	Subscribe(filter string, handler Handler) error
	Close()
}
