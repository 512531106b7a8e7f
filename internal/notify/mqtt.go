package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

const DefaultTopic = "tv/schedule/status"

type MQTTConfig struct {
	BrokerURL string
	ClientID  string
	Topic     string
}

// MQTT publishes retained messages so a player that connects late still gets the
// latest status.
type MQTT struct {
	client mqtt.Client
	topic  string
	logger zerolog.Logger
}

var _ Publisher = (*MQTT)(nil)

func NewMQTT(cfg MQTTConfig, logger zerolog.Logger) (*MQTT, error) {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "medusa-scheduler"
	}
	logger = logger.With().Str("component", "mqtt").Logger()

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(5 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		logger.Info().Str("broker", cfg.BrokerURL).Msg("connected to MQTT broker")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn().Err(err).Msg("MQTT connection lost")
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return &MQTT{client: client, topic: cfg.Topic, logger: logger}, nil
}

func (m *MQTT) Publish(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s message: %w", msg.Type, err)
	}

	token := m.client.Publish(m.topic, 1, true, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", m.topic, err)
	}

	m.logger.Debug().Str("topic", m.topic).Str("type", msg.Type).Str("slot_id", msg.SlotID).
		Msg("published schedule message")
	return nil
}

func (m *MQTT) Close() {
	m.client.Disconnect(250)
	m.logger.Info().Msg("MQTT client disconnected")
}
