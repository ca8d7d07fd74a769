package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/i474232898/weather-acquisition/internal/acquisition"
)

// ClientConfig holds MQTT connection settings.
type ClientConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
}

// Connect opens an MQTT connection with auto-reconnect.
func Connect(cfg ClientConfig) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Println("INFO: notify: MQTT connection established")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Printf("WARN: notify: MQTT connection lost: %v", err)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	log.Println("INFO: notify: connected to broker:", cfg.Broker)
	return client, nil
}

// Publisher publishes terminal acquisition snapshots as retained JSON messages.
type Publisher struct {
	client mqtt.Client
	topic  string
	qos    byte
}

func NewPublisher(client mqtt.Client, topic string) *Publisher {
	return &Publisher{client: client, topic: topic, qos: 1}
}

// Run publishes snapshots from updates until ctx is done or updates is closed.
// Intermediate states are skipped.
func (p *Publisher) Run(ctx context.Context, updates <-chan acquisition.Snapshot) {
	log.Println("INFO: notify: publisher starting")
	for {
		select {
		case <-ctx.Done():
			log.Println("INFO: notify: context cancelled, publisher stopping")
			return
		case snap, ok := <-updates:
			if !ok {
				log.Println("INFO: notify: snapshot channel closed, publisher stopping")
				return
			}
			if !snap.State.Terminal() {
				continue
			}
			if err := p.Publish(snap); err != nil {
				log.Printf("WARN: notify: %v", err)
			}
		}
	}
}

// Publish sends one snapshot.
func (p *Publisher) Publish(snap acquisition.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot %d: %w", snap.Seq, err)
	}

	token := p.client.Publish(p.topic, p.qos, true, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish snapshot %d to %s: timed out", snap.Seq, p.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish snapshot %d to %s: %w", snap.Seq, p.topic, err)
	}
	log.Printf("DEBUG: notify: published snapshot %d (%s) to %s", snap.Seq, snap.State, p.topic)
	return nil
}

// Close disconnects the client.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
