package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-acquisition/internal/acquisition"
)

type doneToken struct{ err error }

func (t doneToken) Wait() bool { return true }

func (t doneToken) WaitTimeout(time.Duration) bool { return true }

func (t doneToken) Error() error { return t.err }

func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type message struct {
	topic    string
	retained bool
	payload  []byte
}

// recordingClient implements the publish path of mqtt.Client.
type recordingClient struct {
	mqtt.Client
	mu   sync.Mutex
	msgs []message
	err  error
}

func (c *recordingClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, message{topic: topic, retained: retained, payload: payload.([]byte)})
	return doneToken{err: c.err}
}

func (c *recordingClient) messages() []message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]message(nil), c.msgs...)
}

func TestPublisherSkipsIntermediateStates(t *testing.T) {
	client := &recordingClient{}
	p := NewPublisher(client, "weather/state")

	updates := make(chan acquisition.Snapshot, 4)
	updates <- acquisition.Snapshot{Seq: 1, State: acquisition.StateResolving}
	updates <- acquisition.Snapshot{Seq: 1, State: acquisition.StateFetching}
	updates <- acquisition.Snapshot{Seq: 1, State: acquisition.StateReady, Stale: true, ReasonText: "offline"}
	close(updates)

	p.Run(context.Background(), updates)

	msgs := client.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "weather/state", msgs[0].topic)
	assert.True(t, msgs[0].retained)

	var got map[string]any
	require.NoError(t, json.Unmarshal(msgs[0].payload, &got))
	assert.Equal(t, "ready", got["state"])
	assert.Equal(t, true, got["stale"])
	assert.Equal(t, "offline", got["reason"])
}

func TestPublishReportsBrokerError(t *testing.T) {
	client := &recordingClient{err: errors.New("not connected")}
	err := NewPublisher(client, "weather/state").Publish(acquisition.Snapshot{Seq: 3, State: acquisition.StateEmpty})
	assert.ErrorContains(t, err, "not connected")
}

func TestPublisherStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewPublisher(&recordingClient{}, "t").Run(ctx, make(chan acquisition.Snapshot))
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher did not stop")
	}
}
