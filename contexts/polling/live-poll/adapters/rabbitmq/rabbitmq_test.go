package rabbitmqadapter

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"livepoll/contexts/polling/live-poll/ports"

	amqp "github.com/rabbitmq/amqp091-go"
)

type fakeChannel struct {
	mu         sync.Mutex
	declared   []string
	published  []amqp.Publishing
	keys       []string
	publishErr error
	deliveries chan amqp.Delivery

	confirmMode bool
	confirms    chan amqp.Confirmation
	nack        bool
	withhold    bool
}

func (c *fakeChannel) QueueDeclare(name string, _, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.declared = append(c.declared, name)
	return amqp.Queue{Name: name}, nil
}

func (c *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishErr != nil {
		return c.publishErr
	}
	c.keys = append(c.keys, key)
	c.published = append(c.published, msg)
	if c.confirmMode && c.confirms != nil && !c.withhold {
		c.confirms <- amqp.Confirmation{DeliveryTag: uint64(len(c.published)), Ack: !c.nack}
	}
	return nil
}

func (c *fakeChannel) Confirm(bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.confirmMode = true
	return nil
}

func (c *fakeChannel) NotifyPublish(confirm chan amqp.Confirmation) chan amqp.Confirmation {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.confirms = confirm
	return confirm
}

func (c *fakeChannel) Consume(_, _ string, _, _, _, _ bool, _ amqp.Table) (<-chan amqp.Delivery, error) {
	return c.deliveries, nil
}

type acker struct {
	mu      sync.Mutex
	acks    int
	nacks   int
	requeue bool
	done    chan struct{}
}

func (a *acker) Ack(uint64, bool) error {
	a.mu.Lock()
	a.acks++
	a.mu.Unlock()
	a.done <- struct{}{}
	return nil
}

func (a *acker) Nack(_ uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	a.nacks++
	a.requeue = requeue
	a.mu.Unlock()
	a.done <- struct{}{}
	return nil
}

func (a *acker) Reject(uint64, bool) error { return nil }

func TestPublisherSendsPersistentJSONEnvelope(t *testing.T) {
	channel := &fakeChannel{}
	publisher, err := NewPublisher(channel, "", nil)
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	event := ports.EventEnvelope{
		EventID:    "evt-1",
		EventType:  "vote",
		OccurredAt: time.Unix(1_700_000_000, 0).UTC(),
		Data:       json.RawMessage(`{"option_index":1,"voter":"alice"}`),
	}
	if err := publisher.Publish(context.Background(), "vote", event); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if !channel.confirmMode {
		t.Fatalf("expected the channel to be put in confirm mode")
	}
	if len(channel.declared) != 1 || channel.declared[0] != DefaultQueue {
		t.Fatalf("expected default queue declaration, got %v", channel.declared)
	}
	if len(channel.published) != 1 || channel.keys[0] != DefaultQueue {
		t.Fatalf("expected one message routed to the queue, got %v", channel.keys)
	}
	msg := channel.published[0]
	if msg.DeliveryMode != amqp.Persistent || msg.Type != "vote" || msg.MessageId != "evt-1" {
		t.Fatalf("unexpected publishing metadata: %#v", msg)
	}
	var decoded ports.EventEnvelope
	if err := json.Unmarshal(msg.Body, &decoded); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if decoded.EventID != "evt-1" || string(decoded.Data) != `{"option_index":1,"voter":"alice"}` {
		t.Fatalf("unexpected body: %#v", decoded)
	}
}

func TestPublisherWrapsBrokerError(t *testing.T) {
	brokerErr := errors.New("channel closed")
	channel := &fakeChannel{publishErr: brokerErr}
	publisher, err := NewPublisher(channel, "q", nil)
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	err = publisher.Publish(context.Background(), "vote", ports.EventEnvelope{EventID: "evt-2"})
	if !errors.Is(err, brokerErr) {
		t.Fatalf("expected wrapped broker error, got %v", err)
	}
}

func TestPublisherFailsWhenBrokerNacks(t *testing.T) {
	channel := &fakeChannel{nack: true}
	publisher, err := NewPublisher(channel, "q", nil)
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	err = publisher.Publish(context.Background(), "vote", ports.EventEnvelope{EventID: "evt-3"})
	if !errors.Is(err, ErrPublishNacked) {
		t.Fatalf("expected ErrPublishNacked, got %v", err)
	}
}

func TestPublisherWaitsForConfirmation(t *testing.T) {
	channel := &fakeChannel{withhold: true}
	publisher, err := NewPublisher(channel, "q", nil)
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := publisher.Publish(ctx, "vote", ports.EventEnvelope{EventID: "evt-4"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected unconfirmed publish to fail with the context, got %v", err)
	}

	// The late ack for the first message must not confirm the second one.
	channel.confirms <- amqp.Confirmation{DeliveryTag: 1, Ack: true}
	channel.mu.Lock()
	channel.withhold = false
	channel.nack = true
	channel.mu.Unlock()
	if err := publisher.Publish(context.Background(), "vote", ports.EventEnvelope{EventID: "evt-5"}); !errors.Is(err, ErrPublishNacked) {
		t.Fatalf("expected the second publish to see its own nack, got %v", err)
	}
}

func TestSubscriberAcksHandledAndRequeuesFailed(t *testing.T) {
	channel := &fakeChannel{deliveries: make(chan amqp.Delivery, 2)}
	subscriber := NewSubscriber(channel, "q", nil)
	ack := &acker{done: make(chan struct{}, 2)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var seen []string
	var mu sync.Mutex
	err := subscriber.Subscribe(ctx, "vote", "observer", func(_ context.Context, event ports.EventEnvelope) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, event.EventID)
		if event.EventID == "bad" {
			return errors.New("handler failed")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	for _, id := range []string{"good", "bad"} {
		body, _ := json.Marshal(ports.EventEnvelope{EventID: id, EventType: "vote"})
		channel.deliveries <- amqp.Delivery{Acknowledger: ack, Type: "vote", Body: body}
	}
	for i := 0; i < 2; i++ {
		select {
		case <-ack.done:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for delivery %d", i)
		}
	}

	ack.mu.Lock()
	defer ack.mu.Unlock()
	if ack.acks != 1 || ack.nacks != 1 || !ack.requeue {
		t.Fatalf("unexpected ack state: acks=%d nacks=%d requeue=%v", ack.acks, ack.nacks, ack.requeue)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 {
		t.Fatalf("expected both deliveries handled, got %v", seen)
	}
}
