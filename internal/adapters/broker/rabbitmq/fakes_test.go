package rabbitmq

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeConn struct {
	mu      sync.Mutex
	ch      *fakeChannel
	closed  bool
	notify  []chan *amqp.Error
	dials   int
	chanErr error
}

func (c *fakeConn) Channel() (amqpChannel, error) {
	if c.chanErr != nil {
		return nil, c.chanErr
	}
	return c.ch, nil
}

func (c *fakeConn) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notify = append(c.notify, receiver)
	return receiver
}

func (c *fakeConn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return amqp.ErrClosed
	}
	c.closed = true
	for _, n := range c.notify {
		close(n)
	}
	return nil
}

// drop simulates the broker going away.
func (c *fakeConn) drop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for _, n := range c.notify {
		n <- amqp.ErrClosed
		close(n)
	}
}

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	mu         sync.Mutex
	exchanges  []string
	queues     map[string]amqp.Table
	bindings   []string
	qos        int
	confirm    bool
	published  []published
	publishErr error
	deliveries chan amqp.Delivery
	closeOnce  sync.Once
	consumers  []string
	cancelled  []string
	closed     bool
	notify     []chan *amqp.Error
	bindErr    error
	// onBind runs after a binding is recorded, outside the lock.
	onBind func(key string)
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		queues:     map[string]amqp.Table{},
		deliveries: make(chan amqp.Delivery),
	}
}

func (c *fakeChannel) ExchangeDeclare(name, kind string, durable, _, _, _ bool, _ amqp.Table) error {
	if kind != amqp.ExchangeTopic || !durable {
		return errors.New("expected durable topic exchange")
	}
	c.exchanges = append(c.exchanges, name)
	return nil
}

func (c *fakeChannel) QueueDeclare(name string, durable, _, _, _ bool, args amqp.Table) (amqp.Queue, error) {
	if !durable {
		return amqp.Queue{}, errors.New("expected durable queue")
	}
	c.queues[name] = args
	return amqp.Queue{Name: name}, nil
}

func (c *fakeChannel) QueueBind(name, key, exchange string, _ bool, _ amqp.Table) error {
	c.mu.Lock()
	if c.bindErr != nil {
		c.mu.Unlock()
		return c.bindErr
	}
	c.bindings = append(c.bindings, name+"<-"+exchange+":"+key)
	onBind := c.onBind
	c.mu.Unlock()

	if onBind != nil {
		onBind(key)
	}
	return nil
}

func (c *fakeChannel) Qos(prefetchCount, _ int, _ bool) error {
	c.qos = prefetchCount
	return nil
}

func (c *fakeChannel) Confirm(bool) error {
	c.confirm = true
	return nil
}

func (c *fakeChannel) PublishWithDeferredConfirmWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) (*amqp.DeferredConfirmation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishErr != nil {
		return nil, c.publishErr
	}
	c.published = append(c.published, published{exchange: exchange, key: key, msg: msg})
	return nil, nil
}

func (c *fakeChannel) Consume(_, consumer string, autoAck, _, _, _ bool, _ amqp.Table) (<-chan amqp.Delivery, error) {
	if autoAck {
		return nil, errors.New("auto ack breaks at-least-once delivery")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consumers = append(c.consumers, consumer)
	return c.deliveries, nil
}

func (c *fakeChannel) Cancel(consumer string, _ bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelled = append(c.cancelled, consumer)
	c.closeDeliveries()
	return nil
}

func (c *fakeChannel) closeDeliveries() {
	c.closeOnce.Do(func() { close(c.deliveries) })
}

func (c *fakeChannel) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notify = append(c.notify, receiver)
	return receiver
}

func (c *fakeChannel) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return amqp.ErrClosed
	}
	c.closed = true
	for _, n := range c.notify {
		close(n)
	}
	c.notify = nil
	return nil
}

// except simulates a channel-level exception: the server closes the
// channel and the connection stays open.
func (c *fakeChannel) except() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.publishErr = amqp.ErrClosed
	for _, n := range c.notify {
		n <- &amqp.Error{Code: amqp.PreconditionFailed, Reason: "PRECONDITION_FAILED"}
		close(n)
	}
	c.notify = nil
}

// acker records how each delivery tag was settled.
type acker struct {
	mu       sync.Mutex
	outcomes map[uint64]string
	settled  chan uint64
}

func newAcker() *acker {
	return &acker{outcomes: map[uint64]string{}, settled: make(chan uint64, 16)}
}

func (a *acker) record(tag uint64, outcome string) error {
	a.mu.Lock()
	a.outcomes[tag] = outcome
	a.mu.Unlock()
	a.settled <- tag
	return nil
}

func (a *acker) Ack(tag uint64, _ bool) error { return a.record(tag, outcomeAcked) }

func (a *acker) Nack(tag uint64, _ bool, requeue bool) error {
	if requeue {
		return a.record(tag, outcomeRequeued)
	}
	return a.record(tag, outcomeRejected)
}

func (a *acker) Reject(tag uint64, requeue bool) error {
	if requeue {
		return a.record(tag, outcomeRequeued)
	}
	return a.record(tag, outcomeRejected)
}

func (a *acker) outcome(tag uint64) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.outcomes[tag]
}
