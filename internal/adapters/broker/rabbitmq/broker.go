// Package rabbitmq implements the event channel on a RabbitMQ topic exchange.
//
// Delivery is at least once: a message is acknowledged only after its
// handler returns nil, and negatively acknowledged with requeue otherwise.
// Handlers for one queue run one at a time in delivery order.
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/vncsmyrnk/usersync/internal/core/domain"
	"github.com/vncsmyrnk/usersync/internal/core/ports"
)

type Config struct {
	URL      string
	Exchange string
	// Queue is the consuming service's queue. Publish-only services may
	// leave it empty.
	Queue    string
	Prefetch int
	// MaxDeliveries bounds redelivery of a failing message. It relies on the
	// x-delivery-count header, which only quorum queues set. Zero disables it.
	MaxDeliveries      int
	QueueType          string
	DeadLetterExchange string
	ConnectTimeout     time.Duration
	HandlerTimeout     time.Duration
}

type route struct {
	pattern string
	handler ports.EventHandler
}

// session is one consumer's lifetime on the queue.
type session struct {
	tag      string
	stopping atomic.Bool
	done     chan struct{}
}

type Broker struct {
	cfg    Config
	logger *slog.Logger
	dial   dialFunc
	now    func() time.Time

	mu      sync.Mutex
	conn    amqpConnection
	ch      amqpChannel
	session *session

	routesMu sync.RWMutex
	routes   []route

	errs chan error
}

func NewBroker(cfg Config, logger *slog.Logger) *Broker {
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = 30 * time.Second
	}
	return &Broker{
		cfg:    cfg,
		logger: logger,
		dial:   dialer(cfg.ConnectTimeout),
		now:    time.Now,
		errs:   make(chan error, 1),
	}
}

// Errors reports failures the broker cannot recover from, such as the
// connection dropping or the delivery stream closing while consuming.
func (b *Broker) Errors() <-chan error {
	return b.errs
}

// Connect declares the topology. Calling it while connected is a no-op.
func (b *Broker) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.usable() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	b.dropStale()

	conn, err := b.dial(b.cfg.URL)
	if err != nil {
		return fmt.Errorf("%w: dial: %w", domain.ErrChannelUnavailable, err)
	}

	ch, err := b.setup(conn)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("%w: %w", domain.ErrChannelUnavailable, err)
	}

	b.conn, b.ch = conn, ch
	connectionStatus.Set(1)
	go b.watch("connection", conn.NotifyClose(make(chan *amqp.Error, 1)))
	go b.watch("channel", ch.NotifyClose(make(chan *amqp.Error, 1)))

	b.logger.Info("connected to broker", "exchange", b.cfg.Exchange, "queue", b.cfg.Queue)
	return nil
}

func (b *Broker) setup(conn amqpConnection) (amqpChannel, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(b.cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", b.cfg.Exchange, err)
	}

	if b.cfg.Queue != "" {
		if _, err := ch.QueueDeclare(b.cfg.Queue, true, false, false, false, b.queueArgs()); err != nil {
			return nil, fmt.Errorf("declare queue %s: %w", b.cfg.Queue, err)
		}
		if err := ch.Qos(b.cfg.Prefetch, 0, false); err != nil {
			return nil, fmt.Errorf("set qos: %w", err)
		}
	}

	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("enable publisher confirms: %w", err)
	}
	return ch, nil
}

func (b *Broker) queueArgs() amqp.Table {
	args := amqp.Table{}
	if b.cfg.QueueType != "" {
		args["x-queue-type"] = b.cfg.QueueType
	}
	if b.cfg.DeadLetterExchange != "" {
		args["x-dead-letter-exchange"] = b.cfg.DeadLetterExchange
	}
	if len(args) == 0 {
		return nil
	}
	return args
}

// ConnectWithRetry retries Connect with exponential backoff until it
// succeeds or maxElapsed passes.
func (b *Broker) ConnectWithRetry(ctx context.Context, maxElapsed time.Duration) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, b.Connect(ctx)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(maxElapsed),
		backoff.WithNotify(func(err error, next time.Duration) {
			b.logger.Warn("broker not reachable, retrying", "error", err, "retry_in", next)
		}),
	)
	return err
}

// usable reports whether both the connection and the channel are open. A
// channel exception closes the channel but leaves the connection up.
// Callers hold b.mu.
func (b *Broker) usable() bool {
	return b.conn != nil && !b.conn.IsClosed() && b.ch != nil && !b.ch.IsClosed()
}

// dropStale releases a half-dead session so Connect can dial again. The
// consumer, if any, ended with the channel, so its routes go too.
// Callers hold b.mu.
func (b *Broker) dropStale() {
	if b.conn == nil {
		return
	}
	if b.ch != nil {
		_ = b.ch.Close()
	}
	_ = b.conn.Close()
	b.conn, b.ch, b.session = nil, nil, nil

	b.routesMu.Lock()
	b.routes = nil
	b.routesMu.Unlock()
}

func (b *Broker) watch(what string, closed chan *amqp.Error) {
	amqpErr, ok := <-closed
	if !ok || amqpErr == nil {
		return
	}
	connectionStatus.Set(0)
	b.fail(fmt.Errorf("%w: %s closed: %w", domain.ErrChannelUnavailable, what, amqpErr))
}

func (b *Broker) fail(err error) {
	b.logger.Error("broker failure", "error", err)
	select {
	case b.errs <- err:
	default:
	}
}

func (b *Broker) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.usable()
}

func (b *Broker) channel() (amqpChannel, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.usable() {
		return nil, fmt.Errorf("%w: not connected", domain.ErrChannelUnavailable)
	}
	return b.ch, nil
}

// Publish sends payload as a persistent JSON message and waits for the
// broker to confirm it.
func (b *Broker) Publish(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s message: %w", routingKey, err)
	}

	ch, err := b.channel()
	if err != nil {
		publishTotal.WithLabelValues(routingKey, "unavailable").Inc()
		return err
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    messageID(payload),
		Timestamp:    b.now().UTC(),
		Body:         body,
	}

	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, b.cfg.Exchange, routingKey, false, false, msg)
	if err != nil {
		publishTotal.WithLabelValues(routingKey, "error").Inc()
		return fmt.Errorf("%w: publish %s: %w", domain.ErrChannelUnavailable, routingKey, err)
	}
	if confirm != nil {
		acked, err := confirm.WaitContext(ctx)
		if err != nil {
			publishTotal.WithLabelValues(routingKey, "error").Inc()
			return fmt.Errorf("%w: confirm %s: %w", domain.ErrChannelUnavailable, routingKey, err)
		}
		if !acked {
			publishTotal.WithLabelValues(routingKey, "nacked").Inc()
			return fmt.Errorf("%w: broker refused %s", domain.ErrChannelUnavailable, routingKey)
		}
	}

	publishTotal.WithLabelValues(routingKey, "ok").Inc()
	return nil
}

func messageID(payload any) string {
	switch p := payload.(type) {
	case domain.LifecycleEvent:
		return p.ID.String()
	case *domain.LifecycleEvent:
		return p.ID.String()
	default:
		return uuid.NewString()
	}
}

// Subscribe binds the queue to pattern and routes matching deliveries to
// handler. The first call starts the consumer.
func (b *Broker) Subscribe(ctx context.Context, pattern string, handler ports.EventHandler) error {
	if b.cfg.Queue == "" {
		return errors.New("cannot subscribe without a queue")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.usable() {
		return fmt.Errorf("%w: not connected", domain.ErrChannelUnavailable)
	}

	// The route must exist before the binding: the running consumer may see
	// a message for pattern as soon as QueueBind returns.
	b.routesMu.Lock()
	b.routes = append(b.routes, route{pattern: pattern, handler: handler})
	b.routesMu.Unlock()

	if err := b.ch.QueueBind(b.cfg.Queue, pattern, b.cfg.Exchange, false, nil); err != nil {
		b.removeRoute(pattern)
		return fmt.Errorf("%w: bind %s: %w", domain.ErrChannelUnavailable, pattern, err)
	}

	if b.session != nil {
		return nil
	}

	s := &session{tag: b.cfg.Queue + "-" + uuid.NewString(), done: make(chan struct{})}
	deliveries, err := b.ch.Consume(b.cfg.Queue, s.tag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("%w: consume %s: %w", domain.ErrChannelUnavailable, b.cfg.Queue, err)
	}
	b.session = s
	go b.consume(s, deliveries)

	b.logger.Info("consuming", "queue", b.cfg.Queue, "pattern", pattern, "consumer_tag", s.tag)
	return nil
}

func (b *Broker) removeRoute(pattern string) {
	b.routesMu.Lock()
	defer b.routesMu.Unlock()
	for i := len(b.routes) - 1; i >= 0; i-- {
		if b.routes[i].pattern == pattern {
			b.routes = append(b.routes[:i], b.routes[i+1:]...)
			return
		}
	}
}

func (b *Broker) consume(s *session, deliveries <-chan amqp.Delivery) {
	defer close(s.done)

	for d := range deliveries {
		b.dispatch(d)
	}

	if !s.stopping.Load() {
		b.fail(fmt.Errorf("%w: delivery stream for %s closed", domain.ErrChannelUnavailable, b.cfg.Queue))
	}
}

func (b *Broker) handlerFor(routingKey string) ports.EventHandler {
	b.routesMu.RLock()
	defer b.routesMu.RUnlock()
	for _, r := range b.routes {
		if matchTopic(r.pattern, routingKey) {
			return r.handler
		}
	}
	return nil
}

func (b *Broker) dispatch(d amqp.Delivery) {
	log := b.logger.With(
		"routing_key", d.RoutingKey,
		"message_id", d.MessageId,
		"delivery_tag", d.DeliveryTag,
	)

	if d.Redelivered {
		redeliveriesTotal.WithLabelValues(d.RoutingKey).Inc()
		log.Warn("message redelivered", "delivery_count", deliveryCount(d))
	}

	if b.cfg.MaxDeliveries > 0 && deliveryCount(d) >= int64(b.cfg.MaxDeliveries) {
		log.Error("delivery limit reached, rejecting", "max_deliveries", b.cfg.MaxDeliveries)
		b.settle(log, d, outcomeRejected)
		return
	}

	// A binding can outlive its handler on a durable queue, and a new one
	// can deliver while Subscribe is still running. Neither is the
	// message's fault, so it goes back to the queue.
	handler := b.handlerFor(d.RoutingKey)
	if handler == nil {
		log.Warn("no handler for routing key, requeueing")
		b.settle(log, d, outcomeRequeued)
		return
	}

	event, err := decode(d)
	if err != nil {
		log.Error("undecodable message, rejecting", "error", err)
		b.settle(log, d, outcomeRejected)
		return
	}

	start := time.Now()
	err = b.invoke(handler, event)
	handlerDuration.WithLabelValues(d.RoutingKey).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		b.settle(log, d, outcomeAcked)
	case errors.Is(err, domain.ErrMalformedEvent):
		log.Error("handler rejected message", "event_id", event.ID, "error", err)
		b.settle(log, d, outcomeRejected)
	default:
		log.Error("handler failed, requeueing", "event_id", event.ID, "error", err)
		b.settle(log, d, outcomeRequeued)
	}
}

func (b *Broker) invoke(handler ports.EventHandler, event domain.LifecycleEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", domain.ErrHandlerFailed, r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.HandlerTimeout)
	defer cancel()
	return handler(ctx, event)
}

func (b *Broker) settle(log *slog.Logger, d amqp.Delivery, outcome string) {
	var err error
	switch outcome {
	case outcomeAcked:
		err = d.Ack(false)
	case outcomeRequeued:
		err = d.Nack(false, true)
	default:
		err = d.Reject(false)
	}
	if err != nil {
		log.Error("failed to settle message", "outcome", outcome, "error", err)
		return
	}
	deliveriesTotal.WithLabelValues(d.RoutingKey, outcome).Inc()
}

// decode reads the event envelope. A bare JSON body without an envelope is
// accepted and typed by its routing key.
func decode(d amqp.Delivery) (domain.LifecycleEvent, error) {
	var event domain.LifecycleEvent
	if err := json.Unmarshal(d.Body, &event); err != nil {
		return domain.LifecycleEvent{}, err
	}
	if event.Type == "" {
		event = domain.LifecycleEvent{
			Type:    domain.EventType(d.RoutingKey),
			Payload: json.RawMessage(d.Body),
		}
		if id, err := uuid.Parse(d.MessageId); err == nil {
			event.ID = id
		}
		if !d.Timestamp.IsZero() {
			event.EmittedAt = d.Timestamp
		}
	}
	return event, nil
}

func deliveryCount(d amqp.Delivery) int64 {
	switch v := d.Headers["x-delivery-count"].(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case int:
		return int64(v)
	case int16:
		return int64(v)
	default:
		return 0
	}
}

// Disconnect stops the consumer, waits for the handler in flight until ctx
// is done, then closes the channel and connection. It is safe to call more
// than once.
func (b *Broker) Disconnect(ctx context.Context) error {
	b.mu.Lock()
	conn, ch, s := b.conn, b.ch, b.session
	b.conn, b.ch, b.session = nil, nil, nil
	b.mu.Unlock()

	if conn == nil {
		return nil
	}

	if s != nil {
		s.stopping.Store(true)
		if err := ch.Cancel(s.tag, false); err != nil {
			b.logger.Warn("failed to cancel consumer", "consumer_tag", s.tag, "error", err)
		}
		select {
		case <-s.done:
		case <-ctx.Done():
			b.logger.Warn("abandoning in-flight handler", "consumer_tag", s.tag)
		}
	}

	b.routesMu.Lock()
	b.routes = nil
	b.routesMu.Unlock()

	var errs []error
	if err := ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		errs = append(errs, fmt.Errorf("close channel: %w", err))
	}
	if err := conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		errs = append(errs, fmt.Errorf("close connection: %w", err))
	}
	connectionStatus.Set(0)

	b.logger.Info("disconnected from broker")
	return errors.Join(errs...)
}
