package mail

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
)

var (
	ErrQueueFull   = errors.New("mail queue is full")
	ErrQueueClosed = errors.New("mail queue is closed")
)

// Observer receives delivery outcomes.
type Observer interface {
	ObserveEmail(sent bool)
	SetMailQueueDepth(n int)
}

// Queue delivers messages on a background goroutine with bounded retries.
type Queue struct {
	sender      Sender
	logger      *slog.Logger
	observer    Observer
	maxRetries  int
	backoff     time.Duration
	sendTimeout time.Duration

	mu       sync.RWMutex
	closed   bool
	ch       chan Message
	done     chan struct{}
	doneOnce sync.Once
	wg       sync.WaitGroup
}

type QueueOption func(*Queue)

func WithLogger(logger *slog.Logger) QueueOption {
	return func(q *Queue) {
		q.logger = logger
	}
}

func WithObserver(o Observer) QueueOption {
	return func(q *Queue) {
		q.observer = o
	}
}

func WithRetries(n int, backoff time.Duration) QueueOption {
	return func(q *Queue) {
		if n >= 0 {
			q.maxRetries = n
		}
		if backoff > 0 {
			q.backoff = backoff
		}
	}
}

func WithCapacity(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.ch = make(chan Message, n)
		}
	}
}

func NewQueue(sender Sender, opts ...QueueOption) *Queue {
	q := &Queue{
		sender:      sender,
		logger:      slog.New(slog.DiscardHandler),
		maxRetries:  3,
		backoff:     time.Second,
		sendTimeout: 30 * time.Second,
		ch:          make(chan Message, 256),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Start launches the delivery goroutine. It exits when ctx is cancelled or the
// queue is closed and drained.
func (q *Queue) Start(ctx context.Context) {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-q.ch:
				if !ok {
					return
				}
				q.deliver(ctx, msg)
				q.reportDepth()
			}
		}
	}()
}

// Enqueue validates msg and schedules it without blocking.
func (q *Queue) Enqueue(_ context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- msg:
		q.reportDepth()
		return nil
	default:
		return ErrQueueFull
	}
}

// EnqueueWait validates msg and schedules it, blocking while the queue is
// full until a slot frees up, ctx is done or the queue is closed.
func (q *Queue) EnqueueWait(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- msg:
		q.reportDepth()
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting messages and waits for the worker to drain the queue.
func (q *Queue) Close() {
	// Release blocked EnqueueWait callers before taking the write lock.
	q.doneOnce.Do(func() { close(q.done) })
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	q.mu.Unlock()
	q.wg.Wait()
}

func (q *Queue) deliver(ctx context.Context, msg Message) {
	var err error
	for attempt := 0; attempt <= q.maxRetries; attempt++ {
		if attempt > 0 {
			wait := q.backoff << (attempt - 1)
			select {
			case <-ctx.Done():
				q.fail(msg, ctx.Err(), attempt)
				return
			case <-time.After(wait):
			}
		}
		sendCtx, cancel := context.WithTimeout(ctx, q.sendTimeout)
		err = q.sender.Send(sendCtx, msg)
		cancel()
		if err == nil {
			if q.observer != nil {
				q.observer.ObserveEmail(true)
			}
			return
		}
		q.logger.Warn("email delivery attempt failed",
			"error", err,
			"attempt", attempt+1,
			"subject", msg.Subject,
		)
	}
	q.fail(msg, err, q.maxRetries+1)
}

func (q *Queue) fail(msg Message, err error, attempts int) {
	q.logger.Error("email dropped",
		"error", err,
		"attempts", attempts,
		"to", strings.Join(msg.To, ","),
		"subject", msg.Subject,
	)
	if q.observer != nil {
		q.observer.ObserveEmail(false)
	}
}

func (q *Queue) reportDepth() {
	if q.observer != nil {
		q.observer.SetMailQueueDepth(len(q.ch))
	}
}
