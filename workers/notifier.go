package workers

import (
	"context"
	"log"
	"sync"
	"time"
)

// Sender delivers one message to a user (the Telegram bot in production).
type Sender interface {
	Send(ctx context.Context, userID int64, text string) error
}

type notification struct {
	userID int64
	text   string
}

// Dispatcher is a bounded, best-effort notification queue. Notify never
// blocks: when the queue is full the message is dropped and logged.
type Dispatcher struct {
	sender      Sender
	queue       chan notification
	sendTimeout time.Duration

	mu      sync.Mutex
	dropped int
	wg      sync.WaitGroup
}

func NewDispatcher(sender Sender, size int) *Dispatcher {
	if size <= 0 {
		size = 256
	}
	return &Dispatcher{
		sender:      sender,
		queue:       make(chan notification, size),
		sendTimeout: 10 * time.Second,
	}
}

// Notify enqueues a message without waiting.
func (d *Dispatcher) Notify(userID int64, text string) {
	select {
	case d.queue <- notification{userID: userID, text: text}:
	default:
		d.mu.Lock()
		d.dropped++
		d.mu.Unlock()
		log.Printf("[NOTIFY] ⚠️ queue full, dropped message for %d", userID)
	}
}

// Dropped returns how many messages were discarded because the queue was full.
func (d *Dispatcher) Dropped() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

// Start runs workers goroutines until ctx is cancelled. Wait blocks until they exit.
func (d *Dispatcher) Start(ctx context.Context, workers int) {
	if workers <= 0 {
		workers = 1
	}
	log.Printf("[NOTIFY] Starting %d notification worker(s)...", workers)
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.run(ctx)
	}
}

func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-d.queue:
			d.deliver(ctx, n)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n notification) {
	if d.sender == nil {
		return
	}
	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()
	if err := d.sender.Send(sendCtx, n.userID, n.text); err != nil {
		log.Printf("[NOTIFY] ❌ send to %d failed: %v", n.userID, err)
	}
}
