package notify

import (
	"github.com/sentryops/bypassguard/internal/logger"
)

// Message is a queued notification intent
type Message struct {
	Recipient string
	Body      string
}

// Sender delivers a single message
type Sender interface {
	Send(recipient, body string)
}

// Dispatcher decouples the transition engine and the sweepers from gateway
// latency: callers enqueue intents, a background goroutine drains the queue
// and talks to the gateway. A full queue drops the message rather than block.
type Dispatcher struct {
	sender Sender
	queue  chan Message
	done   chan struct{}
	logger logger.Logger
}

// NewDispatcher creates a dispatcher with the given queue capacity
func NewDispatcher(sender Sender, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}

	return &Dispatcher{
		sender: sender,
		queue:  make(chan Message, queueSize),
		done:   make(chan struct{}),
		logger: logger.New("notify-dispatcher"),
	}
}

// Start launches the drain goroutine
func (d *Dispatcher) Start() {
	go func() {
		defer close(d.done)
		for msg := range d.queue {
			d.sender.Send(msg.Recipient, msg.Body)
		}
	}()
}

// Stop closes the queue and waits for the remaining messages to drain.
// Notify must not be called after Stop.
func (d *Dispatcher) Stop() {
	close(d.queue)
	<-d.done
}

// Notify implements ports.Notifier. It never blocks: when the queue is full
// the message is dropped and logged.
func (d *Dispatcher) Notify(recipient, body string) {
	select {
	case d.queue <- Message{Recipient: recipient, Body: body}:
	default:
		d.logger.Warnw("notification queue full, dropping message", "recipient", recipient)
		logger.NotificationTotal.WithLabelValues("dropped").Inc()
	}
}
