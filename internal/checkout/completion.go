package checkout

import (
	"context"
	"sync"
)

// Outcome is what the payment widget reported
type Outcome struct {
	Succeeded       bool
	PaymentIntentID string
	// Message is the widget's error text when Succeeded is false
	Message string
}

// Completion is a single-shot result of the payment widget. Only the first
// Succeed or Fail call takes effect.
type Completion struct {
	once    sync.Once
	done    chan struct{}
	outcome Outcome
}

func NewCompletion() *Completion {
	return &Completion{done: make(chan struct{})}
}

// Succeed resolves the completion with a confirmed payment intent
func (c *Completion) Succeed(paymentIntentID string) {
	c.resolve(Outcome{Succeeded: true, PaymentIntentID: paymentIntentID})
}

// Fail resolves the completion with the widget's error message
func (c *Completion) Fail(message string) {
	c.resolve(Outcome{Message: message})
}

func (c *Completion) resolve(o Outcome) {
	c.once.Do(func() {
		c.outcome = o
		close(c.done)
	})
}

// Wait blocks until the completion resolves or ctx is done
func (c *Completion) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-c.done:
		return c.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}
