package headless

import (
	"context"
	"sync"

	"github.com/aretw0/tapestry/pkg/domain"
)

// Dialogs implements ports.Dialogs with queued answers.
// When the queue is empty it returns the fallback answer.
type Dialogs struct {
	mu       sync.Mutex
	queue    []domain.Answer
	fallback domain.Answer
	asked    []domain.Feedback
}

// NewDialogs returns a responder that answers fallback once the queue runs out.
func NewDialogs(fallback domain.Answer, queued ...domain.Answer) *Dialogs {
	return &Dialogs{fallback: fallback, queue: queued}
}

// Queue appends answers.
func (d *Dialogs) Queue(answers ...domain.Answer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue = append(d.queue, answers...)
}

// Ask records fb and returns the next queued answer.
func (d *Dialogs) Ask(ctx context.Context, fb domain.Feedback) (domain.Answer, error) {
	if err := ctx.Err(); err != nil {
		return domain.Answer{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.asked = append(d.asked, fb)
	if len(d.queue) == 0 {
		return d.fallback, nil
	}
	a := d.queue[0]
	d.queue = d.queue[1:]
	return a, nil
}

// Asked returns every feedback request seen so far.
func (d *Dialogs) Asked() []domain.Feedback {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.Feedback(nil), d.asked...)
}
