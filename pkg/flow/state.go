package flow

import (
	"errors"

	"github.com/aretw0/tapestry/pkg/changelog"
)

// State is the continuation state of a running flow. Concrete states embed
// Base and add their own fields.
type State interface {
	base() *Base
}

// Base carries what every continuation state needs: the next step label,
// the environment and the transactions the flow opened.
type Base struct {
	next string
	env  *Env
	txs  []*changelog.Transaction
}

func (b *Base) base() *Base { return b }

// Init binds the state to env and sets its first label.
func (b *Base) Init(env *Env, label string) {
	b.env = env
	b.next = label
}

// Next returns the label of the step that runs next.
func (b *Base) Next() string { return b.next }

// Goto advances the automaton.
func (b *Base) Goto(label string) { b.next = label }

// Env returns the environment the state was initialised with.
func (b *Base) Env() *Env { return b.env }

// Begin opens a transaction on the env's log and tracks it so an abandoned
// flow can be rolled back.
func (b *Base) Begin(label string) *changelog.Transaction {
	tx := b.env.Log.Begin(label)
	b.txs = append(b.txs, tx)
	return tx
}

// Open reports how many tracked transactions are still open.
func (b *Base) Open() int {
	n := 0
	for _, tx := range b.txs {
		if tx.IsOpen() {
			n++
		}
	}
	return n
}

// Abandon discards every transaction st opened and did not finish. It returns
// how many were rolled back.
func Abandon(st State) (int, error) {
	if st == nil {
		return 0, nil
	}
	b := st.base()
	n := 0
	var errs []error
	for i := len(b.txs) - 1; i >= 0; i-- {
		tx := b.txs[i]
		if !tx.IsOpen() {
			continue
		}
		n++
		if err := tx.Discard(); err != nil {
			errs = append(errs, err)
		}
	}
	b.txs = nil
	return n, errors.Join(errs...)
}

// Bind attaches env to a state that was built without one, such as a
// preload state filled in by a caller.
func Bind(st State, env *Env) {
	if b := st.base(); b.env == nil {
		b.env = env
	}
}

// StepOf returns the label st resumes at, or empty for a nil state.
func StepOf(st State) string {
	if st == nil {
		return ""
	}
	return st.base().next
}
