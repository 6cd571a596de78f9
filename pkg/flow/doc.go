/*
Package flow defines the resumable step machine every operation is written as.

A Flow is a stateless descriptor registered once. Each invocation carries a
continuation State: flow-private data plus the label of the step to run next.
Driving a flow means looking the label up in the flow's step table, running the
step with the current Trigger, and repeating while the returned Envelope says
to keep going. Any terminal or deferred Progress returns control to the caller,
who resumes the flow later with a new Trigger and the previous Envelope.

Flows are authored as a Definition over their own state type:

	var AddThing = &flow.Definition[*addState]{
		FlowKey: "add-thing",
		Start:   func(env *flow.Env) (*addState, error) { ... },
		Steps: map[string]flow.StepFunc[*addState]{
			"start": stepStart,
			"click": stepClick,
		},
	}

A label missing from Steps is a configuration error: the machine stops and
returns a *domain.StepError rather than guessing.
*/
package flow
