/*
Package tapestry is a headless interactive command engine for editing layered
network models.

Every user operation, whether a single click, a multi-click gesture, a drag or
a long-running layout job, runs as a resumable flow: a table of named steps
that the harness drives until the flow reports a terminal result, waits for a
pointer event, asks the host for feedback, or hands work to a background job.
Mutations are grouped into invertible transactions on a change log, so every
completed operation can be undone and redone, and every abandoned one leaves
no trace.

# Usage

Build a network, wrap it in an Engine and drive it the way a shell would:

	net, err := model.Build(spec)
	if err != nil {
		log.Fatal(err)
	}

	eng, err := tapestry.New(net, tapestry.WithControls(headless.NewControls()))
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	if _, err := eng.Invoke(ctx, flows.KeyAddNode); err != nil {
		log.Fatal(err)
	}
	res, err := eng.Click(ctx, domain.Point{X: 10, Y: 40}, false)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(res) // processed

	if _, err := eng.Undo(ctx); err != nil {
		log.Fatal(err)
	}

Flows that start a background job return DONE_ON_THREAD. Inline callers pump
the interaction loop with Await until the job's transactions are committed;
served engines run Serve on a goroutine and submit work through Do.
*/
package tapestry
