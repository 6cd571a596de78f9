/*
Package worker runs long computations off the interaction loop with cooperative
cancellation, and reconciles their results back on the loop.

A Job splits into RunCore, which runs on its own goroutine against immutable
snapshots, and PostRunCore, which runs on the interaction loop and is the only
place allowed to commit Changes derived from the result. RunCore polls
Monitor.Checkpoint at safe points and returns domain.ErrCancelled when asked to
stop. Multi-unit jobs may commit each unit through Monitor.Commit, which runs
on the loop and refuses to start once cancellation has been requested.

Completion drives the Owner callbacks in this order:

	cancelled: HandleCancellation
	failed:    HandleRemoteError
	succeeded: PostRunCore, CleanUpPreEnable, (controls enabled, redraw), CleanUpPostRepaint
*/
package worker
