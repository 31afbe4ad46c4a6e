// Package operations runs ranking sweeps as asynchronous jobs.
//
// A JobQueue owns a fixed number of workers pulling jobs from a buffered
// channel. Each job moves through pending, running and then completed, failed
// or cancelled; its state lives in a JobStore (MemoryJobStore in this
// service) and every change is pushed to a Broadcaster so that dashboard
// clients connected over WebSocket can follow progress.
//
// The queue does not know how a sweep is computed: it is constructed with a
// Runner, normally the analytics service's ranking method.
package operations
