// Package pipeline holds the explicit dependency graph over named tasks and
// the orchestrator executing it.
//
// A Pipeline is an ordered list of Phases. Tasks inside a parallel phase run
// concurrently and the phase ends only when every one of them has returned,
// successfully or not. That barrier is the only ordering guarantee between
// tasks. A sequential phase runs its tasks in declaration order. A detached
// phase launches long-lived process tasks (server, watcher) that keep running
// until the context is cancelled; the orchestrator awaits them before
// returning.
//
// Task failures never cross the phase boundary as errors. They are collected
// into the Report, logged after the phase and handed to observers. Only a
// fatal result, such as a failed clean of the destination, stops the
// pipeline.
package pipeline
