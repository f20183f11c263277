// Package workqueue provides the shared task scheduler that every inbound
// event source hands its work to.
//
// The OAuth callback listener and the chat-event sources (long polling or
// webhook) never run handlers on their own goroutines directly. They submit
// work items to a Scheduler, which runs each item on its own goroutine while
// bounding the number of items in flight. Submit is fire-and-forget and is
// used for chat events and notifications; Do blocks the caller until the
// item has finished and is used by the HTTP callback, which needs the result
// to pick a response status.
//
// On shutdown the Scheduler stops accepting work and waits for in-flight
// items to drain.
package workqueue
