// Package dispatch routes asynchronous control-plane notifications
// (instance-up, alert, read completion) to single-slot handlers, decoupled
// from statement building and deployment.
package dispatch
