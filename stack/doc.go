// Package stack implements suspendable computations driven without
// blocking.
//
// A StackFrame is processed only while Incomplete. Each Process call does
// one of three things:
//
//   - completes the frame (State becomes OK or Error),
//   - sends exactly one reply-required Call through the Env and returns
//     nil, suspending until the Driver delivers the matching response with
//     PostResponse, or
//   - returns a child frame, which the Driver pushes and runs to
//     completion before handing its outcome back with PostResult.
//
// The Driver keeps the frames on an explicit slice rather than the Go call
// stack, so a chain of suspensions spanning any number of asynchronous hops
// costs only the retained frames. It is meant to be owned by a single root
// goroutine and is not safe for concurrent use.
package stack
