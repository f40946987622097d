// Package root implements the schedulable components of the hub.
//
// A root owns exactly one mailbox and, once started, exactly one goroutine
// that drains it. Only that goroutine ever runs the root's Handler, so
// handlers, controls and anything they own need no locking. Other
// goroutines interact with a root only through its Controller, whose Submit
// is non-blocking and safe for concurrent use.
//
// # Lifecycle
//
//	New → ActiveRunning ⇄ ActiveIdle → Terminated
//
// Installing a root (Initialize) assigns its ID and produces the
// Controller; Start begins mailbox processing; Shutdown can be called from
// any state and is absorbing.
//
// # Controls
//
// Service-offering roots map control IDs to Control values with Controls.
// ControlFunc answers synchronously; AsyncControl implements the two-phase
// handshake for work that needs a reply from another root:
//
//	ctl := root.NewAsyncControl(handler)
//	rt := root.New(root.NewControls().Add("build", ctl))
//
// A failure returned or raised while handling one Call never stops the
// root: if that Call required a reply the failure becomes an Error Call to
// the sender.
package root
