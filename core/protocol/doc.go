// Package protocol defines the message envelope exchanged between roots.
//
// Roots never share state; they communicate only through immutable Call
// values. A request carries a match ID that its reply or error preserves,
// which lets a waiting party recognise the response and ignore anything
// stale:
//
//	to := protocol.MustControl(protocol.RootAddress("foo"), "info")
//	req := protocol.NewRequest(to, from, now, "arg")
//	reply, _ := req.Reply("result")
//	// reply.MatchID() == req.MatchID(), reply.To() == req.From()
//
// Failures crossing a Call boundary travel as *ErrorValue, a tagged error
// with a short origin trace.
package protocol
