// Package poller confirms server state transitions by probing.
//
// A poll evaluates a Probe at a fixed interval until the server is observed in the
// target state (api.PollReached or api.PollAbsent) or the timeout elapses. Exactly one
// Result is delivered per poll with one of three outcomes: reached, timed-out or
// cancelled. Cancel is effective immediately: once it returns, no outcome other than
// cancelled (or the one delivered before) is ever observed.
//
//	h := poller.Poll(ctx, poller.Request{
//		Server:  "tomcat",
//		Target:  api.PollReached,
//		Timeout: 2 * time.Minute,
//		Probe:   poller.WebPortProbe("http://localhost:8080"),
//	})
//	res := <-h.Result()
package poller
