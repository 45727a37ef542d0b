// Package fetchcache coordinates cached network fetches inside one process.
//
// Concurrent reads of the same key share a single in-flight fetch, consumers
// hold references on the entries they depend on, kept values are served stale
// while a background fetch revalidates them, and unused settled entries are
// swept a quiet period after the last fetch settled.
//
// Components:
//   - Store: owns key -> entry state and applies every transition.
//   - Coordinator: read decision (fetch, join, fail, serve, revalidate) and
//     the use/unuse reference protocol.
//   - Scheduler: one coalesced timer re-armed on every settle; fires a sweep.
//   - Cache: the consumer façade composing the above with a fetcher.Fetcher.
//
// Read outcomes:
//
//	res := c.Read(q)
//	switch res.Outcome {
//	case fetchcache.OutcomeReady:   // res.Value (possibly stale, refresh in background)
//	case fetchcache.OutcomePending: // <-res.Pending.Done(), then read again
//	case fetchcache.OutcomeFailed:  // res.Err, same error on every read until evicted
//	}
//
// Blocking consumers:
//
//	v, release, err := c.Use(ctx, fetchcache.Query{Request: fetcher.Request{URL: u}})
//	if err != nil { ... }
//	defer release()
package fetchcache
