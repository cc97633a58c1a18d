// Package gate drives a single-use headless browser session through an
// ordered sequence of interstitial gates and reports the destination URL.
//
// A Sequence is declarative configuration: adding a gated service means
// supplying a new list of locator/timeout pairs, not new control flow. The
// Engine owns the session for the duration of one Bypass call and tears it
// down exactly once on every exit path, including panics and cancellation.
package gate
