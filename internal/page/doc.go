// Package page defines the narrow page-reading capability the auction core
// consumes.
//
// Reads never fail with an error: a missing, detached, or slow element is
// reported as a Result (NotFound, TimedOut, NotInteractable) and handled by
// ordinary branching in the caller.
//
// Implementations:
//   - internal/browser: live Chrome via chromedp
//   - Snapshot: a static HTML document parsed with goquery (replay, tests)
package page
