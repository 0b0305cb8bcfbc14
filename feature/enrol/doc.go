// Package enrol reconciles an IMS Enterprise feed against the learning platform.
//
// # Run
//
// A Runner drives one run through a fixed sequence of states:
//
//	CheckFile -> Skip | ProcessFile -> AutohideSweep -> NotifyAndReport -> Idle
//
// CheckFile locates the feed (a local path or an s3://bucket/key object) and
// computes its modification time and MD5. A feed at the same path as the last
// run is skipped when both values are unchanged; RunOptions.Force processes it
// anyway. The path, time and hash are persisted whenever the feed was found.
//
// ProcessFile streams the feed through feed.Scanner with a Processor as the
// handler. Each element is reconciled on its own:
//
//   - group: ReconcileCourse creates or updates the course, its category and
//     the meeting-info and auto-hide side records
//   - person: ReconcilePerson creates, links, updates or deletes an account
//   - membership: ReconcileMembership enrols and unenrols course members and
//     adds them to cohort groups
//   - properties: a configured target that is not listed stops the run
//
// After a complete scan the optional snapshot pass retracts role holders of
// every touched course that the feed did not declare in this run. It is built
// on core/reconcile and only touches enrolments made through this system.
//
// # Failures
//
// Bad records are logged and counted in the Tally and the run carries on.
// Infrastructure failures (feed unreadable, state store unavailable) are
// returned from Run after the report is stored.
//
// # Serving
//
// Feature exposes GET /runs/last and POST /runs. Schedule and Watch trigger
// runs from a ticker and from feed file changes. A second run requested while
// one is active fails with ErrRunInProgress.
package enrol
