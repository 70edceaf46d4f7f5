// Package reconcile computes the difference between the previously notified
// state of a site and its freshly crawled state.
//
// Reconcile walks the union of page URLs of both databases and, within every
// page, the union of target URLs. The result is a model.Plan: removals,
// additions and the lastModified every page present on the site must carry.
// Reconcile is pure; neither input is modified and no network call is made.
//
// Rules per page URL:
//
//   - only in previous: every recorded mention becomes a removal.
//   - only in intended: every mention becomes an addition.
//   - in both: targets only in previous become removals, targets only in
//     intended become additions. Targets in both become additions when the
//     page's lastModified changed or the endpoint differs. Otherwise nothing
//     is emitted.
//
// Operations are sorted by source and then target so plans are reproducible.
package reconcile
