// Package model defines the data structures shared across wmsender.
//
// The persisted state is a Database: a mapping of source page URLs to the
// Page records that hold the mentions (target link plus webmention endpoint)
// previously announced for that page. The same shape is used for the freshly
// crawled "intended" view of the site, so reconciliation is a plain diff of
// two Database values.
//
// A Plan is the output of that diff. It lists the removals and additions to
// send and the lastModified value every surviving page must carry. Plans hold
// no reference to either Database; the executor applies them to a copy.
//
// RunReport collects everything a single run observed and did. It is threaded
// through the pipeline steps and rendered by the report package.
package model
