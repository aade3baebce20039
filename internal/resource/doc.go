// Package resource implements the venuecore functions on top of the
// function pipeline.
//
// Most functions are table-backed: a Definition lists a table's writable
// fields, list filters and hooks, and a Collection serves the usual
// read/create/update/delete over it with soft deletes, pagination and
// {RESOURCE}_{OP}_ERROR codes for storage failures. A WebCollection serves
// the same rows with server-rendered HTML for browser callers.
//
// Alongside the catalog are the banner counters (compare-and-set
// increments with max-cap deactivation) and the POS self endpoint.
//
// Create, update and delete are checked against the auth.Policy and
// announced on the events.Publisher.
package resource
