// Package identity derives the two identifiers this library assigns to a
// job: the canonical job key used as a queue-side uniqueness token, and
// the GJS job ID used for log paths and cross-referencing. It also parses
// the queue's own opaque handle format.
package identity
