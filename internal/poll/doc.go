// Package poll runs the background read loop an application starts once it
// knows its topology: a fixed number of read requests against one instance,
// spaced by a constant delay, tolerating an unreachable instance.
package poll
