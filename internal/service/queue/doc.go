// Package queue implements scheduled batches and the processor that runs
// them.
//
// A QueueItem moves pending -> processing -> completed|failed, or
// pending -> cancelled by an operator. Terminal states are final: nothing
// is retried, and resending means a new batch.
//
// The Processor claims one due item at a time with an owner id and a lease
// (Repository.ClaimNext), so overlapping ticks or several processes never
// run the same item twice. An item whose lease runs out while processing is
// marked failed, never requeued: recipients are mailed at most once.
// Finalization is conditional on still owning the claim.
package queue
