// Package notify forwards the results of every recorded batch to an
// external tracking collaborator.
//
// Delivery is asynchronous and best-effort. Notify returns immediately; a
// failed delivery is logged as a SyncError and never touches stats,
// history or queue state.
package notify
