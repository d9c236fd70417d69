// Package stats records the outcome of every executed batch.
//
// Recording a batch increments the Domain and Account counters, moves each
// referenced Contact to sent or failed, and appends one HistoryRecord. The
// Repository applies all of it in one transaction.
//
// Deleting history optionally resets the referenced contacts to unsent so
// they can be picked for a new batch; with keepContacts the log entry goes
// away and delivery state stays.
package stats
