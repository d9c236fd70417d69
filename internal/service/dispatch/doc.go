// Package dispatch sends one batch: every contact of every assignment, in
// order, through the channel selected by the batch's Domain.
//
// Dispatch has no persistence side effects. A failure for one contact is
// recorded as a failed SendResult and the batch continues, so the result
// list always has one entry per contact id in the assignments. Only a
// failure to read the directory or an AfterAssignment hook error ends the
// batch early; the results produced up to that point are returned with
// the error.
package dispatch
