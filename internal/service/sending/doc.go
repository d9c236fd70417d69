// Package sending implements the synchronous send entry points: the
// immediate batch send, the per-account test send, and the provider
// template fetch used when authoring templates.
//
// An immediate send is validated up front, dispatched to completion even
// if the caller goes away, recorded through the stats aggregator and then
// handed to the external sync notifier.
package sending
