// Package identity owns the sending-identity toggles: which Domain is the
// active one, whether each Account may send, and the queue auto-process
// flag.
//
// The active Domain is a single selection value stored in Settings, not a
// flag scanned across every Domain. Request handlers load it once and carry
// it through context.Context; entry points that receive no domain id fall
// back to it.
package identity
