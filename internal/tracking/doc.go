// Package tracking stores delivery events reported by the mail provider's
// webhook and looks them up by provider message id.
package tracking
