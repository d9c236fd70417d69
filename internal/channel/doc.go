// Package channel delivers one resolved message to one recipient.
//
// Two transports implement Channel: APIChannel talks to the provider's
// HTTP API (templated or plain send) and SMTPChannel relays through the
// Domain's SMTP server. Router picks between them by Domain.UseSMTP.
//
// Channels never retry. A failed send returns a *SendError carrying the
// provider's status and raw payload so the caller can record it on the
// recipient's result.
package channel
