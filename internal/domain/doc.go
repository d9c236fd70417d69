// Package domain holds the dispatch engine's entities (domains, accounts,
// templates, contacts, queue items, history and tracking events) and the
// error values shared by the service and repository layers.
//
// Nothing here imports other internal packages or touches I/O.
package domain
