// Package api exposes the dispatch engine over HTTP.
//
// Every /api request carries the active domain selection in its context
// (see identity.WithSelection), so endpoints that take an optional
// domainId fall back to the selected domain.
package api
