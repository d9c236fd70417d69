// Package httputil writes JSON responses and maps service errors onto HTTP
// status codes for the api handlers.
package httputil
