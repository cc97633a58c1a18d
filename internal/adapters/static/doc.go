// Package static implements paste-service adapters that resolve a share URL
// with a single HTTP fetch: the URL is rewritten to the service's raw or API
// endpoint, fetched, and the text is pulled out of the body as-is, from an
// HTML element, or from a JSON field.
package static
