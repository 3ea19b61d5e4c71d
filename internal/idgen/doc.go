// Package idgen wraps the UUID generator so that it can be stubbed in
// tests. It lives under internal because callers should treat identifiers
// as opaque strings and not rely on their exact shape.
package idgen
