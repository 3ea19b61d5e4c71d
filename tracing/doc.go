// Package tracing is a thin wrapper around OpenTelemetry so the rest of the
// code-base can emit spans through two calls (StartSpan, EndSpan) without
// touching the upstream API directly. Nothing is re-implemented; everything
// delegates to the OpenTelemetry SDK.
package tracing
