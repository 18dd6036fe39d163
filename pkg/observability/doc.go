/*
Package observability turns kernel lifecycle hooks into Prometheus metrics
and OpenTelemetry spans.

Both producers are plain domain.LifecycleHooks values, so they can be
combined with each other and with caller hooks through domain.CombineHooks
and passed to the kernel with runtime.WithLifecycleHooks.
*/
package observability
