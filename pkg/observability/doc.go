/*
Package observability provides lifecycle hooks for monitoring hitch engines.

Metrics exports Prometheus counters and histograms for runs, tasks,
checkpoints and interrupts. LogHooks traces the same events through a
structured logger. Both return domain.LifecycleHooks and can be combined with
domain.CombineHooks.
*/
package observability
