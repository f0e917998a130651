// Package health reports whether the pieces toolshelf depends on are usable:
// the catalog source, the key-value store and the offline registration.
//
// A Checker reports a Result with a Status of Healthy, Degraded or
// Unhealthy. An Aggregator runs registered checkers in parallel and returns
// their results in registration order.
//
// # Basic Usage
//
//	agg := health.NewAggregator()
//	agg.Register(health.PingChecker("kv", func(ctx context.Context) error {
//	    return kv.Ping(ctx, store)
//	}))
//	agg.Register(health.HTTPChecker("catalog", client, catalogURL))
//
//	results := agg.CheckAll(ctx)
//	overall := health.OverallStatus(results)
//
// # HTTP Endpoints
//
// Mount registers the probe handlers on a chi router:
//
//	r := chi.NewRouter()
//	health.Mount(r, agg)
//
// which serves /healthz (liveness), /readyz (readiness) and /health (JSON
// details).
package health
