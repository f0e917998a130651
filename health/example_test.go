package health_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi/v5"

	"github.com/jonwraymond/toolshelf/health"
)

func ExampleNewAggregator() {
	agg := health.NewAggregator()
	_ = agg.Register(health.PingChecker("kv", func(context.Context) error { return nil }))
	_ = agg.Register(health.NewCheckerFunc("offline", func(context.Context) health.Result {
		return health.Degraded("no active worker")
	}))

	results := agg.CheckAll(context.Background())
	for _, r := range results {
		fmt.Println(r.Name, r.Status)
	}
	fmt.Println("overall:", health.OverallStatus(results))
	// Output:
	// kv healthy
	// offline degraded
	// overall: degraded
}

func ExamplePingChecker() {
	check := health.PingChecker("kv", func(context.Context) error {
		return errors.New("store is closed")
	})

	r := check.Check(context.Background())
	fmt.Println(r.Status, r.Message)
	// Output:
	// unhealthy kv unreachable
}

func ExampleMount() {
	agg := health.NewAggregator()
	_ = agg.Register(health.NewCheckerFunc("catalog", func(context.Context) health.Result {
		return health.Healthy("ok")
	}))

	r := chi.NewRouter()
	health.Mount(r, agg)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	fmt.Println(rec.Code, rec.Body.String())
	// Output:
	// 200 OK
}
