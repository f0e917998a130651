package cache_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/jonwraymond/toolshelf/cache"
)

func ExampleNewMemoryStorage() {
	ctx := context.Background()
	storage := cache.NewMemoryStorage()

	static, _ := storage.Open(ctx, "pro-toolbox-static-v1")

	// Precache the shell in one batch.
	_ = static.PutAll(ctx, []cache.Record{
		{Key: "GET https://toolbox.example/", Entry: cache.Entry{Status: 200, Body: []byte("<html>")}},
		{Key: "GET https://toolbox.example/style.css", Entry: cache.Entry{Status: 200, Body: []byte("body{}")}},
	})

	entry, ok, _ := storage.Match(ctx, "GET https://toolbox.example/style.css")
	fmt.Println("Found:", ok)
	fmt.Println("Body:", string(entry.Body))

	keys, _ := static.Keys(ctx)
	fmt.Println("Keys:", len(keys))
	// Output:
	// Found: true
	// Body: body{}
	// Keys: 2
}

func ExampleStorage_Delete() {
	ctx := context.Background()
	storage := cache.NewMemoryStorage()

	_, _ = storage.Open(ctx, "pro-toolbox-static-v1")
	_, _ = storage.Open(ctx, "pro-toolbox-static-v0")

	// Purge everything not in the whitelist.
	keep := map[string]bool{"pro-toolbox-static-v1": true}
	names, _ := storage.Names(ctx)
	for _, name := range names {
		if !keep[name] {
			deleted, _ := storage.Delete(ctx, name)
			fmt.Println("Deleted", name, deleted)
		}
	}

	names, _ = storage.Names(ctx)
	fmt.Println("Remaining:", names)
	// Output:
	// Deleted pro-toolbox-static-v0 true
	// Remaining: [pro-toolbox-static-v1]
}

func ExampleNewDefaultKeyer() {
	keyer := cache.NewDefaultKeyer()

	req := httptest.NewRequest(http.MethodGet, "https://toolbox.example/tools.json#top", nil)
	key, _ := keyer.Key(req)
	fmt.Println(key)
	// Output:
	// GET https://toolbox.example/tools.json
}

func ExamplePolicy_StrategyFor() {
	policy := cache.DefaultPolicy()

	for _, url := range []string{
		"https://toolbox.example/tools.json",
		"https://toolbox.example/index.html",
	} {
		req := httptest.NewRequest(http.MethodGet, url, nil)
		fmt.Println(url, "->", policy.StrategyFor(req))
	}
	// Output:
	// https://toolbox.example/tools.json -> stale-while-revalidate
	// https://toolbox.example/index.html -> cache-first
}

func ExampleEntry_Response() {
	entry := cache.Entry{
		Status: http.StatusOK,
		Header: http.Header{"Content-Type": []string{"application/json"}},
		Body:   []byte(`[]`),
	}

	resp := entry.Response(nil)
	var sb strings.Builder
	_, _ = fmt.Fprint(&sb, resp.Status, " ", resp.Header.Get("Content-Type"))
	fmt.Println(sb.String())
	// Output:
	// 200 OK application/json
}

func ExampleValidateKey() {
	fmt.Println("normal key:", cache.ValidateKey("GET https://toolbox.example/") == nil)
	fmt.Println("empty:", errors.Is(cache.ValidateKey(""), cache.ErrInvalidKey))
	fmt.Println("with newline:", errors.Is(cache.ValidateKey("GET /a\nb"), cache.ErrInvalidKey))
	fmt.Println("too long:", errors.Is(cache.ValidateKey(strings.Repeat("x", 600)), cache.ErrKeyTooLong))
	// Output:
	// normal key: true
	// empty: true
	// with newline: true
	// too long: true
}
