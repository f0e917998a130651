// Package offline intercepts toolshelf's HTTP traffic and serves it from
// persistent caches.
//
// A Worker is one cache version. It moves through a fixed lifecycle:
//
//	new -> installing -> installed -> activating -> activated
//
// and becomes redundant when install fails or a newer version replaces it.
//
// Install precaches the manifest into the static cache, all or nothing.
// Activate deletes every cache that does not belong to this version. Once
// activated, Fetch serves the tool list (paths ending in a dynamic suffix)
// stale-while-revalidate from the dynamic cache, and everything else
// cache-first from any cache, falling back to the network without storing
// the result.
//
// A Registration holds the active worker and is itself an http.RoundTripper,
// so it can be used as the transport of any *http.Client:
//
//	reg := offline.NewRegistration(storage, store)
//	w, _ := offline.NewWorker(cfg, storage)
//	if err := reg.Update(ctx, w); err != nil {
//	    // the previous worker, if any, keeps serving
//	}
//	client := &http.Client{Transport: reg}
package offline
