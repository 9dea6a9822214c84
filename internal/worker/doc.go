// Package worker implements the offline cache controller that sits between the
// journal's pages and the network. A Controller owns one versioned cache store
// and moves through install -> activate -> fetch, mirroring the lifecycle a
// browser gives a service worker:
//
//   - OnInstall pre-caches the static asset list, all or nothing.
//   - OnActivate deletes every store sharing the naming prefix except its own.
//   - OnFetch classifies GET requests and answers them network-first (api and
//     navigation), stale-while-revalidate (static sub-resources) or with a
//     cache fallback (everything else). Non-GET and cross-origin requests pass
//     through untouched.
//   - OnMessage accepts the SKIP_WAITING control message.
//
// Registration ties controllers together: it keeps the active and waiting
// versions, promotes a waiting controller once it asks to skip waiting, and
// claims every known client for the new version after activation.
package worker
