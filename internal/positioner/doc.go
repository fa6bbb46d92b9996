// Package positioner is the positioning and metadata engine: it routes
// uploaded build artifacts to their platform-specific storage locations,
// regenerates platform-native update-feed manifests for every rollout
// percentile from 0 to 100, maintains the per-(platform, arch) latest
// installer pointers, and handles encrypted staged uploads.
//
// All mutating entry points take a lock token previously acquired through the
// lock manager and silently no-op when the token is no longer live; the
// caller learned the lock state at acquisition time and needs no second
// error. Writes are idempotent through the store's overwrite-gated put, and
// manifest regeneration cascades only off writes that actually happened.
package positioner
