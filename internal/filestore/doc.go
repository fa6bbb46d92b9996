// Package filestore defines the storage contract the positioning engine is
// built on and provides in-memory, local-filesystem and Amazon S3 backends.
//
// The contract's distinguishing feature is the overwrite-gated Put: a put
// with overwrite=false reports whether the value was actually written, and
// all engine logic cascades (manifest regeneration, cache invalidation) off
// that boolean. Backends make the no-overwrite put atomic: the memory store
// checks and writes under one lock, the filesystem store creates with
// O_EXCL, and the S3 store uses a conditional (If-None-Match) write.
package filestore
