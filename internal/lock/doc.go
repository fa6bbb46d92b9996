// Package lock provides advisory per-application mutual exclusion built only
// out of file store primitives.
//
// The lock lives at {slug}/.lock. There is no expiry: a crashed holder leaves
// the lock held until an operator clears the key (berth lock clear).
package lock
