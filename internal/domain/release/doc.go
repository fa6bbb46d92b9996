// Package release defines the data model the positioning engine operates on:
// applications, channels, versions, artifact files and staged uploads.
//
// The engine does not own these identities; the metadata store does. The
// model here only carries the fields placement and manifest generation read.
package release
