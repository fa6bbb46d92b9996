// Package stager implements the stage command group: encrypted parking of
// artifacts that are uploaded but not yet promoted into a version.
package stager
