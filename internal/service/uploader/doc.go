// Package uploader implements the upload command: it positions one artifact
// into the configured store under the application's lock.
package uploader
