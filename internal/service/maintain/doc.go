// Package maintain implements channel maintenance commands: Linux repository
// initialization, latest-pointer refresh and icon placement.
package maintain
