// Package common wires configuration into a ready engine runtime and loads
// application manifests, shared by every berth subcommand.
package common
