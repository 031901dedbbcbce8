// Package cmd provides the command-line interface for stowage.
//
// The CLI inspects a project laid out for a stowage container without
// compiling its constructors in: every component is instantiated with
// loader.Describe, which yields a descriptor of what would be built.
//
// # Available Commands
//
//   - list: finalize the container and list every registered key
//   - resolve: lazily resolve a single key
//   - finalize: finalize and report how many keys each source provided
//   - watch: report the identifier each changed component file maps to
//   - validate: check the configuration with suggestions
//   - version: print build information
//
// # Command Examples
//
//	stowage list -o json
//	stowage resolve persistence.db --dump
//	stowage finalize
//	stowage watch --debounce 200ms
//
// # Configuration Integration
//
// Commands respect configuration from multiple sources in order of precedence:
//
//  1. Command-line flags (highest priority)
//  2. Environment variables (STOWAGE_*)
//  3. Configuration file (.stowage.yml)
//  4. Default values (lowest priority)
package cmd
