// Package internal contains the core implementation packages for stowage.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - identifier, inflector: key normalization, namespaces and constant names
//   - component, componentdir, directives: located components, their
//     directories and per-file option overrides
//   - store: the backing map of items, memoization and registration events
//   - booter, manual, importer: the staged providers, registration files
//     and imported containers a lazy load consults
//   - loader: constructor catalogs and the describing instantiator
//   - registry: the container, its resolution state machine and the frozen view
//   - config, logging, tracing, errors, version: ambient concerns
//   - watcher: file system monitoring mapped onto component identifiers
//
// # Inter-Package Communication
//
//   - Registry owns one store and hands each source a narrow target
//     interface for registering into it
//   - Sources resolve dependencies through store.Resolver, never through
//     the concrete container
//   - Watcher maps file events onto componentdir identifiers
//
// # Testing Strategy
//
//   - Table tests with testify in every package
//   - Property tests with rapid in the registry, and with gopter behind
//     the property build tag
//   - Race-prone paths are covered by concurrent tests meant for -race
package internal
