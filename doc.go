// Package aliascache caches multisite site-alias records (domain to site
// mappings) keyed by numeric ID in front of a backing store.
//
// Three operations make up the cache-maintenance contract:
//
//   - Prime:  fetch only the IDs that are not cached, in one batched store call.
//   - Update: add fetched records without overwriting existing entries, and
//     optionally cascade to the metadata cache.
//   - Clean:  drop a record (and its metadata), notify listeners and advance
//     the namespace's last-changed marker.
//
// Every cached alias carries the generation that was current when its store
// read began. Clean bumps the generation first, so a prime that raced with it
// either skips its write or produces an entry that is dropped on the next read.
//
// Keys:
//
//	single:<ns>:<id>           - alias entries
//	marker:<ns>:last_changed   - change marker (protobuf Timestamp)
//	query:<ns>:<hash>          - cached query results, hash covers query + marker
//
// Cache invalidation can be suspended for bulk work by threading a flag
// through the context:
//
//	ctx = aliascache.WithInvalidationSuspended(ctx, true)
//	importer.Run(ctx) // Clean calls are no-ops here
package aliascache
