// Package httputil fetches remote source documents for the corpus
// loader.
//
// Auxiliary source references in a corpus are usually local files, but
// they may also be http(s) URLs. This package provides the
// infrastructure for those fetches:
//
//   - [Cache]: file-based response caching with TTL
//   - [Retry]: automatic retry with exponential backoff
//   - [Fetch]: a cached, retrying GET for document bytes
//
// Responses are cached under ~/.cache/thesugraph/ by default so
// repeated runs against the same corpus do not refetch unchanged
// sources. Transient failures (network errors, 5xx responses, 429
// rate limits) retry with doubling delays; anything else fails fast.
package httputil
