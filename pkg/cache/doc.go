/*
Package cache provides a unified caching interface with multiple backend support.

Supported backends:
  - Memory: In-memory cache (adapters/memory)
  - Bloom: Local bloom filter wrapper
*/
package cache
