// Package webdb is a small object-store layer over an embedded or server
// database. A Database holds named collections of JSON records identified
// by a key field, and exposes Create, Read, Update and Delete plus a storage
// capacity pre-check. Connections are opened lazily and reused; operations
// can be run asynchronously with Async, which settles into a Result.
package webdb
