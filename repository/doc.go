// Package repository adapts host database engines (bun over SQL dialects,
// bbolt) into a single object-store shaped repository: named collections
// of JSON records identified by a key path, with optional generated keys.
package repository
