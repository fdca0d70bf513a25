// Package capacity classifies byte counts into human readable units and
// checks whether the host has enough free storage for a database.
package capacity
