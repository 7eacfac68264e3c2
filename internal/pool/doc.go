// Package pool provides reusable byte buffers and typed scratch slices for
// the encode and decode stages.
package pool
