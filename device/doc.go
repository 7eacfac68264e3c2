// Package device models the accelerator the compression pipeline runs on.
//
// The host's cores stand in for the device. Three pieces make up the model:
//   - Stream: an ordered queue of kernels. A kernel is a host function that
//     usually fans out with ParallelFor. Kernels on one stream run one at a
//     time in launch order; distinct streams run concurrently.
//   - Allocator: a byte budget that device buffers are accounted against, so
//     a compressor can be given a memory limit and fail cleanly when it is
//     exceeded.
//   - ParallelFor: the data-parallel fan-out used inside kernels.
//
// Errors returned by a kernel are recorded on its stream. Later kernels on
// the same stream are skipped, and the first error is reported (and cleared)
// by Synchronize.
package device
