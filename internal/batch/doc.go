// Package batch partitions a static work list into fixed-size batches
// and runs each batch through a bounded worker pool, strictly in batch
// order.
//
// Cancellation is cooperative: the context is checked before each batch
// starts and before each item is submitted to the pool. Items already
// dispatched are allowed to finish; subsequent batches never start. The
// terminal Result records how much work remains so the caller can tell
// the user to run again to continue.
//
// A short fixed pause separates batches to bound burst load on the
// remote system.
package batch
