// Package buffer provides per-partition batch accumulation.
//
// A PartitionAccumulator collects the records of one Kafka partition in offset
// order until the task closes the batch. It has two states, empty and
// accumulating; Close moves it back to empty and hands the batch to the caller.
//
//	acc := buffer.New(tp, 0)
//	if err := acc.Append(rec); err != nil {
//	    // *errors.OffsetOrderError: the record source broke offset order
//	}
//	batch, ok := acc.Close()
//
// # Offset Ordering
//
// Append rejects any record whose offset is not strictly greater than the last
// appended offset. The last offset is remembered across Close, so a replayed
// record is rejected even right after a batch was closed.
//
// # Manager
//
// Manager keeps one accumulator per topic partition and creates them on
// demand. Each accumulator is driven by a single partition worker; the manager
// map itself is guarded by a read-write mutex with double-checked locking on
// creation.
//
//	manager := buffer.NewManager(0)
//	acc := manager.Accumulator(tp)
//	manager.Release(tp) // after revocation
package buffer
