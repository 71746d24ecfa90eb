// Package record defines the public types shared by the sink components.
//
// # Records
//
// Record is what the record source hands to the sink. Offsets are strictly
// increasing per partition:
//
//	rec := record.Record{
//	    Topic:     "orders",
//	    Partition: 3,
//	    Offset:    1007,
//	    Timestamp: time.Now(),
//	    Value:     []byte(`{"id": 1}`),
//	}
//
// # Partition Identification
//
// TopicPartition keys every per-partition structure:
//
//	tp := rec.TopicPartition()
//	key := tp.String() // "orders-3"
//
// # Batches
//
// Batch is produced when an accumulator closes. Its StartOffset is the offset
// of the first record and Records are in append (offset) order.
package record
