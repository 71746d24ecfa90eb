package record_test

import (
	"fmt"

	"github.com/jittakal/kafobjectsink/pkg/record"
)

func ExampleTopicPartition_String() {
	tp := record.TopicPartition{
		Topic:     "user-events",
		Partition: 5,
	}

	fmt.Println(tp.String())
	// Output: user-events-5
}

func ExampleBatch_LastOffset() {
	batch := record.Batch{
		TopicPartition: record.TopicPartition{Topic: "orders", Partition: 3},
		StartOffset:    1007,
		Records: []record.Record{
			{Topic: "orders", Partition: 3, Offset: 1007},
			{Topic: "orders", Partition: 3, Offset: 1008},
		},
	}

	fmt.Println(batch.StartOffset, batch.LastOffset(), batch.Len())
	// Output: 1007 1008 2
}
