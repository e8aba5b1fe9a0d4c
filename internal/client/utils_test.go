package client

import (
	kafka "github.com/segmentio/kafka-go"
)

const (
	testRegistryTopic = "__shuffle_committed_files"
	testRecordKey     = "app-1-0/3-0-0"
	testRecordValue   = `{"shuffleKey":"app-1-0","fileName":"3-0-0","meta":{"storageInfo":{"type":"LOCAL_HDD","mountPoint":"/mnt/disk1"},"chunkOffsets":[0,108]}}`
)

func testBrokers() []kafka.Broker {
	return []kafka.Broker{
		{ID: 0, Host: "broker-1", Port: 9098, Rack: "use1-az1"},
		{ID: 1, Host: "broker-2", Port: 9098, Rack: "use1-az2"},
		{ID: 2, Host: "broker-3", Port: 9098, Rack: "use1-az3"},
	}
}

func testRegistryTopics() []kafka.Topic {
	var partitions []kafka.Partition
	for id := 0; id < 3; id++ {
		partitions = append(partitions, kafka.Partition{Topic: testRegistryTopic, ID: id, Replicas: testBrokers()})
	}
	return []kafka.Topic{{Name: testRegistryTopic, Partitions: partitions}}
}

// testKafkaRecord is a committed file record as read from the registry topic.
func testKafkaRecord() *kafka.Message {
	return &kafka.Message{
		Topic:     testRegistryTopic,
		Partition: 0,
		Offset:    1,
		Key:       []byte(testRecordKey),
		Value:     []byte(testRecordValue),
	}
}

func testRecordMessage() *Message {
	record := testKafkaRecord()
	return &Message{
		Topic:     record.Topic,
		Partition: record.Partition,
		Offset:    record.Offset,
		Key:       record.Key,
		Value:     record.Value,
	}
}
