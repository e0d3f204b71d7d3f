package kafka

import (
	"time"
)

// Config holds Kafka producer configuration
type Config struct {
	Brokers  []string `yaml:"brokers" validate:"required,min=1"`
	ClientID string   `yaml:"clientId"`

	BatchSize    int           `yaml:"batchSize"`
	BatchTimeout time.Duration `yaml:"batchTimeout"`
	RequiredAcks int           `yaml:"requiredAcks" validate:"oneof=-1 0 1"` // 0 none, 1 leader, -1 all replicas
	WriteTimeout time.Duration `yaml:"writeTimeout"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Brokers:      []string{"localhost:9092"},
		ClientID:     "reservation-service",
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: -1,
		WriteTimeout: 10 * time.Second,
	}
}

// Topics contains the Kafka topics the reservation service writes to
var Topics = struct {
	ReservationEvents string
	StockEvents       string
}{
	ReservationEvents: "wms.reservations.events",
	StockEvents:       "wms.stock.events",
}

// TopicConfig holds configuration for a Kafka topic
type TopicConfig struct {
	Name              string
	Partitions        int
	ReplicationFactor int
	RetentionMs       int64
}

// DefaultTopicConfigs returns the topics to provision for this service.
// Messages are keyed by quotation so partitions preserve per-quotation ordering.
func DefaultTopicConfigs(replicationFactor int) []TopicConfig {
	const week = 7 * 24 * 60 * 60 * 1000
	return []TopicConfig{
		{Name: Topics.ReservationEvents, Partitions: 12, ReplicationFactor: replicationFactor, RetentionMs: week},
		{Name: Topics.StockEvents, Partitions: 6, ReplicationFactor: replicationFactor, RetentionMs: week},
	}
}
