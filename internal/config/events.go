package config

import (
	"fmt"
	"log/slog"

	"github.com/SAP-F-2025/practice-service/internal/events"
)

// EventConfig selects where practice events go
type EventConfig struct {
	Enabled      bool
	Publisher    string // kafka or mock
	KafkaBrokers string
	Topic        string
}

func (c *EventConfig) GetKafkaBrokers() []string {
	return splitList(c.KafkaBrokers)
}

// CreateEventPublisher returns the kafka publisher when enabled, and the in-memory
// publisher otherwise. An unknown publisher name is a configuration error.
func (c *EventConfig) CreateEventPublisher(logger *slog.Logger) (events.EventPublisher, error) {
	publisher := c.Publisher
	if !c.Enabled {
		publisher = "mock"
	}

	switch publisher {
	case "kafka":
		brokers := c.GetKafkaBrokers()
		if len(brokers) == 0 {
			return nil, fmt.Errorf("kafka event publisher needs KAFKA_BROKERS")
		}
		logger.Info("Publishing practice events to Kafka", "brokers", brokers, "topic", c.Topic)
		return events.NewKafkaEventPublisher(events.PublisherConfig{
			KafkaBrokers: brokers,
			TopicName:    c.Topic,
			Logger:       logger,
		})
	case "mock", "":
		logger.Info("Practice events kept in memory", "enabled", c.Enabled)
		return events.NewMockEventPublisher(logger), nil
	default:
		return nil, fmt.Errorf("unknown event publisher %q", c.Publisher)
	}
}
