package kafka

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/ds124wfegd/notification-engine/internal/entity"
	"github.com/ds124wfegd/notification-engine/internal/service"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// Consumer lets domain producers (task assignment, reward grants, admin
// broadcasts) publish notifications through a Kafka topic instead of the
// HTTP API. Each message body is one PublishRequest.
type Consumer struct {
	reader *kafka.Reader
	svc    service.NotificationService
}

type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

func NewConsumer(cfg ConsumerConfig, svc service.NotificationService) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Brokers,
		Topic:   cfg.Topic,
		GroupID: cfg.GroupID,
	})

	logrus.Infof("Kafka ingest configured for topic %s", cfg.Topic)

	return &Consumer{
		reader: reader,
		svc:    svc,
	}
}

func (c *Consumer) Start(ctx context.Context) {
	logrus.Info("Kafka ingest consumer started")

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				logrus.Info("Kafka ingest consumer stopped")
				return
			}
			logrus.Errorf("Failed to read ingest message: %v", err)
			continue
		}

		var req entity.PublishRequest
		if err := json.Unmarshal(msg.Value, &req); err != nil {
			logrus.Warnf("Dropping undecodable ingest message at offset %d: %v", msg.Offset, err)
			continue
		}

		notification, err := c.svc.Publish(ctx, &req)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"offset":   msg.Offset,
				"category": req.Category,
			}).Errorf("Ingest publish failed: %v", err)
			continue
		}

		logrus.WithFields(logrus.Fields{
			"notification_id": notification.ID,
			"priority":        notification.Priority,
		}).Debug("Ingested notification")
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
