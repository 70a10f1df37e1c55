package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/frahmantamala/paypal-activation/internal/core/events"
	"github.com/frahmantamala/paypal-activation/pkg/logger"
	"github.com/spf13/cobra"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
	Long:  `Manage events: publish test events to the bus and, when enabled, to Kafka`,
}

var publishEventCmd = &cobra.Command{
	Use:   "publish [event-type]",
	Short: "Publish a test event",
	Long:  `Publish a test event to the event bus for testing and debugging. Known account event types are built with their real payload.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		publishTestEvent(args[0])
	},
}

var (
	eventData      string
	eventAccountID string
	eventToKafka   bool
)

func publishTestEvent(eventType string) {
	logger := logger.LoggerWrapper()

	eventBus := events.NewEventBus(logger)

	eventBus.Subscribe(events.AllEvents, func(ctx context.Context, event events.Event) error {
		logger.Info("test handler received event",
			"event_id", event.EventID(),
			"event_type", event.EventType(),
			"payload", event.Payload())
		return nil
	})

	if eventToKafka {
		config, err := loadConfig(".")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		forwarder := events.NewKafkaForwarder(events.NewKafkaWriter(config.Kafka.Brokers, config.Kafka.Topic), logger)
		forwarder.Register(eventBus)
		defer forwarder.Close()
	}

	testEvent := buildTestEvent(eventType)

	logger.Info("publishing test event", "event_type", eventType, "event_id", testEvent.EventID())

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := eventBus.PublishSync(ctx, testEvent); err != nil {
		logger.Error("failed to publish event", "error", err)
		return
	}

	logger.Info("test event published successfully")
}

func buildTestEvent(eventType string) events.Event {
	switch eventType {
	case events.EventTypeCheckoutStarted:
		return events.NewCheckoutStartedEvent(eventAccountID, "PAY-TEST")
	case events.EventTypeCheckoutCancelled:
		return events.NewCheckoutCancelledEvent(eventAccountID, "PAY-TEST")
	case events.EventTypeAccountActivated:
		return events.NewAccountActivatedEvent(eventAccountID, "TXN-TEST", "cli")
	case events.EventTypePaymentStatusLogged:
		return events.NewPaymentStatusLoggedEvent(eventAccountID, "Pending")
	case events.EventTypePaymentRejected:
		return events.NewPaymentRejectedEvent(eventAccountID, "PAY-TEST", "CREDIT_CARD_REFUSED", eventData)
	case events.EventTypeNotificationDiscarded:
		return events.NewNotificationDiscardedEvent()
	}

	return events.BaseEvent{
		ID:        fmt.Sprintf("test-%d", time.Now().Unix()),
		Type:      eventType,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"message": eventData,
			"source":  "cli-command",
		},
	}
}

func init() {

	publishEventCmd.Flags().StringVar(&eventData, "data", "test message", "Event data message")
	publishEventCmd.Flags().StringVar(&eventAccountID, "account-id", "test-account", "Account id carried by account events")
	publishEventCmd.Flags().BoolVar(&eventToKafka, "kafka", false, "Also forward the event to the configured Kafka topic")

	eventCmd.AddCommand(publishEventCmd)

	rootCmd.AddCommand(eventCmd)
}
