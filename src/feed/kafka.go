package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"market-dashboard/src/logger"
	"market-dashboard/src/models"
	"market-dashboard/src/protocol"

	"github.com/segmentio/kafka-go"
)

// -----------------------------------------------------------------------------
// KafkaSource
// -----------------------------------------------------------------------------

// KafkaSource consumes canonical market events from the backbone topic
type KafkaSource struct {
	Config models.MKafkaConfig
	Logger *logger.Logger

	mu     sync.Mutex
	filter map[string]struct{}
	reader *kafka.Reader
	cancel context.CancelFunc
}

// -----------------------------------------------------------------------------

func NewKafkaSource(cfg models.MKafkaConfig, log *logger.Logger) *KafkaSource {
	return &KafkaSource{Config: cfg, Logger: log}
}

func (k *KafkaSource) Name() string {
	return "kafka:" + k.Config.Topic
}

// -----------------------------------------------------------------------------

// UpdateSymbols restricts the forwarded symbols; an empty list forwards all
func (k *KafkaSource) UpdateSymbols(symbols []string) error {
	symbols = protocol.NormalizeSymbols(symbols)

	k.mu.Lock()
	defer k.mu.Unlock()
	if len(symbols) == 0 {
		k.filter = nil
		return nil
	}
	k.filter = make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		k.filter[s] = struct{}{}
	}
	return nil
}

// -----------------------------------------------------------------------------

func (k *KafkaSource) Start(ctx context.Context, out chan<- *models.MMarketEvent, wg *sync.WaitGroup) error {
	if len(k.Config.Brokers) == 0 || k.Config.Topic == "" {
		return errors.New("kafka source requires brokers and a topic")
	}

	ctx, cancel := context.WithCancel(ctx)
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        k.Config.Brokers,
		Topic:          k.Config.Topic,
		GroupID:        k.Config.GroupID,
		StartOffset:    kafka.LastOffset,
		CommitInterval: time.Second,
		MaxBytes:       10e6,
	})

	k.mu.Lock()
	k.reader = reader
	k.cancel = cancel
	k.mu.Unlock()

	k.Logger.Info("Kafka source consuming %s from %v (group %s)", k.Config.Topic, k.Config.Brokers, k.Config.GroupID)

	go func() {
		defer wg.Done()
		defer reader.Close()

		for {
			msg, err := reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					k.Logger.Info("Kafka source stopped")
					return
				}
				k.Logger.Error("Kafka read failed: %v", err)
				select {
				case <-time.After(time.Second):
					continue
				case <-ctx.Done():
					return
				}
			}

			event, ok := k.decode(msg)
			if !ok {
				continue
			}
			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// -----------------------------------------------------------------------------

// decode validates one record; bad records are logged and skipped
func (k *KafkaSource) decode(msg kafka.Message) (*models.MMarketEvent, bool) {
	event, err := protocol.DecodeEvent(msg.Value)
	if err != nil {
		k.Logger.Warning("Skipping record %d/%d: %v", msg.Partition, msg.Offset, err)
		return nil, false
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if k.filter != nil {
		if _, ok := k.filter[event.Symbol]; !ok {
			return nil, false
		}
	}
	return event, true
}

// -----------------------------------------------------------------------------

func (k *KafkaSource) Stop() error {
	k.mu.Lock()
	cancel := k.cancel
	k.cancel = nil
	k.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return nil
}

// -----------------------------------------------------------------------------
// KafkaPublisher
// -----------------------------------------------------------------------------

// KafkaPublisher writes events to the backbone topic keyed by symbol, so
// one symbol always lands on one partition
type KafkaPublisher struct {
	Config models.MKafkaConfig
	Logger *logger.Logger
	writer *kafka.Writer
}

// -----------------------------------------------------------------------------

func NewKafkaPublisher(cfg models.MKafkaConfig, log *logger.Logger) *KafkaPublisher {
	p := &KafkaPublisher{Config: cfg, Logger: log}
	p.writer = &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		Async:                  true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Error("Kafka publish of %d events failed: %v", len(messages), err)
			}
		},
	}
	return p
}

// -----------------------------------------------------------------------------

func (p *KafkaPublisher) Publish(ctx context.Context, event *models.MMarketEvent) error {
	msg, err := toMessage(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

func toMessage(event *models.MMarketEvent) (kafka.Message, error) {
	data, err := event.MarshalJSON()
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode %s %s: %w", event.EventType, event.Symbol, err)
	}
	return kafka.Message{
		Key:   []byte(event.Symbol),
		Value: data,
		Time:  time.Now(),
	}, nil
}

// -----------------------------------------------------------------------------

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
