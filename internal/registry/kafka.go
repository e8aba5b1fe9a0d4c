package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"github.com/pecigonzalo/remote-shuffle/internal/client"
	"github.com/pecigonzalo/remote-shuffle/internal/shuffle"
)

var _ Registry = (*KafkaRegistry)(nil)

// ConsumerFactory opens a fresh consumer of the registry topic.
type ConsumerFactory func() (client.Consumer, error)

// KafkaRegistry keeps records in a compacted topic keyed by Record.Key.
// Forgetting a shuffle writes tombstones for every key it produced.
type KafkaRegistry struct {
	topic       string
	recoverIdle time.Duration
	producer    client.Producer
	newConsumer ConsumerFactory
	reconciler  *topicReconciler

	mu   sync.Mutex
	keys map[string]map[string]struct{}

	logger zerolog.Logger
}

// NewKafkaRegistry connects to the brokers and makes sure the topic exists.
func NewKafkaRegistry(
	ctx context.Context,
	config shuffle.RegistryConfig,
	connector client.ConnectorConfig,
	logger *zerolog.Logger,
) (*KafkaRegistry, error) {
	admin, err := client.NewBrokerAdmin(connector)
	if err != nil {
		return nil, err
	}
	producer, err := client.NewProducerClient(connector, config.Topic)
	if err != nil {
		return nil, err
	}
	newConsumer := func() (client.Consumer, error) {
		return client.NewConsumerClient(connector, client.ConsumerOptions{
			Topic:           config.Topic,
			ClientID:        config.ClientID,
			ConsumerGroupID: fmt.Sprintf("%s-recover-%s", config.ClientID, uuid.NewString()),
			FromBeginning:   true,
		})
	}

	registry := newKafkaRegistry(admin, producer, newConsumer, config, logger)
	if err := registry.reconciler.Reconcile(ctx); err != nil {
		return nil, multierr.Append(err, producer.Close())
	}
	return registry, nil
}

func newKafkaRegistry(
	admin client.Admin,
	producer client.Producer,
	newConsumer ConsumerFactory,
	config shuffle.RegistryConfig,
	logger *zerolog.Logger,
) *KafkaRegistry {
	return &KafkaRegistry{
		topic:       config.Topic,
		recoverIdle: config.RecoverIdle,
		producer:    producer,
		newConsumer: newConsumer,
		reconciler:  newTopicReconciler(admin, config.Topic, logger),
		keys:        make(map[string]map[string]struct{}),
		logger:      logger.With().Str("component", "kafka-registry").Str("topic", config.Topic).Logger(),
	}
}

func (r *KafkaRegistry) NotifyCommitted(ctx context.Context, record Record) error {
	value, err := json.Marshal(record)
	if err != nil {
		return err
	}
	msg := client.Message{Key: []byte(record.Key()), Value: value}
	if err := r.write(ctx, msg); err != nil {
		return fmt.Errorf("record %s: %w", record.Key(), err)
	}

	r.mu.Lock()
	files, ok := r.keys[record.ShuffleKey]
	if !ok {
		files = make(map[string]struct{})
		r.keys[record.ShuffleKey] = files
	}
	files[record.FileName] = struct{}{}
	r.mu.Unlock()
	return nil
}

func (r *KafkaRegistry) Forget(ctx context.Context, shuffleKey string) error {
	r.mu.Lock()
	files := r.keys[shuffleKey]
	delete(r.keys, shuffleKey)
	r.mu.Unlock()
	if len(files) == 0 {
		return nil
	}

	tombstones := make([]client.Message, 0, len(files))
	for fileName := range files {
		key := Record{ShuffleKey: shuffleKey, FileName: fileName}.Key()
		tombstones = append(tombstones, client.Message{Key: []byte(key)})
	}
	if err := r.write(ctx, tombstones...); err != nil {
		return fmt.Errorf("forget shuffle %s: %w", shuffleKey, err)
	}
	r.logger.Debug().Str("shuffleKey", shuffleKey).Int("files", len(files)).Msg("Forgot shuffle")
	return nil
}

// write retries once on transient network errors.
func (r *KafkaRegistry) write(ctx context.Context, msgs ...client.Message) error {
	err := r.producer.Write(ctx, msgs...)
	if err != nil && client.IsTransientNetworkError(err) {
		r.logger.Warn().Err(err).Msg("Retrying registry write")
		err = r.producer.Write(ctx, msgs...)
	}
	return err
}

// Recover reads the topic from the start until no message arrives for the
// idle period and returns the live records.
func (r *KafkaRegistry) Recover(ctx context.Context) ([]Record, error) {
	consumer, err := r.newConsumer()
	if err != nil {
		return nil, err
	}
	defer consumer.Close()

	records := make(map[string]Record)
	for {
		fetchCtx, cancel := context.WithTimeout(ctx, r.recoverIdle)
		msg, err := consumer.Fetch(fetchCtx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				break
			}
			return nil, err
		}

		key := string(msg.Key)
		if len(msg.Value) == 0 {
			delete(records, key)
		} else {
			var record Record
			if err := json.Unmarshal(msg.Value, &record); err != nil {
				r.logger.Warn().Err(err).Str("key", key).Msg("Skipping malformed registry record")
			} else {
				records[key] = record
			}
		}
		if err := consumer.Commit(ctx, msg); err != nil {
			r.logger.Warn().Err(err).Msg("Error committing registry offset")
		}
	}

	recovered := sortedRecords(records)
	r.mu.Lock()
	for _, record := range recovered {
		files, ok := r.keys[record.ShuffleKey]
		if !ok {
			files = make(map[string]struct{})
			r.keys[record.ShuffleKey] = files
		}
		files[record.FileName] = struct{}{}
	}
	r.mu.Unlock()

	r.logger.Info().Int("records", len(recovered)).Msg("Recovered committed files")
	return recovered, nil
}

func (r *KafkaRegistry) Close() error {
	return r.producer.Close()
}
