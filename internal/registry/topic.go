package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/pecigonzalo/remote-shuffle/internal/client"
)

var (
	cleanupPolicy    = "compact"
	metricsNamespace = "remote_shuffle"

	topicCreationFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "registry_topic_creation_failed_total",
		Namespace: metricsNamespace,
		Help:      "Total number of errors while creating the registry topic",
	}, []string{"topic"})

	describeClusterError = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "registry_describe_cluster_error_total",
		Namespace: metricsNamespace,
		Help:      "Total number of errors while describing cluster",
	}, []string{"topic"})

	describeTopicError = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "registry_topic_describe_error_total",
		Namespace: metricsNamespace,
		Help:      "Total number of errors while getting registry topic metadata",
	}, []string{"topic"})

	alterTopicConfigurationError = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "registry_topic_alter_configuration_error_total",
		Namespace: metricsNamespace,
		Help:      "Total number of errors while altering configuration for the registry topic",
	}, []string{"topic"})
)

// topicReconciler makes sure the compacted registry topic exists and carries
// the expected configuration.
type topicReconciler struct {
	initialized bool
	topic       string
	admin       client.Admin
	logger      *zerolog.Logger
}

func newTopicReconciler(admin client.Admin, topic string, logger *zerolog.Logger) *topicReconciler {
	reconcilerLogger := logger.With().
		Str("registryService", "topic").
		Str("topic", topic).
		Logger()

	return &topicReconciler{
		topic:  topic,
		admin:  admin,
		logger: &reconcilerLogger,
	}
}

// Reconcile creates the topic when missing. A freshly created topic returns
// without error so the caller can proceed right away.
func (s *topicReconciler) Reconcile(ctx context.Context) error {
	brokers, err := s.admin.GetBrokers(ctx)
	if err != nil {
		describeClusterError.WithLabelValues(s.topic).Inc()
		s.logger.Error().Err(err).Msg("Error getting broker information")
		return err
	}
	if len(brokers) == 0 {
		return errors.New("no brokers available")
	}

	if _, err := s.getTopic(ctx); err != nil {
		if errors.Is(err, kafka.UnknownTopicOrPartition) {
			if err = s.createTopic(ctx, brokers); err != nil {
				return err
			}
			s.initialized = true
			return nil
		}
		return err
	}

	// Configure the topic if first run
	if !s.initialized {
		if err = s.reconcileConfiguration(ctx, brokers); err != nil {
			return err
		}
	}
	s.initialized = true

	return nil
}

func (s *topicReconciler) topicConfigs(brokers []client.BrokerInfo) map[string]string {
	replicationFactor := min(len(brokers), 3)
	minISR := max(1, replicationFactor-1)
	return map[string]string{
		"cleanup.policy":      cleanupPolicy,
		"min.insync.replicas": strconv.Itoa(minISR),
	}
}

func (s *topicReconciler) reconcileConfiguration(ctx context.Context, brokers []client.BrokerInfo) error {
	err := s.admin.UpdateTopicConfig(ctx, s.topic, s.topicConfigs(brokers))
	if err != nil {
		alterTopicConfigurationError.WithLabelValues(s.topic).Inc()
		s.logger.Error().Err(err).Msg("Error altering topic configuration")
		return err
	}
	return nil
}

func (s *topicReconciler) getTopic(ctx context.Context) (*client.TopicInfo, error) {
	topicInfo, err := s.admin.GetTopic(ctx, s.topic)
	if err != nil {
		describeTopicError.WithLabelValues(s.topic).Inc()
		s.logger.Warn().Err(err).Msg("Error describing topic")
		return nil, err
	}

	return &topicInfo, nil
}

func (s *topicReconciler) createTopic(ctx context.Context, brokers []client.BrokerInfo) error {
	assignments := s.requestAssignments(brokers)
	if err := s.admin.CreateTopic(ctx, s.topic, assignments, s.topicConfigs(brokers)); err != nil {
		topicCreationFailed.WithLabelValues(s.topic).Inc()
		s.logger.Error().Err(err).Msg("Error creating the topic")
		return err
	}

	s.logger.Info().Msg("The registry topic was created")
	return nil
}

// requestAssignments spreads one partition per broker. When every broker has
// a rack the broker order alternates racks so replicas land on distinct racks.
func (s *topicReconciler) requestAssignments(brokers []client.BrokerInfo) []client.PartitionAssignment {
	brokersNumber := len(brokers)
	replicationFactor := min(brokersNumber, 3)

	ordered := make([]client.BrokerInfo, len(brokers))
	copy(ordered, brokers)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].ID < ordered[j].ID
	})

	rackMap := make(map[string][]client.BrokerInfo)
	var rackNames []string
	brokersWithRack := 0
	for _, broker := range ordered {
		if broker.Rack != "" {
			brokersWithRack++
			if _, ok := rackMap[broker.Rack]; !ok {
				rackNames = append(rackNames, broker.Rack)
			}
			rackMap[broker.Rack] = append(rackMap[broker.Rack], broker)
		}
	}

	switch {
	case brokersWithRack == brokersNumber:
		index := 0
		for index < brokersNumber {
			for _, rackName := range rackNames {
				brokerList := rackMap[rackName]
				if len(brokerList) > 0 {
					ordered[index], rackMap[rackName] = brokerList[0], brokerList[1:]
					index++
				}
			}
		}
	case brokersWithRack > 0:
		s.logger.Warn().
			Str("brokersWithRack", fmt.Sprintf("%d/%d", brokersWithRack, brokersNumber)).
			Msg("Some brokers lack rack assignment, topic will not use rack awareness")
	}

	assignments := []client.PartitionAssignment{}
	for p := 0; p < brokersNumber; p++ {
		replicas := []int{}
		for r := 0; r < replicationFactor; r++ {
			replicas = append(replicas, ordered[(p+r)%brokersNumber].ID)
		}
		assignments = append(assignments, client.PartitionAssignment{
			ID:       p,
			Replicas: replicas,
		})
	}

	s.logger.Info().
		Str("assignment", fmt.Sprintf("%v", assignments)).
		Msg("Requested partition assignment")

	return assignments
}
