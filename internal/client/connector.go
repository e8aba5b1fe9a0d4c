package client

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	sigv4 "github.com/aws/aws-sdk-go/aws/signer/v4"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/aws_msk_iam"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"
)

// SASLMechanism is the name of a SASL mechanism that will be used for client authentication.
type SASLMechanism string

const (
	SASLMechanismAWSMSKIAM   SASLMechanism = "aws-msk-iam"
	SASLMechanismPlain       SASLMechanism = "plain"
	SASLMechanismScramSHA256 SASLMechanism = "scram-sha-256"
	SASLMechanismScramSHA512 SASLMechanism = "scram-sha-512"
)

const defaultDialTimeout = 10 * time.Second

// ErrNoBrokers is returned when a connector is built without broker addresses.
var ErrNoBrokers = errors.New("no kafka brokers configured")

// ConnectorConfig holds the broker connection of the committed files registry.
type ConnectorConfig struct {
	BrokerAddrs []string      `mapstructure:"broker-addrs"`
	DialTimeout time.Duration `mapstructure:"dial-timeout"`
	TLS         TLSConfig     `mapstructure:"tls"`
	SASL        SASLConfig    `mapstructure:"sasl"`
}

// TLSConfig stores the TLS-related configuration for a connection.
type TLSConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	CertPath   string `mapstructure:"cert-path"`
	KeyPath    string `mapstructure:"key-path"`
	CACertPath string `mapstructure:"ca-cert-path"`
	ServerName string `mapstructure:"server-name"`
	SkipVerify bool   `mapstructure:"skip-verify"`
}

// SASLConfig stores the SASL-related configuration for a connection.
type SASLConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Mechanism SASLMechanism `mapstructure:"mechanism"`
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"`
}

// Connector carries the dialer and transport shared by the registry's
// producer, consumer and admin clients.
type Connector struct {
	Config      ConnectorConfig
	Dialer      *kafka.Dialer
	KafkaClient *kafka.Client
}

// NewConnector builds the dialer and transport for config. Every client gets
// its own dialer.
func NewConnector(config ConnectorConfig) (*Connector, error) {
	if len(config.BrokerAddrs) == 0 {
		return nil, ErrNoBrokers
	}

	mechanism, err := newSASLMechanism(config.SASL)
	if err != nil {
		return nil, err
	}
	tlsConfig, err := newTLSConfig(config.TLS)
	if err != nil {
		return nil, err
	}

	timeout := config.DialTimeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	dialer := &kafka.Dialer{
		Timeout:       timeout,
		DualStack:     true,
		SASLMechanism: mechanism,
		TLS:           tlsConfig,
	}

	return &Connector{
		Config: config,
		Dialer: dialer,
		KafkaClient: &kafka.Client{
			Addr:    kafka.TCP(config.BrokerAddrs...),
			Timeout: timeout,
			Transport: &kafka.Transport{
				Dial:        dialer.DialFunc,
				DialTimeout: timeout,
				SASL:        mechanism,
				TLS:         tlsConfig,
			},
		},
	}, nil
}

func newSASLMechanism(config SASLConfig) (sasl.Mechanism, error) {
	if !config.Enabled {
		return nil, nil
	}
	name, err := SASLNameToMechanism(string(config.Mechanism))
	if err != nil {
		return nil, err
	}
	switch name {
	case SASLMechanismAWSMSKIAM:
		sess, err := session.NewSession()
		if err != nil {
			return nil, fmt.Errorf("aws session for msk iam: %w", err)
		}
		return &aws_msk_iam.Mechanism{
			Signer: sigv4.NewSigner(sess.Config.Credentials),
			Region: aws.StringValue(sess.Config.Region),
		}, nil
	case SASLMechanismPlain:
		return plain.Mechanism{Username: config.Username, Password: config.Password}, nil
	case SASLMechanismScramSHA256:
		return scram.Mechanism(scram.SHA256, config.Username, config.Password)
	case SASLMechanismScramSHA512:
		return scram.Mechanism(scram.SHA512, config.Username, config.Password)
	default:
		return nil, fmt.Errorf("unrecognized SASL mechanism: %s", name)
	}
}

func newTLSConfig(config TLSConfig) (*tls.Config, error) {
	if !config.Enabled {
		return nil, nil
	}
	tlsConfig := &tls.Config{
		InsecureSkipVerify: config.SkipVerify,
		ServerName:         config.ServerName,
	}
	if config.CertPath != "" && config.KeyPath != "" {
		cert, err := tls.LoadX509KeyPair(config.CertPath, config.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	if config.CACertPath != "" {
		pem, err := os.ReadFile(config.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("read ca certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("could not append CA certs from %s", config.CACertPath)
		}
		tlsConfig.RootCAs = pool
	}
	return tlsConfig, nil
}

// SASLNameToMechanism converts the argument SASL mechanism name string to a valid instance of
// the SASLMechanism enum.
func SASLNameToMechanism(name string) (SASLMechanism, error) {
	normalizedName := strings.ReplaceAll(strings.ToLower(name), "_", "-")
	mechanism := SASLMechanism(normalizedName)

	switch mechanism {
	case SASLMechanismAWSMSKIAM,
		SASLMechanismPlain,
		SASLMechanismScramSHA256,
		SASLMechanismScramSHA512:
		return mechanism, nil
	default:
		return mechanism, fmt.Errorf(
			"SASL mechanism '%s' is not valid; choices are AWS-MSK-IAM, PLAIN, SCRAM-SHA-256, and SCRAM-SHA-512",
			mechanism,
		)
	}
}
