package natsclient

import "time"

// TLSVerificationMode governs certificate validation strictness.
type TLSVerificationMode string

const (
	TLSMutualTLS TLSVerificationMode = "mutual_tls"
	TLSSystemCA  TLSVerificationMode = "system_ca"
	TLSSkip      TLSVerificationMode = "skip"
)

// TLSConfig is the bus client's TLS policy block.
type TLSConfig struct {
	Enabled          bool
	CACertPath       string
	CertPath         string
	KeyPath          string
	VerificationMode TLSVerificationMode
	ProtocolVersions []string
	CipherSuites     []string
	ALPNProtocols    []string
	HandshakeTimeout time.Duration
}

// DiscoveryConfig governs service-discovery-assisted reconnection, if the
// embedding deployment provides one.
type DiscoveryConfig struct {
	Enabled bool
	TTL     time.Duration
}

// StreamConfig declares one JetStream durable stream to provision.
type StreamConfig struct {
	Name     string
	Subjects []string
}

// Config is the bus client's full configuration surface.
type Config struct {
	ConnectionURLs     []string
	ClientName         string
	RequestTimeout     time.Duration
	RetryAttempts      int
	RetryMaxDelay      time.Duration
	MaxPendingBytes    int
	MaxPendingMessages int
	Discovery          DiscoveryConfig
	Streams            []StreamConfig
	TLS                TLSConfig
}

// DefaultConfig returns the defaults for an otherwise unconfigured
// client pointed at a single NATS server.
func DefaultConfig(url string) Config {
	return Config{
		ConnectionURLs:     []string{url},
		ClientName:         "qollective-client",
		RequestTimeout:     30 * time.Second,
		RetryAttempts:      -1, // unlimited
		RetryMaxDelay:      5 * time.Second,
		MaxPendingBytes:    64 * 1024 * 1024,
		MaxPendingMessages: 65536,
	}
}

// Enabled reports whether this configuration describes an active NATS
// transport. A Config with no connection URLs builds a disabled Client
// whose bus operations all return a FeatureNotEnabled error.
func (c Config) Enabled() bool {
	return len(c.ConnectionURLs) > 0
}
