package security

import (
	"os"
	"strconv"
	"time"
)

// JwtValidationConfig is the JWT handling block of Config. Provider is
// informational (one of "default", "auth0", "okta", "azure-ad",
// "custom") — it does not select the verification path; that is
// determined by VerifySignature and, when true, JwksURL.
type JwtValidationConfig struct {
	Provider        string
	VerifySignature bool
	// RequireVerified makes cmd/qollectived mount rest.JwtGate, which
	// rejects requests whose bearer token is missing or fails signature
	// verification. The gate is mounted only when VerifySignature is on and
	// JwksURL is set.
	// Independent of tenant extraction, which stays parse-only.
	RequireVerified bool
	VerifyExpiry    bool
	Issuer          *string
	Audience        *string
	Algorithms      []string
	JwksURL         string
}

// StorageBackend enumerates where validated-token/session state lives.
type StorageBackend string

const (
	StorageMemory   StorageBackend = "memory"
	StorageFile     StorageBackend = "file"
	StorageRedis    StorageBackend = "redis"
	StorageNats     StorageBackend = "nats"
	StorageVault    StorageBackend = "vault"
	StoragePostgres StorageBackend = "postgres"
)

// StorageConfig is the token/session storage block.
type StorageConfig struct {
	Backend          StorageBackend
	ConnectionString string
	EncryptionKey    string
	TTL              time.Duration
}

// ScopeValidationConfig is the scope/permission enforcement block.
type ScopeValidationConfig struct {
	Strategy      string // "default", "rbac", "abac", "timebound"
	EnforceScopes bool
	DefaultScopes []string
	RoleHierarchy map[string][]string
}

// TransmissionConfig governs how tokens travel on the wire.
type TransmissionConfig struct {
	RequireHTTPS       bool
	AddSecurityHeaders bool
	TokenHeader        string
	TokenPrefix        string
}

// ExpirationConfig governs token lifetime handling.
type ExpirationConfig struct {
	CheckExpiry      bool
	RefreshThreshold time.Duration
	AutoRefresh      bool
}

// AuditConfig is the audit-logging block.
type AuditConfig struct {
	Enabled           bool
	Backend           StorageBackend // memory | file | redis | nats | postgres
	LogFilePath       string
	LogJwtValidation  bool
	LogAuthentication bool
	LogAuthorization  bool
	LogLevel          Severity
	IncludeDetails    bool
	MaxEventsMemory   int
}

// Config is the composite six-block security configuration.
type Config struct {
	JwtValidation   JwtValidationConfig
	Storage         StorageConfig
	ScopeValidation ScopeValidationConfig
	Transmission    TransmissionConfig
	Expiration      ExpirationConfig
	Audit           AuditConfig
}

const defaultJwtRefreshThreshold = 5 * time.Minute
const defaultSecurityTTL = 1 * time.Hour

// Development returns the permissive preset: in-memory storage, no
// signature verification, info-level audit.
func Development() Config {
	return Config{
		JwtValidation: JwtValidationConfig{
			Provider:        "default",
			VerifySignature: false,
			VerifyExpiry:    false,
			Algorithms:      []string{"HS256"},
		},
		Storage: StorageConfig{Backend: StorageMemory},
		ScopeValidation: ScopeValidationConfig{
			Strategy:      "default",
			EnforceScopes: false,
			DefaultScopes: []string{"read"},
			RoleHierarchy: map[string][]string{},
		},
		Transmission: TransmissionConfig{
			RequireHTTPS: false,
			TokenHeader:  "Authorization",
			TokenPrefix:  "Bearer ",
		},
		Expiration: ExpirationConfig{
			CheckExpiry:      false,
			RefreshThreshold: defaultJwtRefreshThreshold,
			AutoRefresh:      false,
		},
		Audit: AuditConfig{
			Enabled:           true,
			Backend:           StorageMemory,
			LogJwtValidation:  true,
			LogAuthentication: true,
			LogAuthorization:  true,
			LogLevel:          SeverityInfo,
			IncludeDetails:    true,
			MaxEventsMemory:   1000,
		},
	}
}

// Production returns the strict preset: JWKS-verified signatures,
// Redis-backed storage, RBAC scope enforcement, HTTPS-required
// transmission, file audit.
func Production() Config {
	return Config{
		JwtValidation: JwtValidationConfig{
			Provider:        "default",
			VerifySignature: true,
			RequireVerified: true,
			VerifyExpiry:    true,
			Algorithms:      []string{"RS256", "ES256"},
		},
		Storage: StorageConfig{
			Backend:          StorageRedis,
			ConnectionString: "redis://localhost:6379",
			TTL:              defaultSecurityTTL,
		},
		ScopeValidation: ScopeValidationConfig{
			Strategy:      "rbac",
			EnforceScopes: true,
			RoleHierarchy: defaultRoleHierarchy(),
		},
		Transmission: TransmissionConfig{
			RequireHTTPS:       true,
			AddSecurityHeaders: true,
			TokenHeader:        "Authorization",
			TokenPrefix:        "Bearer ",
		},
		Expiration: ExpirationConfig{
			CheckExpiry:      true,
			RefreshThreshold: defaultJwtRefreshThreshold,
			AutoRefresh:      true,
		},
		Audit: AuditConfig{
			Enabled:           true,
			Backend:           StorageFile,
			LogFilePath:       "/var/log/qollective/security-audit.log",
			LogJwtValidation:  true,
			LogAuthentication: true,
			LogAuthorization:  true,
			LogLevel:          SeverityWarning,
			IncludeDetails:    false,
		},
	}
}

func defaultRoleHierarchy() map[string][]string {
	return map[string][]string{
		"admin":   {"admin:all", "manager:all", "user:all", "read", "write", "delete"},
		"manager": {"manager:all", "user:all", "read", "write"},
		"user":    {"user:all", "read"},
	}
}

// Builder layers a preset, explicit block overrides, and environment
// variable overrides, in that order.
type Builder struct {
	cfg Config
}

// NewBuilder starts from the development preset.
func NewBuilder() *Builder {
	return &Builder{cfg: Development()}
}

// FromPreset starts from the named preset ("development" or
// "production"); any other name falls back to the development preset.
func FromPreset(name string) *Builder {
	switch name {
	case "production":
		return &Builder{cfg: Production()}
	default:
		return &Builder{cfg: Development()}
	}
}

// FromConfig starts from an already-built configuration.
func FromConfig(cfg Config) *Builder {
	return &Builder{cfg: cfg}
}

func (b *Builder) WithJwtValidation(c JwtValidationConfig) *Builder   { b.cfg.JwtValidation = c; return b }
func (b *Builder) WithStorage(c StorageConfig) *Builder               { b.cfg.Storage = c; return b }
func (b *Builder) WithScopeValidation(c ScopeValidationConfig) *Builder {
	b.cfg.ScopeValidation = c
	return b
}
func (b *Builder) WithTransmission(c TransmissionConfig) *Builder { b.cfg.Transmission = c; return b }
func (b *Builder) WithExpiration(c ExpirationConfig) *Builder     { b.cfg.Expiration = c; return b }
func (b *Builder) WithAudit(c AuditConfig) *Builder               { b.cfg.Audit = c; return b }

// ApplyEnvironmentOverrides layers QOLLECTIVE_* environment variables
// over the builder's current state, per the documented env var set.
func (b *Builder) ApplyEnvironmentOverrides() *Builder {
	jv := &b.cfg.JwtValidation
	if v, ok := os.LookupEnv("QOLLECTIVE_JWT_PROVIDER"); ok {
		jv.Provider = v
	}
	if v, ok := os.LookupEnv("QOLLECTIVE_JWT_VERIFY_SIGNATURE"); ok {
		if parsed, err := strconv.ParseBool(v); err == nil {
			jv.VerifySignature = parsed
		}
	}
	if v, ok := os.LookupEnv("QOLLECTIVE_JWT_REQUIRE_VERIFIED"); ok {
		if parsed, err := strconv.ParseBool(v); err == nil {
			jv.RequireVerified = parsed
		}
	}
	if v, ok := os.LookupEnv("QOLLECTIVE_JWT_ISSUER"); ok {
		jv.Issuer = &v
	}
	if v, ok := os.LookupEnv("QOLLECTIVE_JWT_AUDIENCE"); ok {
		jv.Audience = &v
	}
	if v, ok := os.LookupEnv("QOLLECTIVE_JWT_JWKS_URL"); ok {
		jv.JwksURL = v
	}

	st := &b.cfg.Storage
	if v, ok := os.LookupEnv("QOLLECTIVE_STORAGE_BACKEND"); ok {
		st.Backend = StorageBackend(v)
	}
	if v, ok := os.LookupEnv("QOLLECTIVE_STORAGE_CONNECTION"); ok {
		st.ConnectionString = v
	}
	if v, ok := os.LookupEnv("QOLLECTIVE_STORAGE_ENCRYPTION_KEY"); ok {
		st.EncryptionKey = v
	}

	sc := &b.cfg.ScopeValidation
	if v, ok := os.LookupEnv("QOLLECTIVE_SCOPE_STRATEGY"); ok {
		sc.Strategy = v
	}
	if v, ok := os.LookupEnv("QOLLECTIVE_SCOPE_ENFORCE"); ok {
		if parsed, err := strconv.ParseBool(v); err == nil {
			sc.EnforceScopes = parsed
		}
	}

	tr := &b.cfg.Transmission
	if v, ok := os.LookupEnv("QOLLECTIVE_REQUIRE_HTTPS"); ok {
		if parsed, err := strconv.ParseBool(v); err == nil {
			tr.RequireHTTPS = parsed
		}
	}
	if v, ok := os.LookupEnv("QOLLECTIVE_TOKEN_HEADER"); ok {
		tr.TokenHeader = v
	}

	exp := &b.cfg.Expiration
	if v, ok := os.LookupEnv("QOLLECTIVE_CHECK_EXPIRY"); ok {
		if parsed, err := strconv.ParseBool(v); err == nil {
			exp.CheckExpiry = parsed
		}
	}
	if v, ok := os.LookupEnv("QOLLECTIVE_AUTO_REFRESH"); ok {
		if parsed, err := strconv.ParseBool(v); err == nil {
			exp.AutoRefresh = parsed
		}
	}

	au := &b.cfg.Audit
	if v, ok := os.LookupEnv("QOLLECTIVE_AUDIT_BACKEND"); ok {
		au.Backend = StorageBackend(v)
	}

	return b
}

// Build returns the finished configuration.
func (b *Builder) Build() Config { return b.cfg }
