package security

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/redis/go-redis/v9"

	qerrors "github.com/qollective/qollective-go/errors"
	"github.com/qollective/qollective-go/natsclient"
)

// InMemoryAuditLogger is the test/development sink: events accumulate in
// a mutex-guarded slice with simple query helpers for assertions.
type InMemoryAuditLogger struct {
	mu     sync.Mutex
	events []Event
}

func NewInMemoryAuditLogger() *InMemoryAuditLogger { return &InMemoryAuditLogger{} }

func (l *InMemoryAuditLogger) LogEvent(e Event) error {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
	return nil
}

func (l *InMemoryAuditLogger) LogJwtValidation(tokenID, subject string, result Result, details map[string]any) error {
	return l.LogEvent(jwtValidationEvent(tokenID, subject, result, details))
}

func (l *InMemoryAuditLogger) LogAuthentication(subject, sourceIP string, result Result) error {
	return l.LogEvent(authenticationEvent(subject, sourceIP, result))
}

func (l *InMemoryAuditLogger) LogAuthorization(subject, resource, action string, result Result) error {
	return l.LogEvent(authorizationEvent(subject, resource, action, result))
}

// Events returns a copy of everything logged so far, for test assertions.
func (l *InMemoryAuditLogger) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// Clear discards all logged events.
func (l *InMemoryAuditLogger) Clear() {
	l.mu.Lock()
	l.events = nil
	l.mu.Unlock()
}

// CountByType returns how many logged events carry the given EventType.
func (l *InMemoryAuditLogger) CountByType(t EventType) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.events {
		if e.EventType == t {
			n++
		}
	}
	return n
}

// FileAuditLogger appends newline-delimited JSON to a log file.
type FileAuditLogger struct {
	mu   sync.Mutex
	path string
}

func NewFileAuditLogger(path string) *FileAuditLogger {
	return &FileAuditLogger{path: path}
}

func (l *FileAuditLogger) LogEvent(e Event) error {
	data, err := marshalEvent(e)
	if err != nil {
		return qerrors.Wrap(qerrors.KindSerialization, err, "failed to serialize audit event")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return qerrors.Wrap(qerrors.KindInternal, err, "failed to open audit log file %q", l.path)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return qerrors.Wrap(qerrors.KindInternal, err, "failed to write audit log file %q", l.path)
	}
	return nil
}

func (l *FileAuditLogger) LogJwtValidation(tokenID, subject string, result Result, details map[string]any) error {
	return l.LogEvent(jwtValidationEvent(tokenID, subject, result, details))
}

func (l *FileAuditLogger) LogAuthentication(subject, sourceIP string, result Result) error {
	return l.LogEvent(authenticationEvent(subject, sourceIP, result))
}

func (l *FileAuditLogger) LogAuthorization(subject, resource, action string, result Result) error {
	return l.LogEvent(authorizationEvent(subject, resource, action, result))
}

// RedisAuditSink appends audit events to a capped Redis stream, useful
// for deployments that already run Redis for authorization caching and
// want audit events queryable without standing up a broker.
type RedisAuditSink struct {
	client     *redis.Client
	stream     string
	maxLen     int64
	ctxFactory func() context.Context
}

// NewRedisAuditSink builds a sink that XADDs to streamName, trimmed
// approximately to maxLen entries.
func NewRedisAuditSink(client *redis.Client, streamName string, maxLen int64) *RedisAuditSink {
	return &RedisAuditSink{client: client, stream: streamName, maxLen: maxLen, ctxFactory: context.Background}
}

func (s *RedisAuditSink) LogEvent(e Event) error {
	data, err := marshalEvent(e)
	if err != nil {
		return qerrors.Wrap(qerrors.KindSerialization, err, "failed to serialize audit event")
	}

	ctx := s.ctxFactory()
	args := &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]any{"event": string(data), "event_type": string(e.EventType)},
	}
	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return qerrors.Wrap(qerrors.KindExternal, err, "failed to append audit event to redis stream %q", s.stream)
	}
	return nil
}

func (s *RedisAuditSink) LogJwtValidation(tokenID, subject string, result Result, details map[string]any) error {
	return s.LogEvent(jwtValidationEvent(tokenID, subject, result, details))
}

func (s *RedisAuditSink) LogAuthentication(subject, sourceIP string, result Result) error {
	return s.LogEvent(authenticationEvent(subject, sourceIP, result))
}

func (s *RedisAuditSink) LogAuthorization(subject, resource, action string, result Result) error {
	return s.LogEvent(authorizationEvent(subject, resource, action, result))
}

// DefaultAuditSubject is the bus subject audit events are published to
// by NatsAuditSink.
const DefaultAuditSubject = "security.audit"

// NatsAuditSink publishes audit events as raw JSON on a dedicated bus
// subject, so a central audit consumer can persist them durably.
type NatsAuditSink struct {
	client  *natsclient.Client
	subject string
}

func NewNatsAuditSink(client *natsclient.Client, subject string) *NatsAuditSink {
	if subject == "" {
		subject = DefaultAuditSubject
	}
	return &NatsAuditSink{client: client, subject: subject}
}

func (s *NatsAuditSink) LogEvent(e Event) error {
	data, err := marshalEvent(e)
	if err != nil {
		return qerrors.Wrap(qerrors.KindSerialization, err, "failed to serialize audit event")
	}
	if err := s.client.PublishRaw(context.Background(), s.subject, data); err != nil {
		return fmt.Errorf("publish audit event: %w", err)
	}
	return nil
}

func (s *NatsAuditSink) LogJwtValidation(tokenID, subject string, result Result, details map[string]any) error {
	return s.LogEvent(jwtValidationEvent(tokenID, subject, result, details))
}

func (s *NatsAuditSink) LogAuthentication(subject, sourceIP string, result Result) error {
	return s.LogEvent(authenticationEvent(subject, sourceIP, result))
}

func (s *NatsAuditSink) LogAuthorization(subject, resource, action string, result Result) error {
	return s.LogEvent(authorizationEvent(subject, resource, action, result))
}
