package natsclient

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"

	qerrors "github.com/qollective/qollective-go/errors"
)

// ProvisionStreams ensures every stream declared in cfg.Streams exists.
// Provisioning is idempotent: an existing stream whose subject set
// already matches is left untouched, and a stream whose subject set has
// grown is updated in place rather than recreated.
func (c *Client) ProvisionStreams(ctx context.Context) error {
	if c.disabled {
		return qerrors.New(qerrors.KindFeatureNotEnabled, "nats transport disabled")
	}

	for _, sc := range c.cfg.Streams {
		if err := c.provisionStream(ctx, sc); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) provisionStream(ctx context.Context, sc StreamConfig) error {
	existing, err := c.js.StreamInfo(sc.Name)
	switch {
	case err == nil:
		if subjectsEqual(existing.Config.Subjects, sc.Subjects) {
			return nil
		}
		cfg := existing.Config
		cfg.Subjects = mergeSubjects(existing.Config.Subjects, sc.Subjects)
		if _, uerr := c.js.UpdateStream(&cfg); uerr != nil {
			return qerrors.Wrap(qerrors.KindNatsDiscovery, uerr, "failed to update stream %q", sc.Name)
		}
		return nil
	case errors.Is(err, nats.ErrStreamNotFound):
		_, cerr := c.js.AddStream(&nats.StreamConfig{
			Name:     sc.Name,
			Subjects: sc.Subjects,
			Storage:  nats.FileStorage,
		})
		if cerr != nil {
			return qerrors.Wrap(qerrors.KindNatsDiscovery, cerr, "failed to create stream %q", sc.Name)
		}
		return nil
	default:
		return qerrors.Wrap(qerrors.KindNatsDiscovery, err, "failed to look up stream %q", sc.Name)
	}
}

func subjectsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]bool, len(a))
	for _, s := range a {
		seen[s] = true
	}
	for _, s := range b {
		if !seen[s] {
			return false
		}
	}
	return true
}

func mergeSubjects(existing, wanted []string) []string {
	seen := make(map[string]bool, len(existing)+len(wanted))
	out := make([]string, 0, len(existing)+len(wanted))
	for _, s := range append(existing, wanted...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// StreamInfo reports whether subject is covered by a provisioned stream,
// returning that stream's name. Used by health checks and tests to assert
// provisioning took effect.
func (c *Client) StreamInfo(subject string) (string, bool, error) {
	if c.disabled {
		return "", false, qerrors.New(qerrors.KindFeatureNotEnabled, "nats transport disabled")
	}
	name, err := c.js.StreamNameBySubject(subject)
	if err != nil {
		if errors.Is(err, nats.ErrStreamNotFound) || errors.Is(err, nats.ErrNoMatchingStream) {
			return "", false, nil
		}
		return "", false, qerrors.Wrap(qerrors.KindNatsDiscovery, err, "stream lookup for subject %q failed", subject)
	}
	return name, true, nil
}
