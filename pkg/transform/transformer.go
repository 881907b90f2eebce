// Package transform normalizes the heterogeneous field encodings of raw
// animal records into their canonical shapes. All functions are pure and
// safe for concurrent use; per-instance counters are atomic.
package transform

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/araddon/dateparse"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/animal-etl/pkg/logging"
	"github.com/Sternrassler/animal-etl/pkg/model"
)

// Counters is a snapshot of transformation activity.
type Counters struct {
	FriendsNormalized int64
	BornAtNormalized  int64
	Errors            int64
}

// Transformer normalizes animal records. One instance may be shared across
// any number of workers.
type Transformer struct {
	logger zerolog.Logger

	friendsNormalized atomic.Int64
	bornAtNormalized  atomic.Int64
	errors            atomic.Int64
}

// New creates a Transformer.
func New() *Transformer {
	return &Transformer{logger: logging.NewLogger("transform")}
}

// Transform applies both normalizers and returns a new record; all other
// fields pass through unchanged. It fails only when the reconstructed record
// no longer satisfies the Animal invariants, so the caller can skip-and-log
// rather than abort the batch.
func (t *Transformer) Transform(a model.Animal) (model.Animal, error) {
	out := model.Animal{
		ID:      a.ID,
		Name:    a.Name,
		Friends: model.NewFriendsList(t.NormalizeFriends(a.Friends)),
		Extra:   a.CloneExtra(),
	}

	if s, ok := t.NormalizeBornAt(a.BornAt); ok {
		out.BornAt = model.NewBornAtString(s)
	}

	if err := out.Validate(); err != nil {
		t.errors.Add(1)
		t.logger.Error().Int64("animal_id", a.ID).Err(err).Msg("Transformed record failed validation")
		return model.Animal{}, err
	}
	return out, nil
}

// NormalizeFriends converts any friends variant into an ordered list of
// non-empty trimmed strings. It never fails; unusable input yields the empty
// list.
func (t *Transformer) NormalizeFriends(f model.Friends) []string {
	if f.IsZero() {
		return []string{}
	}

	if values, ok := f.List(); ok {
		return cleanList(values)
	}

	csv, _ := f.CSV()
	csv = strings.TrimSpace(csv)
	if csv == "" {
		return []string{}
	}

	t.friendsNormalized.Add(1)
	return cleanList(strings.Split(csv, ","))
}

// NormalizeBornAt converts any born_at variant to a UTC timestamp string of
// the form YYYY-MM-DDTHH:MM:SSZ. The second return is false when the field
// is absent or unparseable; a parse failure is logged, not surfaced.
func (t *Transformer) NormalizeBornAt(b model.BornAt) (string, bool) {
	if b.IsZero() {
		return "", false
	}

	if ts, ok := b.Time(); ok {
		t.bornAtNormalized.Add(1)
		return formatUTC(ts), true
	}

	raw, _ := b.String()
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	// Zoneless inputs are interpreted as UTC; zoned inputs are converted.
	parsed, err := dateparse.ParseIn(raw, time.UTC)
	if err != nil {
		t.errors.Add(1)
		t.logger.Warn().Str("born_at", raw).Err(err).Msg("Unparseable born_at, dropping value")
		return "", false
	}

	t.bornAtNormalized.Add(1)
	return formatUTC(parsed), true
}

// Counters returns a snapshot of the transformation counters.
func (t *Transformer) Counters() Counters {
	return Counters{
		FriendsNormalized: t.friendsNormalized.Load(),
		BornAtNormalized:  t.bornAtNormalized.Load(),
		Errors:            t.errors.Load(),
	}
}

// ResetCounters zeroes all counters.
func (t *Transformer) ResetCounters() {
	t.friendsNormalized.Store(0)
	t.bornAtNormalized.Store(0)
	t.errors.Store(0)
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// formatUTC renders a timestamp as YYYY-MM-DDTHH:MM:SSZ. RFC 3339 with a
// zero offset and truncated sub-second precision is exactly that shape.
func formatUTC(ts time.Time) string {
	return ts.UTC().Truncate(time.Second).Format(time.RFC3339)
}
