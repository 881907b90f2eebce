// Package model defines the canonical Animal record and the permissive
// union types used to decode the heterogeneous shapes the upstream API
// returns for the friends and born_at fields.
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Common validation errors.
var (
	ErrMissingID   = fmt.Errorf("animal: missing id")
	ErrMissingName = fmt.Errorf("animal: missing name")
)

// Animal is one record flowing through the pipeline. Unknown fields from the
// source are preserved in Extra and re-emitted unchanged on marshal.
// Transformation produces a new Animal rather than mutating in place.
type Animal struct {
	ID      int64
	Name    string
	Friends Friends
	BornAt  BornAt
	Extra   map[string]json.RawMessage
}

// Validate checks the Animal invariants: identity and name must be present.
func (a Animal) Validate() error {
	if a.ID == 0 {
		return ErrMissingID
	}
	if a.Name == "" {
		return ErrMissingName
	}
	return nil
}

// UnmarshalJSON decodes a raw API record. The id may arrive as a JSON number
// or a numeric string; friends and born_at are decoded permissively into
// their union types; every other field is kept opaquely in Extra.
func (a *Animal) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("animal: decode object: %w", err)
	}

	out := Animal{}
	for key, raw := range fields {
		switch key {
		case "id":
			id, err := decodeID(raw)
			if err != nil {
				return err
			}
			out.ID = id
		case "name":
			if err := json.Unmarshal(raw, &out.Name); err != nil {
				return fmt.Errorf("animal: decode name: %w", err)
			}
		case "friends":
			if err := out.Friends.UnmarshalJSON(raw); err != nil {
				return err
			}
		case "born_at":
			if err := out.BornAt.UnmarshalJSON(raw); err != nil {
				return err
			}
		default:
			if out.Extra == nil {
				out.Extra = make(map[string]json.RawMessage)
			}
			out.Extra[key] = raw
		}
	}

	*a = out
	return nil
}

// MarshalJSON emits the record in the shape the home endpoint expects.
// Extra fields pass through unmodified.
func (a Animal) MarshalJSON() ([]byte, error) {
	fields := make(map[string]json.RawMessage, len(a.Extra)+4)
	for key, raw := range a.Extra {
		fields[key] = raw
	}

	var err error
	if fields["id"], err = json.Marshal(a.ID); err != nil {
		return nil, err
	}
	if fields["name"], err = json.Marshal(a.Name); err != nil {
		return nil, err
	}
	if fields["friends"], err = a.Friends.MarshalJSON(); err != nil {
		return nil, err
	}
	if fields["born_at"], err = a.BornAt.MarshalJSON(); err != nil {
		return nil, err
	}

	return json.Marshal(fields)
}

// CloneExtra returns an independent copy of the opaque passthrough fields,
// so a transformed record never aliases the original's map.
func (a Animal) CloneExtra() map[string]json.RawMessage {
	if a.Extra == nil {
		return nil
	}
	out := make(map[string]json.RawMessage, len(a.Extra))
	for k, v := range a.Extra {
		out[k] = v
	}
	return out
}

func decodeID(raw json.RawMessage) (int64, error) {
	var id int64
	if err := json.Unmarshal(raw, &id); err == nil {
		return id, nil
	}
	// Some sources quote numeric ids.
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if _, err := fmt.Sscan(s, &id); err == nil {
			return id, nil
		}
	}
	return 0, fmt.Errorf("animal: id is not numeric: %s", raw)
}

type friendsKind int

const (
	friendsAbsent friendsKind = iota
	friendsCSV
	friendsList
)

// Friends is the union type for the friends field: the API returns either a
// CSV string or a list of strings. The zero value is the empty sequence.
type Friends struct {
	kind friendsKind
	csv  string
	list []string
}

// NewFriendsCSV builds the CSV string variant.
func NewFriendsCSV(s string) Friends {
	return Friends{kind: friendsCSV, csv: s}
}

// NewFriendsList builds the list variant.
func NewFriendsList(values []string) Friends {
	return Friends{kind: friendsList, list: values}
}

// IsZero reports whether no value was present in the source.
func (f Friends) IsZero() bool { return f.kind == friendsAbsent }

// CSV returns the raw CSV string when that variant was decoded.
func (f Friends) CSV() (string, bool) { return f.csv, f.kind == friendsCSV }

// List returns the decoded list when that variant was decoded.
func (f Friends) List() ([]string, bool) { return f.list, f.kind == friendsList }

// UnmarshalJSON accepts null, a string, an array of strings, or an array of
// arbitrary values (stringified element-wise). Any other scalar is
// stringified and treated as CSV.
func (f *Friends) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = Friends{}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = Friends{kind: friendsCSV, csv: s}
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*f = Friends{kind: friendsList, list: list}
		return nil
	}

	var anyList []any
	if err := json.Unmarshal(data, &anyList); err == nil {
		values := make([]string, 0, len(anyList))
		for _, v := range anyList {
			if v == nil {
				continue
			}
			values = append(values, fmt.Sprint(v))
		}
		*f = Friends{kind: friendsList, list: values}
		return nil
	}

	// Scalar of some other type: stringify and let the CSV rule apply.
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("animal: decode friends: %w", err)
	}
	*f = Friends{kind: friendsCSV, csv: fmt.Sprint(v)}
	return nil
}

// MarshalJSON always emits a JSON array; the absent variant marshals as the
// empty sequence and the CSV variant as a single-element array holding the
// raw string (normalization happens in the transformer, not here).
func (f Friends) MarshalJSON() ([]byte, error) {
	switch f.kind {
	case friendsList:
		if f.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(f.list)
	case friendsCSV:
		return json.Marshal([]string{f.csv})
	default:
		return []byte("[]"), nil
	}
}

type bornAtKind int

const (
	bornAtAbsent bornAtKind = iota
	bornAtString
	bornAtTime
)

// BornAt is the union type for the born_at field: absent, a free-form
// datetime string, or a timestamp. The zero value is absent.
type BornAt struct {
	kind bornAtKind
	str  string
	ts   time.Time
}

// NewBornAtString builds the string variant.
func NewBornAtString(s string) BornAt {
	return BornAt{kind: bornAtString, str: s}
}

// NewBornAtTime builds the timestamp variant.
func NewBornAtTime(t time.Time) BornAt {
	return BornAt{kind: bornAtTime, ts: t}
}

// IsZero reports whether the field was absent or null.
func (b BornAt) IsZero() bool { return b.kind == bornAtAbsent }

// String returns the raw string when that variant was decoded.
func (b BornAt) String() (string, bool) { return b.str, b.kind == bornAtString }

// Time returns the timestamp when that variant was decoded.
func (b BornAt) Time() (time.Time, bool) { return b.ts, b.kind == bornAtTime }

// UnmarshalJSON accepts null, a string, or a numeric epoch timestamp
// (seconds, or milliseconds for large values).
func (b *BornAt) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*b = BornAt{}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*b = BornAt{kind: bornAtString, str: s}
		return nil
	}

	var epoch int64
	if err := json.Unmarshal(data, &epoch); err == nil {
		*b = BornAt{kind: bornAtTime, ts: epochToTime(epoch)}
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*b = BornAt{kind: bornAtTime, ts: epochToTime(int64(f))}
		return nil
	}

	return fmt.Errorf("animal: decode born_at: unsupported value %s", data)
}

// MarshalJSON emits null when absent, the string as-is, or the timestamp
// formatted as UTC RFC 3339.
func (b BornAt) MarshalJSON() ([]byte, error) {
	switch b.kind {
	case bornAtString:
		return json.Marshal(b.str)
	case bornAtTime:
		return json.Marshal(b.ts.UTC().Format(time.RFC3339))
	default:
		return []byte("null"), nil
	}
}

// epochToTime treats implausibly large second counts as millisecond
// precision.
func epochToTime(v int64) time.Time {
	const msThreshold = int64(1) << 37 // ~year 6325 when read as seconds
	if v > msThreshold {
		return time.UnixMilli(v).UTC()
	}
	return time.Unix(v, 0).UTC()
}
