// ABOUTME: Versioned CBOR codec for persisted records
// ABOUTME: Wraps each record in a {v, d} envelope and decodes via a per-version table

package record

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Current schema versions. UserState version 1 is the pre-session shape
// still present in old stores; see legacy.go.
const (
	UserStateVersion   = 2
	PublicStatsVersion = 1
)

// EncodeError is returned when a record cannot be serialized.
type EncodeError struct {
	Record string
	Err    error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encoding %s record: %v", e.Record, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// DecodeError is returned when stored bytes do not decode into the expected
// record shape. A corrupt record is not a recoverable business condition;
// callers surface it rather than papering over it.
type DecodeError struct {
	Record  string
	Version uint64
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Version > 0 {
		return fmt.Sprintf("decoding %s record (schema v%d): %v", e.Record, e.Version, e.Err)
	}
	return fmt.Sprintf("decoding %s record: %v", e.Record, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// envelope carries the schema version alongside the record body so that
// incompatible shape changes are detected instead of misdecoded.
type envelope struct {
	Version uint64          `cbor:"v"`
	Data    cbor.RawMessage `cbor:"d"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("record: building CBOR encode mode: %v", err))
	}
	decMode, err = cbor.DecOptions{DupMapKey: cbor.DupMapKeyEnforcedAPF}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("record: building CBOR decode mode: %v", err))
	}
}

func encodeEnvelope(name string, version uint64, v any) ([]byte, error) {
	body, err := encMode.Marshal(v)
	if err != nil {
		return nil, &EncodeError{Record: name, Err: err}
	}
	data, err := encMode.Marshal(envelope{Version: version, Data: body})
	if err != nil {
		return nil, &EncodeError{Record: name, Err: err}
	}
	return data, nil
}

func decodeEnvelope(name string, data []byte) (*envelope, error) {
	var env envelope
	if err := decMode.Unmarshal(data, &env); err != nil {
		return nil, &DecodeError{Record: name, Err: err}
	}
	if env.Version == 0 {
		return nil, &DecodeError{Record: name, Err: errors.New("missing schema version tag")}
	}
	if len(env.Data) == 0 {
		return nil, &DecodeError{Record: name, Version: env.Version, Err: errors.New("empty record body")}
	}
	return &env, nil
}

// EncodeUserState serializes a UserState at the current schema version.
func EncodeUserState(state *UserState) ([]byte, error) {
	if err := state.Validate(); err != nil {
		return nil, &EncodeError{Record: "user state", Err: err}
	}
	return encodeEnvelope("user state", UserStateVersion, state)
}

// DecodeUserState deserializes a UserState, dispatching on the stored schema
// version. Version-1 records are converted through UpgradeUserState.
func DecodeUserState(data []byte) (*UserState, error) {
	env, err := decodeEnvelope("user state", data)
	if err != nil {
		return nil, err
	}

	switch env.Version {
	case UserStateVersion:
		var state UserState
		if err := decMode.Unmarshal(env.Data, &state); err != nil {
			return nil, &DecodeError{Record: "user state", Version: env.Version, Err: err}
		}
		if err := state.Validate(); err != nil {
			return nil, &DecodeError{Record: "user state", Version: env.Version, Err: err}
		}
		return &state, nil
	case 1:
		var legacy LegacyUserState
		if err := decMode.Unmarshal(env.Data, &legacy); err != nil {
			return nil, &DecodeError{Record: "user state", Version: env.Version, Err: err}
		}
		return UpgradeUserState(&legacy), nil
	default:
		return nil, &DecodeError{
			Record:  "user state",
			Version: env.Version,
			Err:     fmt.Errorf("unsupported schema version (max %d)", UserStateVersion),
		}
	}
}

// EncodePublicStats serializes the global statistics record.
func EncodePublicStats(stats *PublicStats) ([]byte, error) {
	if err := stats.Validate(); err != nil {
		return nil, &EncodeError{Record: "public stats", Err: err}
	}
	return encodeEnvelope("public stats", PublicStatsVersion, stats)
}

// DecodePublicStats deserializes the global statistics record.
func DecodePublicStats(data []byte) (*PublicStats, error) {
	env, err := decodeEnvelope("public stats", data)
	if err != nil {
		return nil, err
	}
	if env.Version != PublicStatsVersion {
		return nil, &DecodeError{
			Record:  "public stats",
			Version: env.Version,
			Err:     fmt.Errorf("unsupported schema version (max %d)", PublicStatsVersion),
		}
	}

	var stats PublicStats
	if err := decMode.Unmarshal(env.Data, &stats); err != nil {
		return nil, &DecodeError{Record: "public stats", Version: env.Version, Err: err}
	}
	if err := stats.Validate(); err != nil {
		return nil, &DecodeError{Record: "public stats", Version: env.Version, Err: err}
	}
	return &stats, nil
}
