package audit

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/geocoder89/authservice/internal/domain/activity"
)

var ErrInvalidPayload = errors.New("invalid audit payload")

// envelope versions the queued payload so the worker can reject shapes it
// does not understand.
type envelope struct {
	Version int          `json:"v"`
	Log     activity.Log `json:"log"`
}

const envelopeVersion = 1

func Encode(l activity.Log) ([]byte, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}

	b, err := json.Marshal(envelope{Version: envelopeVersion, Log: l})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	return b, nil
}

func Decode(b []byte) (activity.Log, error) {
	if len(b) == 0 {
		return activity.Log{}, ErrInvalidPayload
	}

	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return activity.Log{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	if env.Version != envelopeVersion {
		return activity.Log{}, fmt.Errorf("%w: unsupported version %d", ErrInvalidPayload, env.Version)
	}

	if err := env.Log.Validate(); err != nil {
		return activity.Log{}, err
	}

	return env.Log, nil
}
