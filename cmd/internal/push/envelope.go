package push

import (
	"encoding/json"
	"time"

	"tether/cmd/internal/ids"
	v1 "tether/shared/contracts/pairing/v1"
)

// newEnvelope wraps a payload in a v1 envelope with a fresh ULID id.
// Marshal failures cannot happen for contract payload types; the error
// branch exists to keep the fallback explicit.
func newEnvelope(typ string, payload any, now time.Time) v1.Envelope {
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = []byte(`{}`)
	}

	id, err := ids.NewULID(now)
	if err != nil {
		id = ids.RandomToken(10)
	}

	return v1.Envelope{
		V:       v1.Version,
		Type:    typ,
		ID:      id,
		TS:      now,
		Payload: raw,
	}
}
