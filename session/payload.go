package session

import (
	"fmt"

	"github.com/tidwall/sjson"
)

// ContinuePayload threads the stored continuation cursor into an otherwise
// opaque continue-request payload. The payload shape belongs to the
// upstream provider and changes without notice, so fields are patched in
// place rather than modelled as a struct.
func ContinuePayload(base []byte, message, parentResponseID string) ([]byte, error) {
	if len(base) == 0 {
		base = []byte(`{}`)
	}

	out, err := sjson.SetBytes(base, "message", message)
	if err != nil {
		return nil, fmt.Errorf("set message: %w", err)
	}

	if parentResponseID != "" {
		out, err = sjson.SetBytes(out, "parentResponseId", parentResponseID)
		if err != nil {
			return nil, fmt.Errorf("set parent response id: %w", err)
		}
	}

	return out, nil
}
