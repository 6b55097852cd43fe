package achievement

import (
	"bytes"
	"encoding/json"
)

// ParseUpdates converts a backend user-updates fragment into a Patch. The
// fragment is a flat JSON object mixing well-known fields with currency
// amounts, e.g. {"experience":105,"arenaGold":50}. The "level" key is
// discarded because level is derived, and values that are not whole numbers
// are skipped; award-signal inspection must never fail on a malformed
// fragment, so this function reports ok=false instead of returning an error.
func ParseUpdates(raw json.RawMessage) (Patch, bool) {
	if len(raw) == 0 {
		return Patch{}, false
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var fields map[string]json.RawMessage
	if err := decoder.Decode(&fields); err != nil {
		return Patch{}, false
	}

	var patch Patch
	for name, value := range fields {
		switch name {
		case "experience":
			if n, ok := decodeInt(value); ok {
				patch.Experience = &n
			}
		case "pendingAwardCount":
			if n, ok := decodeInt(value); ok {
				patch.PendingAwardCount = &n
			}
		case "completed":
			var records []CompletionRecord
			if err := json.Unmarshal(value, &records); err == nil && len(records) > 0 {
				patch.Completed = records
			}
		case "level":
			// Derived field; the backend may echo it but the engine owns it.
		default:
			if n, ok := decodeInt(value); ok {
				if patch.Currencies == nil {
					patch.Currencies = make(map[string]int)
				}
				patch.Currencies[name] = n
			}
		}
	}

	return patch, !patch.IsZero()
}

func decodeInt(raw json.RawMessage) (int, bool) {
	var number json.Number
	if err := json.Unmarshal(raw, &number); err != nil {
		return 0, false
	}
	value, err := number.Int64()
	if err != nil {
		return 0, false
	}
	return int(value), true
}
