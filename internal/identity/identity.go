// Package identity resolves the deduplication key of a message record.
package identity

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/matheus3301/wachat/internal/message"
)

// prefixRunes is how much of the body goes into a synthesized key.
const prefixRunes = 10

// Key returns the identity key of rec: the server id, else the persisted
// _id in string form, else a composite of conversation key, raw timestamp
// and body prefix. Two distinct messages with the same composite collide.
func Key(rec message.Record) string {
	if id := strings.TrimSpace(rec.ID); id != "" {
		return rec.ID
	}
	if id := secondary(rec.MongoID); id != "" {
		return id
	}
	return composite(rec.ConversationKey(), Raw(rec.Timestamp), rec.Message)
}

// Explicit reports whether rec carries a server id or a persisted _id.
func Explicit(rec message.Record) bool {
	return strings.TrimSpace(rec.ID) != "" || secondary(rec.MongoID) != ""
}

// Local returns the key of a locally-originated message sent at unixSeconds.
// It matches what Key yields for the same record echoed back without an id.
func Local(conversationKey string, unixSeconds int64, body string) string {
	return composite(conversationKey, strconv.FormatInt(unixSeconds, 10), body)
}

func composite(key, rawTS, body string) string {
	r := []rune(body)
	if len(r) > prefixRunes {
		r = r[:prefixRunes]
	}
	return key + "-" + rawTS + "-" + string(r)
}

// secondary renders the persisted _id. Mongo extended JSON {"$oid": "..."}
// is unwrapped.
func secondary(v any) string {
	if m, ok := v.(map[string]any); ok {
		if oid, ok := m["$oid"]; ok {
			return secondary(oid)
		}
		return ""
	}
	return strings.TrimSpace(Raw(v))
}

// Raw renders a raw timestamp (or any scalar) canonically, so the same
// value decoded from different payloads yields the same text.
func Raw(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case int:
		return strconv.FormatInt(int64(t), 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint:
		return strconv.FormatUint(uint64(t), 10)
	case uint32:
		return strconv.FormatUint(uint64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float32:
		return formatFloat(float64(t))
	case float64:
		return formatFloat(t)
	case bool:
		return strconv.FormatBool(t)
	case fmt.Stringer:
		return t.String()
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
