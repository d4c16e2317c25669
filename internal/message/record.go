package message

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Record is the wire shape of a message as served by the backend, delivered
// on the push channel and posted on durable writes.
type Record struct {
	ID        string `json:"id,omitempty"`
	MongoID   any    `json:"_id,omitempty"`
	WaID      string `json:"wa_id,omitempty"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Message   string `json:"message"`
	Type      string `json:"type,omitempty"`
	Timestamp any    `json:"timestamp,omitempty"`
	Status    string `json:"status,omitempty"`
	Name      string `json:"name,omitempty"`

	// Extra collects every field not listed above.
	Extra map[string]any `json:"-"`
}

var knownFields = map[string]struct{}{
	"id": {}, "_id": {}, "wa_id": {}, "from": {}, "to": {},
	"message": {}, "type": {}, "timestamp": {}, "status": {}, "name": {},
}

// ConversationKey returns the correspondent identifier: wa_id, else from,
// else to. It is empty when none is set.
func (r Record) ConversationKey() string {
	for _, k := range []string{r.WaID, r.From, r.To} {
		if k = strings.TrimSpace(k); k != "" {
			return k
		}
	}
	return ""
}

type recordAlias Record

// UnmarshalJSON decodes a record keeping numbers as json.Number and
// collecting unknown fields into Extra.
func (r *Record) UnmarshalJSON(data []byte) error {
	var all map[string]any
	if err := decodeNumbers(data, &all); err != nil {
		return err
	}
	if all == nil {
		return fmt.Errorf("message record: expected object")
	}

	var rec recordAlias
	rec.ID = stringField(all["id"])
	rec.MongoID = all["_id"]
	rec.WaID = stringField(all["wa_id"])
	rec.From = stringField(all["from"])
	rec.To = stringField(all["to"])
	rec.Message = stringField(all["message"])
	rec.Type = stringField(all["type"])
	rec.Timestamp = all["timestamp"]
	rec.Status = stringField(all["status"])
	rec.Name = stringField(all["name"])

	for k, v := range all {
		if _, ok := knownFields[k]; ok {
			continue
		}
		if rec.Extra == nil {
			rec.Extra = make(map[string]any)
		}
		rec.Extra[k] = v
	}
	*r = Record(rec)
	return nil
}

// MarshalJSON encodes the record with its Extra fields merged in.
func (r Record) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(recordAlias(r))
	if err != nil {
		return nil, err
	}
	if len(r.Extra) == 0 {
		return base, nil
	}
	var out map[string]any
	if err := decodeNumbers(base, &out); err != nil {
		return nil, err
	}
	for k, v := range r.Extra {
		if _, ok := knownFields[k]; ok {
			continue
		}
		out[k] = v
	}
	return json.Marshal(out)
}

// DecodeRecords decodes a JSON array of records. Elements that are not
// objects are skipped and counted instead of failing the whole batch.
func DecodeRecords(data []byte) (recs []Record, skipped int, err error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, 0, fmt.Errorf("decode records: %w", err)
	}
	recs = make([]Record, 0, len(raw))
	for _, item := range raw {
		var rec Record
		if err := json.Unmarshal(item, &rec); err != nil {
			skipped++
			continue
		}
		recs = append(recs, rec)
	}
	return recs, skipped, nil
}

func decodeNumbers(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// stringField renders scalar JSON values as strings. Objects and arrays
// yield "".
func stringField(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}
