package message

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/matheus3301/wachat/internal/timestamp"
)

func TestConversationKey(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		want string
	}{
		{"wa_id wins", Record{WaID: "A", From: "B", To: "C"}, "A"},
		{"from fallback", Record{From: "B", To: "C"}, "B"},
		{"to fallback", Record{To: "C"}, "C"},
		{"blank wa_id ignored", Record{WaID: "  ", From: "B"}, "B"},
		{"none", Record{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rec.ConversationKey(); got != tt.want {
				t.Errorf("ConversationKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRecordUnmarshalKeepsExtraAndNumbers(t *testing.T) {
	data := []byte(`{"id":"m1","wa_id":"A","message":"hi","timestamp":1000,"status":"sent","meta_msg_id":"wamid.1","conversation":{"origin":"user"}}`)
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatal(err)
	}
	if rec.ID != "m1" || rec.WaID != "A" || rec.Message != "hi" {
		t.Errorf("unexpected record %+v", rec)
	}
	if n, ok := rec.Timestamp.(json.Number); !ok || n.String() != "1000" {
		t.Errorf("timestamp = %#v, want json.Number(1000)", rec.Timestamp)
	}
	if rec.Extra["meta_msg_id"] != "wamid.1" {
		t.Errorf("extra meta_msg_id = %v", rec.Extra["meta_msg_id"])
	}
	conv, ok := rec.Extra["conversation"].(map[string]any)
	if !ok || conv["origin"] != "user" {
		t.Errorf("extra conversation = %#v", rec.Extra["conversation"])
	}

	out, err := json.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}
	var back map[string]any
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatal(err)
	}
	if back["meta_msg_id"] != "wamid.1" {
		t.Errorf("marshal dropped extra field: %s", out)
	}
	if back["timestamp"] != float64(1000) {
		t.Errorf("timestamp round trip = %v", back["timestamp"])
	}
}

func TestDecodeRecordsSkipsMalformedElements(t *testing.T) {
	recs, skipped, err := DecodeRecords([]byte(`[{"id":"a","wa_id":"A"}, 42, null, {"id":"b","wa_id":"B"}]`))
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 || skipped != 2 {
		t.Fatalf("got %d records, %d skipped; want 2 and 2", len(recs), skipped)
	}

	if _, _, err := DecodeRecords([]byte(`{"not":"an array"}`)); err == nil {
		t.Error("expected error for non-array payload")
	}
}

func TestFromRecordAndBack(t *testing.T) {
	rec := Record{
		ID: "m1", WaID: "A", From: "A", To: "P", Message: "hello", Type: "text",
		Timestamp: json.Number("1700000000"), Status: "delivered", Name: " Ravi ",
		Extra: map[string]any{"meta": map[string]any{"k": "v"}},
	}
	m := FromRecord(rec, "m1", SourceBulk)
	if m.ConversationKey != "A" {
		t.Errorf("ConversationKey = %q", m.ConversationKey)
	}
	if m.Timestamp != timestamp.Millis(1700000000000) {
		t.Errorf("Timestamp = %v", m.Timestamp)
	}
	if m.ContentType != TypeText {
		t.Errorf("ContentType = %q, want text", m.ContentType)
	}
	if m.SenderDisplayName != "Ravi" {
		t.Errorf("SenderDisplayName = %q", m.SenderDisplayName)
	}

	back := m.Record()
	back.Name = rec.Name
	if !reflect.DeepEqual(back, rec) {
		t.Errorf("Record() = %+v, want %+v", back, rec)
	}
}

func TestCloneIsDeep(t *testing.T) {
	m := Message{ID: "x", Extra: map[string]any{"nested": map[string]any{"a": "1"}, "list": []any{"x"}}}
	c := m.Clone()
	c.Extra["nested"].(map[string]any)["a"] = "2"
	c.Extra["list"].([]any)[0] = "y"
	if m.Extra["nested"].(map[string]any)["a"] != "1" {
		t.Error("Clone shares nested map")
	}
	if m.Extra["list"].([]any)[0] != "x" {
		t.Error("Clone shares nested slice")
	}
}

func TestPreview(t *testing.T) {
	long := "abcdefghijklmnopqrstuvwxyzabcdefghijklmnopqrstuvwxyz"
	tests := []struct {
		name string
		m    Message
		want string
	}{
		{"text", Message{Body: "hi"}, "hi"},
		{"image", Message{ContentType: TypeImage, Body: "ignored"}, "📷 Photo"},
		{"video", Message{ContentType: TypeVideo}, "🎥 Video"},
		{"document", Message{ContentType: TypeDocument}, "📄 Document"},
		{"truncated", Message{Body: long}, long[:40] + "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Preview(tt.m, 40); got != tt.want {
				t.Errorf("Preview() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInitials(t *testing.T) {
	if got := Initials("Ravi Kumar Singh"); got != "RK" {
		t.Errorf("Initials = %q, want RK", got)
	}
	if got := Initials(""); got != "" {
		t.Errorf("Initials(empty) = %q", got)
	}
}

func TestIsOwn(t *testing.T) {
	m := Message{From: "919999999999"}
	if !m.IsOwn("919999999999") {
		t.Error("IsOwn = false for platform sender")
	}
	if m.IsOwn("") {
		t.Error("IsOwn = true with empty platform id")
	}
}
