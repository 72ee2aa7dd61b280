package store

import (
	"testing"
	"time"
)

func TestRecordIDFormat(t *testing.T) {
	at := time.Unix(1712345678, 0)
	if got := RecordID("img", at); got != "img_1712345678" {
		t.Fatalf("RecordID = %q", got)
	}
	if got := RecordID("doc", at); got != "doc_1712345678" {
		t.Fatalf("RecordID = %q", got)
	}
}

func TestToJSONDefaultsToEmptyObject(t *testing.T) {
	if got := string(toJSON(nil)); got != "{}" {
		t.Fatalf("toJSON(nil) = %q", got)
	}
	if got := string(toJSON(map[string]any{})); got != "{}" {
		t.Fatalf("toJSON(empty) = %q", got)
	}
	if got := string(toJSON(map[string]any{"width": 640})); got != `{"width":640}` {
		t.Fatalf("toJSON = %q", got)
	}
}
