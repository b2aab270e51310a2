package utils

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSendSSEEventWritesFrame(t *testing.T) {
	rec := httptest.NewRecorder()
	SetupSSEHeaders(rec)

	SendSSEEvent(rec, rec, "message", map[string]string{"answer": "hi"})

	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("unexpected content type: %s", got)
	}
	body := rec.Body.String()
	if !strings.HasPrefix(body, "event: message\ndata: ") {
		t.Fatalf("unexpected frame: %q", body)
	}
	if !strings.HasSuffix(body, "\n\n") {
		t.Fatalf("frame must end with a blank line: %q", body)
	}
	if !strings.Contains(body, `"answer":"hi"`) {
		t.Fatalf("frame missing payload: %q", body)
	}
}
