package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/compeq-chat/backend/internal/model/chat"
	"github.com/zhouzirui/compeq-chat/backend/internal/service/ai"
	"github.com/zhouzirui/compeq-chat/backend/internal/service/assistant"
	chatservice "github.com/zhouzirui/compeq-chat/backend/internal/service/chat"
	"github.com/zhouzirui/compeq-chat/backend/internal/service/extract"
	"github.com/zhouzirui/compeq-chat/backend/internal/storage"
)

type echoModel struct {
	last []*schema.Message
}

func (m *echoModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.last = input
	return schema.AssistantMessage("echo: "+input[len(input)-1].Content, nil), nil
}

func (m *echoModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func setupRouter(t *testing.T, withModel bool) (*chi.Mux, *echoModel) {
	t.Helper()
	chats := chatservice.NewService(storage.NewMemoryStore(), nil)
	extractor := extract.New(extract.DefaultOptions(), nil)

	fake := &echoModel{}
	var llm assistant.Completer
	if withModel {
		svc, err := ai.NewService(context.Background(), fake, ai.Config{Model: "gpt-4o", MaxTokens: 1500, Window: ai.DefaultWindowOptions()}, nil)
		if err != nil {
			t.Fatalf("NewService err: %v", err)
		}
		llm = svc
	}

	handler := New(assistant.NewService(chats, extractor, llm, nil, nil), 1<<20, nil)
	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, fake
}

func do(r http.Handler, method, target string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func decodeList(t *testing.T, resp *httptest.ResponseRecorder) SessionList {
	t.Helper()
	var list SessionList
	if err := json.Unmarshal(resp.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode session list: %v (%s)", err, resp.Body.String())
	}
	return list
}

func TestListSessionsDefault(t *testing.T) {
	r, _ := setupRouter(t, true)

	resp := do(r, http.MethodGet, "/users/alice/sessions", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	list := decodeList(t, resp)
	if list.Active != chat.DefaultSessionName || len(list.Sessions) != 1 {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestSessionLifecycle(t *testing.T) {
	r, _ := setupRouter(t, true)

	resp := do(r, http.MethodPost, "/users/alice/sessions", `{"name":"工作"}`)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.Code)
	}
	if list := decodeList(t, resp); list.Active != "工作" {
		t.Fatalf("new session must become active, got %q", list.Active)
	}

	if resp := do(r, http.MethodPost, "/users/alice/sessions", `{"name":"工作"}`); resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate create, got %d", resp.Code)
	}
	if resp := do(r, http.MethodPost, "/users/alice/sessions", `{"name":"  "}`); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on blank name, got %d", resp.Code)
	}
	if resp := do(r, http.MethodPatch, "/users/alice/sessions/active", `{"name":"`+chat.DefaultSessionName+`"}`); resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 on rename collision, got %d", resp.Code)
	}

	resp = do(r, http.MethodPatch, "/users/alice/sessions/active", `{"name":"專案"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 on rename, got %d", resp.Code)
	}
	if list := decodeList(t, resp); list.Active != "專案" {
		t.Fatalf("rename must keep the session active, got %q", list.Active)
	}

	resp = do(r, http.MethodPut, "/users/alice/sessions/active", `{"name":"`+chat.DefaultSessionName+`"}`)
	if list := decodeList(t, resp); list.Active != chat.DefaultSessionName {
		t.Fatalf("select failed: %+v", list)
	}
	if resp := do(r, http.MethodPut, "/users/alice/sessions/active", `{"name":"missing"}`); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on unknown select, got %d", resp.Code)
	}

	resp = do(r, http.MethodDelete, "/users/alice/sessions/"+url.PathEscape("專案"), "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 on delete, got %d", resp.Code)
	}
	if list := decodeList(t, resp); len(list.Sessions) != 1 {
		t.Fatalf("unexpected sessions after delete: %+v", list)
	}
	if resp := do(r, http.MethodDelete, "/users/alice/sessions/missing", ""); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on unknown delete, got %d", resp.Code)
	}
}

func TestSessionNameWithPercentIsDecodedOnce(t *testing.T) {
	r, _ := setupRouter(t, true)

	for _, name := range []string{"a%41", "50% off", "a/b"} {
		if resp := do(r, http.MethodPost, "/users/alice/sessions", `{"name":"`+name+`"}`); resp.Code != http.StatusCreated {
			t.Fatalf("create %q: expected 201, got %d", name, resp.Code)
		}
		target := "/users/alice/sessions/" + url.PathEscape(name)
		if resp := do(r, http.MethodGet, target+"/turns", ""); resp.Code != http.StatusOK {
			t.Fatalf("turns of %q: expected 200, got %d (%s)", name, resp.Code, resp.Body.String())
		}
		resp := do(r, http.MethodDelete, target, "")
		if resp.Code != http.StatusOK {
			t.Fatalf("delete %q: expected 200, got %d (%s)", name, resp.Code, resp.Body.String())
		}
		for _, s := range decodeList(t, resp).Sessions {
			if s.Name == name {
				t.Fatalf("session %q still listed after delete", name)
			}
		}
	}
}

func TestInvalidUser(t *testing.T) {
	r, _ := setupRouter(t, true)
	if resp := do(r, http.MethodGet, "/users/.hidden/sessions", ""); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestAskJSONAppendsTurn(t *testing.T) {
	r, fake := setupRouter(t, true)

	resp := do(r, http.MethodPost, "/users/alice/chat", `{"prompt":"hi"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var answer assistant.Answer
	if err := json.Unmarshal(resp.Body.Bytes(), &answer); err != nil {
		t.Fatalf("decode answer: %v", err)
	}
	if answer.Turn.Answer != "echo: hi" || answer.Session != chat.DefaultSessionName {
		t.Fatalf("unexpected answer: %+v", answer)
	}
	if len(fake.last) != 1 {
		t.Fatalf("expected 1 outbound message, got %d", len(fake.last))
	}

	resp = do(r, http.MethodGet, "/users/alice/sessions/"+url.PathEscape(chat.DefaultSessionName)+"/turns", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "echo: hi") {
		t.Fatalf("turn not persisted: %s", resp.Body.String())
	}
}

func multipartAsk(t *testing.T, prompt, mediaType string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("prompt", prompt); err != nil {
		t.Fatalf("write field: %v", err)
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="upload"`)
	header.Set("Content-Type", mediaType)
	part, err := mw.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	part.Write(data)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/users/alice/chat", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestAskMultipartWithTextFile(t *testing.T) {
	r, fake := setupRouter(t, true)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, multipartAsk(t, "請看", "text/plain", []byte("檔案內容")))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	last := fake.last[len(fake.last)-1].Content
	if last != "請看\n\n以下是檔案內容：\n檔案內容" {
		t.Fatalf("unexpected outbound prompt: %q", last)
	}
}

func TestAskCorruptImageIs422(t *testing.T) {
	r, _ := setupRouter(t, true)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, multipartAsk(t, "看圖", "image/png", []byte("junk")))
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.Code)
	}
}

func TestAskWithoutModelIs503(t *testing.T) {
	r, _ := setupRouter(t, false)
	if resp := do(r, http.MethodPost, "/users/alice/chat", `{"prompt":"hi"}`); resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
	if resp := do(r, http.MethodGet, "/users/alice/sessions", ""); resp.Code != http.StatusOK {
		t.Fatalf("session management must work without a model, got %d", resp.Code)
	}
}

func TestAskEmptyPromptIs400(t *testing.T) {
	r, _ := setupRouter(t, true)
	if resp := do(r, http.MethodPost, "/users/alice/chat", `{"prompt":""}`); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if resp := do(r, http.MethodPost, "/users/alice/chat", `{not json`); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on malformed body, got %d", resp.Code)
	}
}

func TestPreviewMissing(t *testing.T) {
	r, _ := setupRouter(t, true)
	if resp := do(r, http.MethodGet, "/previews/nope", ""); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		chatservice.ErrNameCollision:               http.StatusConflict,
		chatservice.ErrSessionNotFound:             http.StatusNotFound,
		assistant.ErrModelOffline:                  http.StatusServiceUnavailable,
		&extract.DecodeError{Err: errors.New("x")}: http.StatusUnprocessableEntity,
		&http.MaxBytesError{Limit: 1}:              http.StatusRequestEntityTooLarge,
		errors.New("boom"):                         http.StatusInternalServerError,
	}
	for err, want := range cases {
		if got := StatusFor(err); got != want {
			t.Fatalf("StatusFor(%v) = %d, want %d", err, got, want)
		}
	}
}
