package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/errors"
)

type botCall struct {
	method string
	body   map[string]interface{}
}

// fakeBotAPI отвечает заранее заданными ответами по имени метода.
type fakeBotAPI struct {
	mu        sync.Mutex
	calls     []botCall
	responses map[string]string
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	raw, _ := io.ReadAll(r.Body)
	var body map[string]interface{}
	_ = json.Unmarshal(raw, &body)

	f.mu.Lock()
	f.calls = append(f.calls, botCall{method: method, body: body})
	resp, ok := f.responses[method]
	f.mu.Unlock()

	if !ok {
		resp = `{"ok":true,"result":true}`
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(resp))
}

func (f *fakeBotAPI) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var res []string
	for _, c := range f.calls {
		res = append(res, c.method)
	}
	return res
}

func newTestService(t *testing.T, responses map[string]string) (*Service, *fakeBotAPI) {
	t.Helper()
	api := &fakeBotAPI{responses: responses}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return NewServiceWithBaseURL(srv.URL+"/", "TOKEN", 0, zap.NewNop()), api
}

func TestSendMessageEx_ReturnsMessageID(t *testing.T) {
	svc, api := newTestService(t, map[string]string{
		"sendMessage": `{"ok":true,"result":{"message_id":321}}`,
	})

	keyboard := [][]InlineKeyboardButton{{{Text: "✅", CallbackData: "order:1:paid"}}}
	id, err := svc.SendMessageEx(context.Background(), -100, "<b>hi</b>", WithHTML(), WithKeyboard(keyboard))
	require.NoError(t, err)
	assert.Equal(t, 321, id)

	require.Len(t, api.calls, 1)
	body := api.calls[0].body
	assert.Equal(t, "HTML", body["parse_mode"])
	assert.Equal(t, float64(-100), body["chat_id"])
	markup := body["reply_markup"].(map[string]interface{})
	assert.Len(t, markup["inline_keyboard"], 1)
}

func TestEditMessageText_NotModifiedIsSuccess(t *testing.T) {
	svc, _ := newTestService(t, map[string]string{
		"editMessageText": `{"ok":false,"error_code":400,"description":"Bad Request: message is not modified"}`,
	})

	assert.NoError(t, svc.EditMessageText(context.Background(), 1, 2, "same"))
}

func TestEditMessageText_GoneTargets(t *testing.T) {
	testCases := []struct {
		name     string
		response string
		gone     bool
	}{
		{name: "удалено", response: `{"ok":false,"error_code":400,"description":"Bad Request: message to edit not found"}`, gone: true},
		{name: "бот заблокирован", response: `{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`, gone: true},
		{name: "лимит", response: `{"ok":false,"error_code":429,"description":"Too Many Requests: retry after 5"}`, gone: false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _ := newTestService(t, map[string]string{"editMessageText": tc.response})

			err := svc.EditMessageText(context.Background(), 1, 2, "text")
			require.Error(t, err)
			assert.Equal(t, tc.gone, errors.Is(err, apperrors.ErrTargetGone))

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, "editMessageText", apiErr.Method)
		})
	}
}

func TestEditOrSendMessage_FallsBackToSend(t *testing.T) {
	svc, api := newTestService(t, map[string]string{
		"editMessageText": `{"ok":false,"error_code":400,"description":"Bad Request: message to edit not found"}`,
		"sendMessage":     `{"ok":true,"result":{"message_id":77}}`,
	})

	id, err := svc.EditOrSendMessage(context.Background(), 1, 5, "text")
	require.NoError(t, err)
	assert.Equal(t, 77, id)
	assert.Equal(t, []string{"editMessageText", "sendMessage"}, api.methods())

	id, err = svc.EditOrSendMessage(context.Background(), 1, 0, "text")
	require.NoError(t, err)
	assert.Equal(t, 77, id)
	assert.Equal(t, "sendMessage", api.methods()[2])
}

func TestAnswerCallbackQuery(t *testing.T) {
	svc, api := newTestService(t, nil)

	require.NoError(t, svc.AnswerCallbackQuery(context.Background(), "q1", "⚠️", true))
	assert.Equal(t, "q1", api.calls[0].body["callback_query_id"])
	assert.Equal(t, true, api.calls[0].body["show_alert"])

	assert.Error(t, svc.AnswerCallbackQuery(context.Background(), "", "x", false))
}

func TestSendRequest_WithoutToken(t *testing.T) {
	svc := NewServiceWithBaseURL("http://127.0.0.1:1", "", 0, zap.NewNop())
	_, err := svc.SendMessageEx(context.Background(), 1, "x")
	assert.Error(t, err)
}

func TestResolveOptions(t *testing.T) {
	parseMode, keyboard := ResolveOptions(WithHTML(), WithKeyboard(nil))
	assert.Equal(t, "HTML", parseMode)
	assert.Nil(t, keyboard)

	rows := [][]InlineKeyboardButton{{{Text: "a", CallbackData: "b"}}}
	_, keyboard = ResolveOptions(WithKeyboard(rows))
	assert.Equal(t, rows, keyboard)
}

func TestEscapeHTML(t *testing.T) {
	assert.Equal(t, "a &lt;b&gt; &amp; c", EscapeHTML("a <b> & c"))
}
