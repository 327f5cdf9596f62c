package telegram

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/starford/tgvault/internal/models"
)

func TestToIncoming_Text(t *testing.T) {
	m := &tgbotapi.Message{
		MessageID: 7,
		Date:      1704164645,
		Chat:      &tgbotapi.Chat{ID: -100, Title: "Reading List", Type: "supergroup"},
		From:      &tgbotapi.User{UserName: "alice"},
		Text:      "Go tips #golang",
	}
	msg, ok := ToIncoming(m)
	if !ok {
		t.Fatal("expected message to convert")
	}
	if msg.ID != 7 || msg.ChatID != -100 {
		t.Errorf("ids = %d/%d", msg.ID, msg.ChatID)
	}
	if msg.ChatName != "Reading List" || msg.Sender != "alice" {
		t.Errorf("names = %q/%q", msg.ChatName, msg.Sender)
	}
	if !msg.Date.Equal(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Errorf("date = %v", msg.Date)
	}
	tc, ok := msg.Content.(models.TextContent)
	if !ok || tc.Text != "Go tips #golang" {
		t.Errorf("content = %#v", msg.Content)
	}
}

func TestToIncoming_PhotoKeepsAllSizes(t *testing.T) {
	m := &tgbotapi.Message{
		Chat:    &tgbotapi.Chat{ID: 1, UserName: "bob"},
		Caption: "sunset",
		Photo: []tgbotapi.PhotoSize{
			{FileID: "small"}, {FileID: "large"},
		},
	}
	msg, ok := ToIncoming(m)
	if !ok {
		t.Fatal("expected message to convert")
	}
	pc, ok := msg.Content.(models.PhotoContent)
	if !ok {
		t.Fatalf("content = %#v", msg.Content)
	}
	if pc.Caption != "sunset" || len(pc.Photos) != 2 || pc.Photos[1].FileID != "large" {
		t.Errorf("photo content = %#v", pc)
	}
	if msg.ChatName != "bob" || msg.Sender != "bob" {
		t.Errorf("names = %q/%q", msg.ChatName, msg.Sender)
	}
}

func TestToIncoming_Document(t *testing.T) {
	m := &tgbotapi.Message{
		Chat:       &tgbotapi.Chat{ID: 1, Title: "News"},
		SenderChat: &tgbotapi.Chat{Title: "News Channel"},
		Document:   &tgbotapi.Document{FileID: "doc", FileName: "report.pdf", MimeType: "application/pdf"},
	}
	msg, ok := ToIncoming(m)
	if !ok {
		t.Fatal("expected message to convert")
	}
	dc, ok := msg.Content.(models.DocumentContent)
	if !ok {
		t.Fatalf("content = %#v", msg.Content)
	}
	if dc.Document.FileName != "report.pdf" || dc.Document.MimeType != "application/pdf" {
		t.Errorf("document = %#v", dc.Document)
	}
	if msg.Sender != "News Channel" {
		t.Errorf("sender = %q", msg.Sender)
	}
}

func TestToIncoming_Rejects(t *testing.T) {
	cases := map[string]*tgbotapi.Message{
		"nil":     nil,
		"no chat": {Text: "hi"},
		"empty":   {Chat: &tgbotapi.Chat{ID: 1}},
		"blank":   {Chat: &tgbotapi.Chat{ID: 1}, Text: "   "},
		"sticker": {Chat: &tgbotapi.Chat{ID: 1}, Sticker: &tgbotapi.Sticker{FileID: "s"}},
	}
	for name, m := range cases {
		if _, ok := ToIncoming(m); ok {
			t.Errorf("%s: expected rejection", name)
		}
	}
}

func TestFileURL(t *testing.T) {
	got := FileURL("https://api.telegram.org/file/", "123:abc", "/photos/file_1.jpg")
	want := "https://api.telegram.org/file/bot123:abc/photos/file_1.jpg"
	if got != want {
		t.Errorf("FileURL = %q, want %q", got, want)
	}
}

// fakeBotAPI answers the handful of Bot API methods the bridge calls.
type fakeBotAPI struct {
	mu   sync.Mutex
	sent []url.Values
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	form, _ := url.ParseQuery(string(body))
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/getMe"):
		_, _ = io.WriteString(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"vault","username":"vault_bot"}}`)
	case strings.HasSuffix(r.URL.Path, "/getFile"):
		if form.Get("file_id") == "missing" {
			_, _ = io.WriteString(w, `{"ok":false,"error_code":400,"description":"Bad Request: invalid file_id"}`)
			return
		}
		_, _ = io.WriteString(w, `{"ok":true,"result":{"file_id":"`+form.Get("file_id")+`","file_path":"photos/file_9.jpg"}}`)
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		f.mu.Lock()
		f.sent = append(f.sent, form)
		f.mu.Unlock()
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":99,"date":0,"chat":{"id":42,"type":"private"}}}`)
	default:
		http.NotFound(w, r)
	}
}

func newTestBot(t *testing.T) (*Bot, *fakeBotAPI) {
	t.Helper()
	fake := &fakeBotAPI{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	bot, err := New(Config{
		Token:       "TOKEN",
		APIEndpoint: srv.URL + "/bot%s/%s",
		FileServer:  "https://files.example.test",
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return bot, fake
}

func TestNew_RequiresToken(t *testing.T) {
	if _, err := New(Config{}, nil); err == nil {
		t.Fatal("expected error for empty token")
	}
}

func TestBot_ResolveFile(t *testing.T) {
	bot, _ := newTestBot(t)

	got, err := bot.ResolveFile(context.Background(), "abc")
	if err != nil {
		t.Fatalf("ResolveFile: %v", err)
	}
	if want := "https://files.example.test/botTOKEN/photos/file_9.jpg"; got != want {
		t.Errorf("url = %q, want %q", got, want)
	}

	if _, err := bot.ResolveFile(context.Background(), "missing"); err == nil {
		t.Error("expected error for unknown file")
	}
}

func TestBot_Reply(t *testing.T) {
	bot, fake := newTestBot(t)

	if err := bot.Reply(context.Background(), 42, 7, "Saved: note.md"); err != nil {
		t.Fatalf("Reply: %v", err)
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.sent) != 1 {
		t.Fatalf("sent %d messages", len(fake.sent))
	}
	got := fake.sent[0]
	if got.Get("chat_id") != "42" || got.Get("text") != "Saved: note.md" || got.Get("reply_to_message_id") != "7" {
		t.Errorf("sent form = %v", got)
	}
}

func TestBot_ReplyCancelled(t *testing.T) {
	bot, fake := newTestBot(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := bot.Reply(ctx, 42, 0, "x"); err == nil {
		t.Fatal("expected context error")
	}
	if len(fake.sent) != 0 {
		t.Error("nothing should be sent after cancellation")
	}
}

func TestDispatch_ContainsHandlerPanic(t *testing.T) {
	b := &Bot{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	b.dispatch(context.Background(), func(context.Context, models.IncomingMessage) {
		panic("boom")
	}, models.IncomingMessage{ID: 1, ChatID: 10})

	var got int
	b.dispatch(context.Background(), func(_ context.Context, msg models.IncomingMessage) {
		got = msg.ID
	}, models.IncomingMessage{ID: 2, ChatID: 10})
	if got != 2 {
		t.Errorf("handler after panic saw message %d, want 2", got)
	}
}
