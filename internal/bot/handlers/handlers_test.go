package handlers

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/cycleparksbot/internal/config"
	"github.com/edgard/cycleparksbot/internal/database"
	"github.com/edgard/cycleparksbot/internal/geo"
	"github.com/edgard/cycleparksbot/internal/outbox"
)

type fakeOutbox struct {
	mu   sync.Mutex
	msgs []outbox.Message
}

func (f *fakeOutbox) Enqueue(msg outbox.Message) {
	f.mu.Lock()
	f.msgs = append(f.msgs, msg)
	f.mu.Unlock()
}

func (f *fakeOutbox) texts() []outbox.Text {
	f.mu.Lock()
	defer f.mu.Unlock()
	var texts []outbox.Text
	for _, m := range f.msgs {
		if t, ok := m.(outbox.Text); ok {
			texts = append(texts, t)
		}
	}
	return texts
}

type fakeRecorder struct {
	mu       sync.Mutex
	commands []string
	errs     []database.ErrorRecord
}

func (f *fakeRecorder) RecordCommandAsync(_ int64, command string) {
	f.mu.Lock()
	f.commands = append(f.commands, command)
	f.mu.Unlock()
}

func (f *fakeRecorder) RecordError(rec database.ErrorRecord) {
	f.mu.Lock()
	f.errs = append(f.errs, rec)
	f.mu.Unlock()
}

// fixedFinder returns canned results regardless of the query point.
type fixedFinder struct {
	results []geo.Result
}

func (f fixedFinder) Nearest(_, _ float64, k int) []geo.Result {
	if k > len(f.results) {
		k = len(f.results)
	}
	return f.results[:k]
}

func testDeps(finder ParkFinder) (HandlerDeps, *fakeOutbox, *fakeRecorder) {
	ob := &fakeOutbox{}
	rec := &fakeRecorder{}
	deps := HandlerDeps{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config: &config.Config{
			Parks: config.ParksConfig{
				DefaultLimit:      3,
				MaxLimit:          10,
				MaxDistanceMeters: 1000,
			},
		},
		Parks:    finder,
		Outbox:   ob,
		Recorder: rec,
		Prefs:    NewPrefs(3),
	}
	return deps, ob, rec
}

func textUpdate(userID, chatID int64, text string) *models.Update {
	return &models.Update{
		ID: 1,
		Message: &models.Message{
			ID:   10,
			Text: text,
			From: &models.User{ID: userID, FirstName: "Ada"},
			Chat: models.Chat{ID: chatID},
		},
	}
}

func locationUpdate(userID, chatID int64, lat, lon float64) *models.Update {
	u := textUpdate(userID, chatID, "")
	u.Message.Location = &models.Location{Latitude: lat, Longitude: lon}
	return u
}

func TestLimitHandlerClamping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		input     string
		wantLimit int
		wantReply string
	}{
		{name: "over maximum", input: "/limit 15", wantLimit: 10,
			wantReply: "❌ Location limit is set to 10 - this is maximum!"},
		{name: "under minimum", input: "/limit 0", wantLimit: 1,
			wantReply: "✅ Location limit is set to 1 - this is minimum!"},
		{name: "negative", input: "/limit -3", wantLimit: 1,
			wantReply: "✅ Location limit is set to 1 - this is minimum!"},
		{name: "valid value", input: "/limit 5", wantLimit: 5,
			wantReply: "✅ You set locations limit to 5"},
		{name: "not a number", input: "/limit abc", wantLimit: 3,
			wantReply: "❌ That doesn't look like a valid number. Locations limit is 3."},
		{name: "no argument", input: "/limit", wantLimit: 3,
			wantReply: "Send me preferred number of closest locations to show, e.g. /limit 3. Current limit is 3."},
		{name: "group chat mention", input: "/limit@cycleparks_bot 5", wantLimit: 5,
			wantReply: "✅ You set locations limit to 5"},
		{name: "group chat mention without argument", input: "/limit@cycleparks_bot", wantLimit: 3,
			wantReply: "Send me preferred number of closest locations to show, e.g. /limit 3. Current limit is 3."},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			deps, ob, _ := testDeps(fixedFinder{})
			handler := NewLimitHandler(deps)

			handler(context.Background(), nil, textUpdate(7, 70, tc.input))

			if got := deps.Prefs.Get(7); got != tc.wantLimit {
				t.Errorf("limit after %q = %d, want %d", tc.input, got, tc.wantLimit)
			}
			texts := ob.texts()
			if len(texts) != 1 {
				t.Fatalf("replies = %d, want 1", len(texts))
			}
			if texts[0].Body != tc.wantReply {
				t.Errorf("reply = %q, want %q", texts[0].Body, tc.wantReply)
			}
			if texts[0].ChatID != 70 {
				t.Errorf("reply chat = %d, want 70", texts[0].ChatID)
			}
		})
	}
}

func TestLimitHandlerInvalidInputKeepsPreviousValue(t *testing.T) {
	t.Parallel()

	deps, ob, _ := testDeps(fixedFinder{})
	handler := NewLimitHandler(deps)

	handler(context.Background(), nil, textUpdate(7, 70, "/limit 5"))
	handler(context.Background(), nil, textUpdate(7, 70, "/limit abc"))

	if got := deps.Prefs.Get(7); got != 5 {
		t.Errorf("limit = %d, want previous value 5", got)
	}
	texts := ob.texts()
	if len(texts) != 2 {
		t.Fatalf("replies = %d, want 2", len(texts))
	}
	if texts[1].Body != "❌ That doesn't look like a valid number. Locations limit is 5." {
		t.Errorf("rejection reply = %q", texts[1].Body)
	}
}

func TestLocationHandlerEmitsRankedMessages(t *testing.T) {
	t.Parallel()

	finder := fixedFinder{results: []geo.Result{
		{Park: geo.Park{ID: "a", Lat: 51.50, Lon: -0.10, Props: map[string]string{
			"PHOTO1_URL": "https://example.com/a.jpg",
		}}, Meters: 120},
		{Park: geo.Park{ID: "b", Lat: 51.51, Lon: -0.11}, Meters: 450},
	}}
	deps, ob, rec := testDeps(finder)
	handler := NewLocationHandler(deps)

	handler(context.Background(), nil, locationUpdate(7, 70, 51.5, -0.1))

	ob.mu.Lock()
	defer ob.mu.Unlock()

	// Park a: text + pin + media group; park b: text + pin.
	if len(ob.msgs) != 5 {
		t.Fatalf("enqueued messages = %d, want 5", len(ob.msgs))
	}
	first, ok := ob.msgs[0].(outbox.Text)
	if !ok || first.Body != "1st nearest cycle parking is within 120 meters:" {
		t.Errorf("first message = %#v", ob.msgs[0])
	}
	if pin, ok := ob.msgs[1].(outbox.Location); !ok || pin.Lat != 51.50 || pin.Lon != -0.10 {
		t.Errorf("second message = %#v, want pin for park a", ob.msgs[1])
	}
	if mg, ok := ob.msgs[2].(outbox.MediaGroup); !ok || len(mg.URLs) != 1 {
		t.Errorf("third message = %#v, want media group", ob.msgs[2])
	}
	if second, ok := ob.msgs[3].(outbox.Text); !ok || second.Body != "2nd nearest cycle parking is within 450 meters:" {
		t.Errorf("fourth message = %#v", ob.msgs[3])
	}
	if _, ok := ob.msgs[4].(outbox.Location); !ok {
		t.Errorf("fifth message = %#v, want pin for park b", ob.msgs[4])
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.commands) != 1 || rec.commands[0] != "show_nearest_cycleparks" {
		t.Errorf("recorded commands = %v", rec.commands)
	}
}

func TestLocationHandlerNothingNearby(t *testing.T) {
	t.Parallel()

	finder := fixedFinder{results: []geo.Result{
		{Park: geo.Park{ID: "far"}, Meters: 1500},
	}}
	deps, ob, _ := testDeps(finder)
	handler := NewLocationHandler(deps)

	handler(context.Background(), nil, locationUpdate(7, 70, 51.5, -0.1))

	ob.mu.Lock()
	defer ob.mu.Unlock()
	if len(ob.msgs) != 1 {
		t.Fatalf("enqueued messages = %d, want exactly one", len(ob.msgs))
	}
	txt, ok := ob.msgs[0].(outbox.Text)
	if !ok {
		t.Fatalf("message = %#v, want Text", ob.msgs[0])
	}
	if txt.Body != "❗️ No cycle parks found within 1000 m of your location. For now, only London cycle parks are supported." {
		t.Errorf("nothing-found message = %q", txt.Body)
	}
}

func TestLocationHandlerIgnoresNonLocationMessage(t *testing.T) {
	t.Parallel()

	deps, ob, rec := testDeps(fixedFinder{})
	handler := NewLocationHandler(deps)

	handler(context.Background(), nil, textUpdate(7, 70, "hello"))

	if len(ob.texts()) != 0 {
		t.Error("expected no reply to a non-location message")
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.commands) != 0 {
		t.Errorf("recorded commands = %v, want none", rec.commands)
	}
}

func TestLocationHandlerUsesUserLimit(t *testing.T) {
	t.Parallel()

	finder := fixedFinder{results: []geo.Result{
		{Park: geo.Park{ID: "a"}, Meters: 10},
		{Park: geo.Park{ID: "b"}, Meters: 20},
		{Park: geo.Park{ID: "c"}, Meters: 30},
	}}
	deps, ob, _ := testDeps(finder)
	deps.Prefs.Set(7, 1)
	handler := NewLocationHandler(deps)

	handler(context.Background(), nil, locationUpdate(7, 70, 51.5, -0.1))

	ob.mu.Lock()
	defer ob.mu.Unlock()
	if len(ob.msgs) != 2 {
		t.Fatalf("enqueued messages = %d, want 2 (one text, one pin)", len(ob.msgs))
	}
}

func TestStartHandlerSendsKeyboard(t *testing.T) {
	t.Parallel()

	deps, ob, rec := testDeps(fixedFinder{})
	handler := NewStartHandler(deps)

	handler(context.Background(), nil, textUpdate(7, 70, "/start"))

	texts := ob.texts()
	if len(texts) != 1 {
		t.Fatalf("replies = %d, want 1", len(texts))
	}
	if texts[0].ReplyMarkup == nil {
		t.Error("expected a reply keyboard on the /start greeting")
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.commands) != 1 || rec.commands[0] != "start" {
		t.Errorf("recorded commands = %v", rec.commands)
	}
}

func TestRecoverMiddlewareCapturesPanic(t *testing.T) {
	t.Parallel()

	deps, _, rec := testDeps(fixedFinder{})

	panicking := func(context.Context, *bot.Bot, *models.Update) {
		panic("handler exploded")
	}
	wrapped := Recover(deps)(panicking)

	wrapped(context.Background(), nil, textUpdate(7, 70, "boom"))

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.errs) != 1 {
		t.Fatalf("recorded errors = %d, want 1", len(rec.errs))
	}
	if rec.errs[0].ErrorMessage != "handler exploded" {
		t.Errorf("error message = %q", rec.errs[0].ErrorMessage)
	}
	if rec.errs[0].UpdateStr == "" {
		t.Error("expected serialized update context")
	}
}

func TestOrdinal(t *testing.T) {
	t.Parallel()

	tests := map[int]string{
		1: "1st", 2: "2nd", 3: "3rd", 4: "4th",
		10: "10th", 11: "11th", 12: "12th", 13: "13th",
		21: "21st", 22: "22nd", 23: "23rd",
	}
	for n, want := range tests {
		if got := ordinal(n); got != want {
			t.Errorf("ordinal(%d) = %q, want %q", n, got, want)
		}
	}
}
