package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gm "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/daviddao/mailnudge/internal/notify"
	"github.com/daviddao/mailnudge/internal/types"
)

func enc(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

// fakeGmailAPI serves the list, get, modify and send calls.
type fakeGmailAPI struct {
	mu       sync.Mutex
	messages map[string]*gm.Message
	order    []string // list order, newest first
	query    string
	modified map[string][]string
	sent     []string
}

func (f *fakeGmailAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	path := r.URL.Path
	i := strings.Index(path, "/users/me/messages")
	if i < 0 {
		http.NotFound(w, r)
		return
	}
	rest := strings.Trim(path[i+len("/users/me/messages"):], "/")

	switch {
	case r.Method == http.MethodGet && rest == "":
		f.query = r.URL.Query().Get("q")
		resp := &gm.ListMessagesResponse{}
		for _, id := range f.order {
			resp.Messages = append(resp.Messages, &gm.Message{Id: id})
		}
		_ = json.NewEncoder(w).Encode(resp)
	case r.Method == http.MethodPost && rest == "send":
		var m gm.Message
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &m); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		raw, _ := base64.URLEncoding.DecodeString(m.Raw)
		f.sent = append(f.sent, string(raw))
		_ = json.NewEncoder(w).Encode(&gm.Message{Id: "sent1"})
	case r.Method == http.MethodPost && strings.HasSuffix(rest, "/modify"):
		id := strings.TrimSuffix(rest, "/modify")
		var req gm.ModifyMessageRequest
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &req)
		f.modified[id] = req.RemoveLabelIds
		_ = json.NewEncoder(w).Encode(&gm.Message{Id: id})
	case r.Method == http.MethodGet:
		m, ok := f.messages[rest]
		if !ok {
			http.Error(w, `{"error":{"code":404,"message":"not found"}}`, http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(m)
	default:
		http.NotFound(w, r)
	}
}

func newService(t *testing.T, api *fakeGmailAPI) *gm.Service {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	svc, err := gm.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return svc
}

func plainMessage(id, msgID, subject, body string) *gm.Message {
	return &gm.Message{
		Id: id,
		Payload: &gm.MessagePart{
			MimeType: "text/plain",
			Headers: []*gm.MessagePartHeader{
				{Name: "Message-Id", Value: msgID},
				{Name: "Subject", Value: subject},
				{Name: "From", Value: "Ms. Rivera <teacher@school.edu>"},
				{Name: "Date", Value: "Tue, 20 Jan 2026 07:00:00 -0600"},
			},
			Body: &gm.MessagePartBody{Data: enc(body)},
		},
	}
}

func TestSource_ListUnread(t *testing.T) {
	api := &fakeGmailAPI{
		messages: map[string]*gm.Message{
			"older": plainMessage("older", "<m1@mail>", "[TA] ADD NUDGE: Print rubrics tomorrow at 7:15am", ""),
			"newer": {
				Id: "newer",
				Payload: &gm.MessagePart{
					MimeType: "multipart/alternative",
					Headers:  []*gm.MessagePartHeader{{Name: "Subject", Value: "fwd"}},
					Parts: []*gm.MessagePart{
						{MimeType: "text/html", Body: &gm.MessagePartBody{Data: enc("<p>NOTE: html</p>")}},
						{MimeType: "text/plain", Body: &gm.MessagePartBody{Data: enc("NOTE: plain wins\n")}},
					},
				},
			},
		},
		order:    []string{"newer", "broken", "older"},
		modified: map[string][]string{},
	}
	src := NewSource(newService(t, api), "", nil)

	msgs, err := src.ListUnread(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "is:unread label:TA-TRIGGERS", api.query)

	require.Len(t, msgs, 2)
	assert.Equal(t, types.TriggerMessage{
		MessageID: "<m1@mail>",
		Handle:    "older",
		Subject:   "[TA] ADD NUDGE: Print rubrics tomorrow at 7:15am",
		Sender:    "Ms. Rivera <teacher@school.edu>",
		Date:      "Tue, 20 Jan 2026 07:00:00 -0600",
	}, msgs[0])

	assert.Equal(t, "newer", msgs[1].MessageID)
	assert.Equal(t, "NOTE: plain wins", msgs[1].Body)
}

func TestSource_MarkRead(t *testing.T) {
	api := &fakeGmailAPI{modified: map[string][]string{}}
	src := NewSource(newService(t, api), "school", nil)
	assert.Equal(t, "is:unread label:school", src.Query())

	require.NoError(t, src.MarkRead(context.Background(), types.TriggerMessage{Handle: "abc"}))
	assert.Equal(t, []string{"UNREAD"}, api.modified["abc"])
}

func TestSender_SendEmail(t *testing.T) {
	api := &fakeGmailAPI{modified: map[string][]string{}}
	s := NewSender(newService(t, api), "ta@school.edu")

	err := s.SendEmail(context.Background(), notify.EmailMessage{To: "teacher@school.edu", Subject: notify.SubjectStatus, Body: "all clear"})
	require.NoError(t, err)
	require.Len(t, api.sent, 1)
	assert.Contains(t, api.sent[0], "To: teacher@school.edu\r\n")
	assert.Contains(t, api.sent[0], "From: ta@school.edu\r\n")
	assert.True(t, strings.HasSuffix(api.sent[0], "all clear"))

	assert.ErrorIs(t, s.SendEmail(context.Background(), notify.EmailMessage{Subject: "x"}), notify.ErrNoRecipient)
}

func TestExtractBody(t *testing.T) {
	assert.Equal(t, "", extractBody(nil))
	assert.Equal(t, "ADD MILESTONE: demo", extractBody(&gm.MessagePart{
		MimeType: "text/html",
		Body:     &gm.MessagePartBody{Data: enc("<div>ADD MILESTONE: demo</div>")},
	}))
	assert.Equal(t, "NOTE: first & only\nsecond\nline", extractBody(&gm.MessagePart{
		MimeType: "text/html",
		Body:     &gm.MessagePartBody{Data: enc("<p>NOTE:  first &amp; only</p><div>second<br>line</div>")},
	}))
	assert.Equal(t, "nested", extractBody(&gm.MessagePart{
		MimeType: "multipart/mixed",
		Parts: []*gm.MessagePart{
			{MimeType: "application/pdf", Filename: "a.pdf", Body: &gm.MessagePartBody{Data: enc("%PDF")}},
			{MimeType: "multipart/alternative", Parts: []*gm.MessagePart{
				{MimeType: "text/plain", Body: &gm.MessagePartBody{Data: enc("nested")}},
			}},
		},
	}))
}

func TestDecodeBase64URL(t *testing.T) {
	for _, in := range []string{enc("hi?>"), base64.URLEncoding.EncodeToString([]byte("hi?>"))} {
		got, err := decodeBase64URL(in)
		require.NoError(t, err)
		assert.Equal(t, "hi?>", got)
	}
}
