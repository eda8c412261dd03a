package feishu

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSendCard_Signed(t *testing.T) {
	var got botMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte(`{"code":0,"msg":"success"}`))
	}))
	defer srv.Close()

	c := NewBotClient(srv.URL, "s3cret")
	c.now = func() time.Time { return time.Unix(1700000000, 0) }

	card := NewReportCard("Catalog sync", false, []Field{{Label: "Created", Value: "2"}}, nil)
	if err := c.SendCard(context.Background(), card); err != nil {
		t.Fatalf("SendCard: %v", err)
	}

	if got.MsgType != "interactive" || got.Timestamp != "1700000000" {
		t.Errorf("unexpected message %+v", got)
	}
	if got.Sign != sign(1700000000, "s3cret") || got.Sign == "" {
		t.Errorf("Sign = %q", got.Sign)
	}
	if got.Card.Header.Template != "green" || got.Card.Header.Title.Content != "Catalog sync" {
		t.Errorf("unexpected header %+v", got.Card.Header)
	}
	if len(got.Card.Elements) != 1 || !strings.Contains(got.Card.Elements[0].Fields[0].Text.Content, "**Created**") {
		t.Errorf("unexpected elements %+v", got.Card.Elements)
	}
}

func TestSendCard_Unsigned(t *testing.T) {
	var raw map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&raw)
		w.Write([]byte(`{"code":0}`))
	}))
	defer srv.Close()

	if err := NewBotClient(srv.URL, "").SendCard(context.Background(), NewReportCard("x", true, nil, []string{"a", "b"})); err != nil {
		t.Fatalf("SendCard: %v", err)
	}
	if _, ok := raw["sign"]; ok {
		t.Error("sign must be omitted without a secret")
	}
}

func TestSendCard_BotError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":19021,"msg":"sign match fail or timestamp is not within one hour from current time"}`))
	}))
	defer srv.Close()

	err := NewBotClient(srv.URL, "bad").SendCard(context.Background(), NewReportCard("x", false, nil, nil))
	if err == nil || !strings.Contains(err.Error(), "19021") {
		t.Errorf("expected bot error, got %v", err)
	}
}

func TestNewReportCard_Details(t *testing.T) {
	card := NewReportCard("Stock sync failed", true, []Field{{"Stage", "list"}}, []string{"line 1", "line 2"})
	if card.Header.Template != "red" {
		t.Errorf("Template = %q", card.Header.Template)
	}
	if len(card.Elements) != 3 || card.Elements[1].Tag != "hr" || card.Elements[2].Text.Content != "line 1\nline 2" {
		t.Errorf("unexpected elements %+v", card.Elements)
	}
}
