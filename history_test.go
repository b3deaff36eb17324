package sdk

import (
	"context"
	"net/http"
	"testing"
)

func TestParseHistoryType(t *testing.T) {
	for _, in := range []string{"all", "chat", "code", "project", "artifact"} {
		got, err := ParseHistoryType(in)
		if err != nil || string(got) != in {
			t.Errorf("ParseHistoryType(%q) = %q, %v", in, got, err)
		}
	}
	if got, err := ParseHistoryType(""); err != nil || got != HistoryAll {
		t.Errorf("empty = %q, %v", got, err)
	}
	if _, err := ParseHistoryType("Chat"); !IsValidationError(err) {
		t.Errorf("expected validation error, got %v", err)
	}
	if HistoryChat.Title() != "Chats" || HistoryAll.Title() != "Code" {
		t.Errorf("unexpected titles")
	}
}

func TestHistoryList(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/history/chat" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("page") != "2" || q.Get("per_page") != "20" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		writeTestJSON(t, w, http.StatusOK, HistoryPage{
			History: []HistoryItem{{ID: 3, Type: HistoryChat, Title: "hello"}},
			Total:   21,
		})
	})

	page, err := client.History.List(context.Background(), HistoryChat, &HistoryListParams{Page: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 21 || len(page.History) != 1 || page.History[0].Title != "hello" {
		t.Fatalf("unexpected page %+v", page)
	}
}

func TestHistoryListDefaults(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/history/all" || r.URL.Query().Get("page") != "1" {
			t.Fatalf("unexpected request %s?%s", r.URL.Path, r.URL.RawQuery)
		}
		writeTestJSON(t, w, http.StatusOK, map[string]any{"total": 0})
	})
	page, err := client.History.List(context.Background(), "", nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.History == nil {
		t.Fatalf("expected non-nil history slice")
	}
}

func TestHistoryItemOperations(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/history/42":
			writeTestJSON(t, w, http.StatusOK, map[string]any{"history": HistoryItem{ID: 42, Title: "answer"}})
		case r.Method == http.MethodDelete && r.URL.Path == "/api/history/42":
			writeTestJSON(t, w, http.StatusOK, map[string]any{"message": "Deleted"})
		case r.Method == http.MethodDelete && r.URL.Path == "/api/history/clear/code":
			writeTestJSON(t, w, http.StatusOK, map[string]any{"message": "Cleared"})
		case r.Method == http.MethodGet && r.URL.Path == "/api/history/7":
			writeTestJSON(t, w, http.StatusNotFound, map[string]any{"error": "History not found"})
		default:
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	})
	ctx := context.Background()

	item, err := client.History.Get(ctx, 42)
	if err != nil || item.Title != "answer" {
		t.Fatalf("get: %+v, %v", item, err)
	}
	if err := client.History.Delete(ctx, 42); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := client.History.Clear(ctx, HistoryCode); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := client.History.Get(ctx, 7); ErrorKindOf(err) != KindValidation {
		t.Fatalf("expected 404 validation kind, got %v", err)
	}
	if _, err := client.History.Get(ctx, 0); !IsValidationError(err) {
		t.Fatalf("expected local validation error, got %v", err)
	}
	if err := client.History.Delete(ctx, -1); !IsValidationError(err) {
		t.Fatalf("expected local validation error, got %v", err)
	}
}
