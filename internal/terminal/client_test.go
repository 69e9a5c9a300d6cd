package terminal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/example/comanda/internal/models"
	"github.com/example/comanda/internal/realtime"
	"github.com/example/comanda/internal/services"
)

func TestClientTransitionSendsObservedStatus(t *testing.T) {
	orderID := uuid.New()
	var gotPath, gotAuth string
	var gotBody transitionBody

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		order := models.Order{Status: models.StatusPreparing}
		order.ID = orderID
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": order})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", "tok")
	order, err := client.Advance(context.Background(), uuid.Nil, orderID, models.StatusPending)
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if order.Status != models.StatusPreparing {
		t.Fatalf("status = %s", order.Status)
	}
	if gotPath != "/api/orders/"+orderID.String()+"/advance" {
		t.Fatalf("path = %s", gotPath)
	}
	if gotAuth != "Bearer tok" {
		t.Fatalf("authorization = %q", gotAuth)
	}
	if gotBody.ObservedStatus != models.StatusPending {
		t.Fatalf("observed_status = %s", gotBody.ObservedStatus)
	}
}

func TestClientConflictCarriesCurrentStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":        false,
			"error":          "order changed on another terminal, refresh and retry",
			"current_status": "preparing",
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", "tok")
	_, err := client.Cancel(context.Background(), uuid.New(), models.StatusPending)
	if !errors.Is(err, ErrConflict) || !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Current != models.StatusPreparing {
		t.Fatalf("expected current status preparing, got %#v", err)
	}
}

func TestClientNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"success":false,"error":"not found"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", "tok").Finalize(context.Background(), uuid.New(), models.StatusReady)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if errors.Is(err, ErrConflict) {
		t.Fatal("404 must not look like a conflict")
	}
}

func TestClientListOpenOrdersWalksEveryPage(t *testing.T) {
	all := make([]models.Order, 205)
	for i := range all {
		all[i].ID = uuid.New()
		all[i].OrderNumber = int64(len(all) - i)
		all[i].Status = models.StatusPending
	}

	var pages []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("open") != "true" {
			t.Errorf("open = %q", q.Get("open"))
		}
		pages = append(pages, q.Get("page"))
		page, _ := strconv.Atoi(q.Get("page"))
		limit, _ := strconv.Atoi(q.Get("limit"))
		start := min((page-1)*limit, len(all))
		end := min(start+limit, len(all))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    all[start:end],
			"meta":    map[string]any{"page": page, "limit": limit, "total": len(all)},
		})
	}))
	defer srv.Close()

	got, err := NewClient(srv.URL, "", "tok").ListOpenOrders(context.Background())
	if err != nil {
		t.Fatalf("ListOpenOrders: %v", err)
	}
	if len(got) != len(all) {
		t.Fatalf("got %d orders, want %d", len(got), len(all))
	}
	if got[len(got)-1].ID != all[len(all)-1].ID {
		t.Fatal("oldest order missing from the listing")
	}
	if len(pages) != 2 || pages[0] != "1" || pages[1] != "2" {
		t.Fatalf("requested pages %v, want [1 2]", pages)
	}
}

func TestClientListenDeliversEvents(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.URL.Query().Get("token")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteJSON(realtime.NewEvent(uuid.New(), realtime.CollectionOrders, realtime.OpInsert, uuid.New()))
		_ = conn.WriteJSON(realtime.NewEvent(uuid.New(), realtime.CollectionTables, realtime.OpUpdate, uuid.New()))
		time.Sleep(50 * time.Millisecond)
	}))
	defer srv.Close()

	feedURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	client := NewClient(srv.URL, feedURL, "tok")

	var got []realtime.Event
	err := client.Listen(context.Background(), func(e realtime.Event) {
		got = append(got, e)
	})
	if err == nil {
		t.Fatal("Listen should return an error when the server hangs up")
	}
	if len(got) != 2 || got[0].Collection != realtime.CollectionOrders || got[1].Collection != realtime.CollectionTables {
		t.Fatalf("unexpected events %+v", got)
	}
	if gotToken != "tok" {
		t.Fatalf("token query = %q", gotToken)
	}
}
