package orders

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ontrack-driver/internal/apperr"
)

func TestClient_Fetch_DecodesOrder(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/v1/orders/abc" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("unexpected auth header: %q", got)
		}
		w.Write([]byte(`{
			"id": "abc",
			"status": "Dispatched",
			"payload": {
				"pickup": {"id": "p1", "place_public_id": "pub-p1", "address": "A st"},
				"waypoints": [{"id": "w1", "place_public_id": "pub-w1", "tracking": "in_progress"}],
				"current_waypoint": "pub-w1"
			},
			"tracking_statuses": [{"code": "CONFIRMED", "status": "ok"}]
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", time.Second)
	o, err := c.Fetch(context.Background(), "abc")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if o.ID != "abc" {
		t.Fatalf("unexpected id: %q", o.ID)
	}
	if o.Status != "dispatched" {
		t.Fatalf("status not normalized: %q", o.Status)
	}
	if o.Pickup == nil || o.Pickup.PublicID != "pub-p1" {
		t.Fatalf("pickup not mapped: %#v", o.Pickup)
	}
	if len(o.Waypoints) != 1 || o.Waypoints[0].Tracking != "in_progress" {
		t.Fatalf("waypoints not mapped: %#v", o.Waypoints)
	}
	if o.CurrentWaypoint != "pub-w1" {
		t.Fatalf("current waypoint not mapped: %q", o.CurrentWaypoint)
	}
	if len(o.TrackingStatuses) != 1 || o.TrackingStatuses[0].Code != "CONFIRMED" {
		t.Fatalf("tracking statuses not mapped: %#v", o.TrackingStatuses)
	}
}

func TestClient_AcceptReject_SendsApprovalFlag(t *testing.T) {
	t.Parallel()

	var bodies []map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/orders/o1/start" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var b map[string]string
		json.NewDecoder(r.Body).Decode(&b)
		bodies = append(bodies, b)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	if err := c.AcceptReject(context.Background(), "o1", true, "tok"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := c.AcceptReject(context.Background(), "o1", false, "tok"); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if bodies[0]["is_approved"] != "1" || bodies[1]["is_approved"] != "0" {
		t.Fatalf("unexpected bodies: %v", bodies)
	}
}

func TestClient_NextActivity_WaypointParamAndShapes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		waypoint string
		body     string
		want     int
	}{
		{name: "array", waypoint: "w1", body: `[{"code":"arrived"},{"code":"loaded","require_pod":true}]`, want: 2},
		{name: "single object", waypoint: "", body: `{"code":"dispatched"}`, want: 1},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if got := r.URL.Query().Get("waypoint"); got != tc.waypoint {
					t.Errorf("waypoint param = %q, want %q", got, tc.waypoint)
				}
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c := NewClient(srv.URL, "tok", time.Second)
			acts, err := c.NextActivity(context.Background(), "o1", tc.waypoint)
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if len(acts) != tc.want {
				t.Fatalf("got %d activities, want %d", len(acts), tc.want)
			}
		})
	}
}

func TestClient_UpdateActivity_Variants(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = nil
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"id":"o1"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", time.Second)

	if _, err := c.UpdateActivitySkipDispatch(context.Background(), "o1"); err != nil {
		t.Fatalf("skip dispatch: %v", err)
	}
	if got["skipDispatch"] != true {
		t.Fatalf("skipDispatch body = %v", got)
	}

	if err := c.DriverUpdateActivity(context.Background(), "tok", "o1", "On Break"); err != nil {
		t.Fatalf("driver status: %v", err)
	}
	if got["status"] != "On Break" {
		t.Fatalf("status body = %v", got)
	}
}

func TestClient_NotDispatchedMapsToSentinel(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"Order has not been dispatched to a driver"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", time.Second)
	_, err := c.Start(context.Background(), "o1", StartParams{})
	if !errors.Is(err, apperr.NotDispatched) {
		t.Fatalf("expected NotDispatched, got %v", err)
	}
}

func TestClient_ErrorEnvelopeExtraction(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"bad waypoint"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", time.Second)
	_, err := c.SetDestination(context.Background(), "o1", "w1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Message != "bad waypoint" {
		t.Fatalf("unexpected api error: %#v", apiErr)
	}
}
