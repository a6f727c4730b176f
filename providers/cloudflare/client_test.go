package cloudflare

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"gitlab.bluewillows.net/root/clouddns-nat-helper/pkg/provider"
)

func TestNewClient(t *testing.T) {
	client := NewClient("test-token")

	if client.apiEndpoint != DefaultAPIEndpoint {
		t.Errorf("expected apiEndpoint %s, got %s", DefaultAPIEndpoint, client.apiEndpoint)
	}
	if client.token != "test-token" {
		t.Errorf("expected token test-token, got %s", client.token)
	}
	if client.httpClient == nil {
		t.Error("expected httpClient to be initialized")
	}
}

func TestClient_Ping(t *testing.T) {
	api := newFakeAPI(t, "example.com")
	srv := api.start()

	client := NewClient("test-token", WithAPIEndpoint(srv.URL), WithLogger(testLogger()))
	if err := client.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}

	bad := NewClient("bad-token", WithAPIEndpoint(srv.URL), WithLogger(testLogger()))
	err := bad.Ping(context.Background())
	if !errors.Is(err, provider.ErrUnauthorized) {
		t.Errorf("Ping() with bad token error = %v, want ErrUnauthorized", err)
	}
}

func TestClient_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"success":false,"errors":[{"code":10000,"message":"auth"}]}`, provider.ErrUnauthorized},
		{"forbidden", http.StatusForbidden, `{"success":false,"errors":[{"code":9109,"message":"forbidden"}]}`, provider.ErrUnauthorized},
		{"rate limited", http.StatusTooManyRequests, `{"success":false,"errors":[{"code":971,"message":"slow down"}]}`, provider.ErrRateLimited},
		{"server error", http.StatusBadGateway, `<html>bad gateway</html>`, provider.ErrProviderUnavailable},
		{"identical record", http.StatusBadRequest, `{"success":false,"errors":[{"code":81058,"message":"identical"}]}`, provider.ErrConflict},
		{"record exists", http.StatusBadRequest, `{"success":false,"errors":[{"code":81053,"message":"exists"}]}`, provider.ErrConflict},
		{"record missing", http.StatusNotFound, `{"success":false,"errors":[{"code":81044,"message":"missing"}]}`, provider.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			client := NewClient("token", WithAPIEndpoint(srv.URL), WithLogger(testLogger()))
			err := client.Ping(context.Background())
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestClient_UnsuccessfulBodyWith200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"success":false,"errors":[{"code":1001,"message":"nope"}]}`)
	}))
	defer srv.Close()

	client := NewClient("token", WithAPIEndpoint(srv.URL), WithLogger(testLogger()))
	if err := client.Ping(context.Background()); err == nil {
		t.Error("expected error for success=false")
	}
}

func TestClient_ListZones_Paginates(t *testing.T) {
	names := make([]string, 0, 120)
	for i := 0; i < 120; i++ {
		names = append(names, fmt.Sprintf("zone%03d.example", i))
	}
	api := newFakeAPI(t, names...)
	srv := api.start()

	client := NewClient("test-token", WithAPIEndpoint(srv.URL), WithLogger(testLogger()))
	zones, err := client.ListZones(context.Background())
	if err != nil {
		t.Fatalf("ListZones() error = %v", err)
	}
	if len(zones) != 120 {
		t.Errorf("ListZones() returned %d zones, want 120", len(zones))
	}
	if got := api.count(http.MethodGet); got != 3 {
		t.Errorf("made %d requests, want 3 pages", got)
	}
}

func TestClient_GetZone(t *testing.T) {
	api := newFakeAPI(t, "example.com", "example.org")
	srv := api.start()
	client := NewClient("test-token", WithAPIEndpoint(srv.URL), WithLogger(testLogger()))

	z, err := client.GetZone(context.Background(), "example.org")
	if err != nil {
		t.Fatalf("GetZone() error = %v", err)
	}
	if z.ID != "zone-2" {
		t.Errorf("GetZone() ID = %s, want zone-2", z.ID)
	}

	_, err = client.GetZone(context.Background(), "missing.net")
	if !errors.Is(err, provider.ErrNotFound) {
		t.Errorf("GetZone(missing) error = %v, want ErrNotFound", err)
	}
}

func TestClient_RecordLifecycle(t *testing.T) {
	api := newFakeAPI(t, "example.com")
	srv := api.start()
	client := NewClient("test-token", WithAPIEndpoint(srv.URL), WithLogger(testLogger()))
	ctx := context.Background()

	created, err := client.CreateRecord(ctx, "zone-1", recordRequest{
		Type: "A", Name: "app.example.com", Content: "203.0.113.5", TTL: 300,
	})
	if err != nil {
		t.Fatalf("CreateRecord() error = %v", err)
	}
	if created.ID == "" {
		t.Fatal("CreateRecord() returned no ID")
	}

	_, err = client.CreateRecord(ctx, "zone-1", recordRequest{
		Type: "A", Name: "app.example.com", Content: "203.0.113.5", TTL: 300,
	})
	if !errors.Is(err, provider.ErrConflict) {
		t.Errorf("duplicate CreateRecord() error = %v, want ErrConflict", err)
	}

	if err := client.UpdateRecord(ctx, "zone-1", created.ID, recordRequest{
		Type: "A", Name: "app.example.com", Content: "203.0.113.9", TTL: 300,
	}); err != nil {
		t.Fatalf("UpdateRecord() error = %v", err)
	}

	found, err := client.FindRecord(ctx, "zone-1", "A", "app.example.com", "203.0.113.9")
	if err != nil {
		t.Fatalf("FindRecord() error = %v", err)
	}
	if found.ID != created.ID {
		t.Errorf("FindRecord() ID = %s, want %s", found.ID, created.ID)
	}

	if err := client.DeleteRecord(ctx, "zone-1", created.ID); err != nil {
		t.Fatalf("DeleteRecord() error = %v", err)
	}

	_, err = client.FindRecord(ctx, "zone-1", "A", "app.example.com", "")
	if !errors.Is(err, provider.ErrNotFound) {
		t.Errorf("FindRecord() after delete error = %v, want ErrNotFound", err)
	}

	err = client.DeleteRecord(ctx, "zone-1", created.ID)
	if !errors.Is(err, provider.ErrNotFound) {
		t.Errorf("second DeleteRecord() error = %v, want ErrNotFound", err)
	}
}

func TestClient_ListRecords_FiltersByType(t *testing.T) {
	api := newFakeAPI(t, "example.com")
	api.add("example.com", dnsRecord{Type: "A", Name: "a.example.com", Content: "203.0.113.1"})
	api.add("example.com", dnsRecord{Type: "AAAA", Name: "a.example.com", Content: "2001:db8::1"})
	api.add("example.com", dnsRecord{Type: "CNAME", Name: "www.example.com", Content: "a.example.com"})
	srv := api.start()

	client := NewClient("test-token", WithAPIEndpoint(srv.URL), WithLogger(testLogger()))
	records, err := client.ListRecords(context.Background(), "zone-1", "AAAA")
	if err != nil {
		t.Fatalf("ListRecords() error = %v", err)
	}
	if len(records) != 1 || records[0].Content != "2001:db8::1" {
		t.Errorf("ListRecords(AAAA) = %+v", records)
	}
}
