package cloudflare

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeAPI is an in-memory stand-in for the subset of the Cloudflare API
// used by the client.
type fakeAPI struct {
	t     *testing.T
	token string

	mu       sync.Mutex
	zones    []zone
	records  map[string][]dnsRecord // zone ID -> records
	nextID   int
	requests []string // "METHOD path"

	// failStatus, when set, is returned for every request.
	failStatus int
}

func newFakeAPI(t *testing.T, zoneNames ...string) *fakeAPI {
	t.Helper()
	f := &fakeAPI{
		t:       t,
		token:   "test-token",
		records: make(map[string][]dnsRecord),
	}
	for i, name := range zoneNames {
		f.zones = append(f.zones, zone{ID: fmt.Sprintf("zone-%d", i+1), Name: name, Status: "active"})
	}
	return f
}

func (f *fakeAPI) start() *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	f.t.Cleanup(srv.Close)
	return srv
}

func (f *fakeAPI) zoneID(name string) string {
	for _, z := range f.zones {
		if z.Name == name {
			return z.ID
		}
	}
	f.t.Fatalf("unknown zone %s", name)
	return ""
}

func (f *fakeAPI) add(zoneName string, r dnsRecord) dnsRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	if r.ID == "" {
		r.ID = fmt.Sprintf("rec-%d", f.nextID)
	}
	id := f.zoneID(zoneName)
	f.records[id] = append(f.records[id], r)
	return r
}

func (f *fakeAPI) all(zoneName string) []dnsRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]dnsRecord(nil), f.records[f.zoneID(zoneName)]...)
}

func (f *fakeAPI) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if strings.HasPrefix(r, method+" ") {
			n++
		}
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func success(result any, info *resultInfo) map[string]any {
	resp := map[string]any{
		"success":  true,
		"errors":   []any{},
		"messages": []any{},
		"result":   result,
	}
	if info != nil {
		resp["result_info"] = info
	}
	return resp
}

func failure(code int, message string) map[string]any {
	return map[string]any{
		"success":  false,
		"errors":   []map[string]any{{"code": code, "message": message}},
		"messages": []any{},
		"result":   nil,
	}
}

func paginate[T any](items []T, r *http.Request) ([]T, *resultInfo) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	total := (len(items) + perPage - 1) / perPage
	start := (page - 1) * perPage
	if start > len(items) {
		start = len(items)
	}
	end := start + perPage
	if end > len(items) {
		end = len(items)
	}
	out := items[start:end]
	if out == nil {
		out = []T{}
	}
	return out, &resultInfo{Page: page, PerPage: perPage, TotalPages: total, Count: len(out), TotalCount: len(items)}
}

func (f *fakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, r.Method+" "+r.URL.Path)

	if f.failStatus != 0 {
		writeJSON(w, f.failStatus, failure(10000, http.StatusText(f.failStatus)))
		return
	}
	if r.Header.Get("Authorization") != "Bearer "+f.token {
		writeJSON(w, http.StatusUnauthorized, failure(10000, "Authentication error"))
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case r.URL.Path == "/user/tokens/verify":
		writeJSON(w, http.StatusOK, success(map[string]string{"status": "active"}, nil))

	case len(parts) == 1 && parts[0] == "zones":
		var zones []zone
		name := r.URL.Query().Get("name")
		for _, z := range f.zones {
			if name == "" || z.Name == name {
				zones = append(zones, z)
			}
		}
		page, info := paginate(zones, r)
		writeJSON(w, http.StatusOK, success(page, info))

	case len(parts) == 3 && parts[2] == "dns_records" && r.Method == http.MethodGet:
		q := r.URL.Query()
		var matches []dnsRecord
		for _, rec := range f.records[parts[1]] {
			if q.Get("type") != "" && rec.Type != q.Get("type") {
				continue
			}
			if q.Get("name") != "" && rec.Name != q.Get("name") {
				continue
			}
			if q.Get("content") != "" && unquoteTXT(rec.Content) != q.Get("content") {
				continue
			}
			matches = append(matches, rec)
		}
		page, info := paginate(matches, r)
		writeJSON(w, http.StatusOK, success(page, info))

	case len(parts) == 3 && parts[2] == "dns_records" && r.Method == http.MethodPost:
		var req recordRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, failure(9000, err.Error()))
			return
		}
		for _, rec := range f.records[parts[1]] {
			if rec.Type == req.Type && rec.Name == req.Name && rec.Content == req.Content {
				writeJSON(w, http.StatusBadRequest, failure(codeIdenticalRecord, "An identical record already exists."))
				return
			}
		}
		f.nextID++
		rec := dnsRecord{
			ID:      fmt.Sprintf("rec-%d", f.nextID),
			Type:    req.Type,
			Name:    req.Name,
			Content: req.Content,
			TTL:     req.TTL,
		}
		if req.Proxied != nil {
			rec.Proxied = *req.Proxied
		}
		f.records[parts[1]] = append(f.records[parts[1]], rec)
		writeJSON(w, http.StatusOK, success(rec, nil))

	case len(parts) == 4 && parts[2] == "dns_records":
		recs := f.records[parts[1]]
		for i, rec := range recs {
			if rec.ID != parts[3] {
				continue
			}
			switch r.Method {
			case http.MethodPut:
				var req recordRequest
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					writeJSON(w, http.StatusBadRequest, failure(9000, err.Error()))
					return
				}
				recs[i] = dnsRecord{ID: rec.ID, Type: req.Type, Name: req.Name, Content: req.Content, TTL: req.TTL}
				writeJSON(w, http.StatusOK, success(recs[i], nil))
			case http.MethodDelete:
				f.records[parts[1]] = append(recs[:i:i], recs[i+1:]...)
				writeJSON(w, http.StatusOK, success(map[string]string{"id": rec.ID}, nil))
			default:
				writeJSON(w, http.StatusMethodNotAllowed, failure(9000, "method not allowed"))
			}
			return
		}
		writeJSON(w, http.StatusNotFound, failure(codeRecordNotFound, "Record does not exist."))

	default:
		writeJSON(w, http.StatusNotFound, failure(7003, "Could not route to "+r.URL.Path))
	}
}
