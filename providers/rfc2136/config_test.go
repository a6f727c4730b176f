package rfc2136

import (
	"testing"
	"time"
)

func TestConfigFromMap(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]string
		wantTTL  int
		wantErr  bool
	}{
		{"defaults", map[string]string{"SERVER": "ns1", "ZONE": "example.com"}, DefaultTTL, false},
		{"custom ttl", map[string]string{"SERVER": "ns1", "ZONE": "example.com", "TTL": "60"}, 60, false},
		{"negative ttl", map[string]string{"SERVER": "ns1", "ZONE": "example.com", "TTL": "-1"}, 0, true},
		{"invalid ttl", map[string]string{"SERVER": "ns1", "ZONE": "example.com", "TTL": "soon"}, 0, true},
		{"missing zone", map[string]string{"SERVER": "ns1"}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ConfigFromMap(tt.settings)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ConfigFromMap() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && cfg.TTL != tt.wantTTL {
				t.Errorf("TTL = %d, want %d", cfg.TTL, tt.wantTTL)
			}
		})
	}
}

func TestConfigFromMap_PassesUpdateSettings(t *testing.T) {
	cfg, err := ConfigFromMap(map[string]string{
		"SERVER":  "ns1.example.com:5353",
		"ZONE":    "example.com",
		"TCP":     "1",
		"TIMEOUT": "3",
	})
	if err != nil {
		t.Fatalf("ConfigFromMap() error = %v", err)
	}
	if cfg.Update.GetServer() != "ns1.example.com:5353" {
		t.Errorf("server = %q", cfg.Update.GetServer())
	}
	if !cfg.Update.UseTCP {
		t.Error("UseTCP = false, want true")
	}
	if cfg.Update.Timeout != 3*time.Second {
		t.Errorf("Timeout = %v, want 3s", cfg.Update.Timeout)
	}
}
