//go:build integration
// +build integration

package auth

import (
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"
)

func TestKeyringTokenCanReachAPI(t *testing.T) {
	baseURL := strings.TrimRight(strings.TrimSpace(os.Getenv("DRIVERLOG_API_URL")), "/")
	if baseURL == "" {
		t.Skip("DRIVERLOG_API_URL not set")
	}
	t.Setenv("DRIVERLOG_TOKEN", "")

	token, err := loadFromKeyring(tokenAccount)
	if err != nil {
		t.Fatalf("failed to load token from keyring: %v", err)
	}
	if token == "" {
		t.Fatal("keyring returned an empty token")
	}

	req, err := http.NewRequest(http.MethodGet, baseURL+"/driver/day/current", nil)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("current day request failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	// 404 only means no day is open.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unexpected status=%d body=%s", resp.StatusCode, string(body))
	}
}
