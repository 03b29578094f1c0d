// Package main is the container health probe for assetdna-server. It GETs
// the given URL (default http://localhost:8080/healthz) and exits 0 on a 2xx
// response whose body reports status "ok", 1 otherwise.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const defaultURL = "http://localhost:8080/healthz"

func main() {
	url := defaultURL
	if len(os.Args) > 1 {
		url = os.Args[1]
	}
	if err := probe(&http.Client{Timeout: 5 * time.Second}, url); err != nil {
		fmt.Fprintf(os.Stderr, "healthcheck failed: %v\n", err)
		os.Exit(1)
	}
}

func probe(client *http.Client, url string) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	var body struct {
		Status string `json:"status"`
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return err
	}
	// Non-JSON 2xx bodies count as healthy.
	if json.Unmarshal(data, &body) == nil && body.Status != "" && body.Status != "ok" {
		return fmt.Errorf("status %q", body.Status)
	}
	return nil
}
