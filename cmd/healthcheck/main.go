// Command healthcheck probes the local API's /healthz for container health checks.
// It exits non-zero unless the session loop reports healthy.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/onnwee/livewatch/config"
)

func main() {
	if !healthy(context.Background(), healthURL(os.Getenv("HTTP_ADDR"))) {
		os.Exit(1)
	}
}

// healthURL turns a listen address like ":8090" or "0.0.0.0:8090" into a dialable URL.
func healthURL(addr string) string {
	if addr == "" {
		addr = config.DefaultHTTPAddr
	}
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	addr = strings.Replace(addr, "0.0.0.0:", "localhost:", 1)
	return "http://" + addr + "/healthz"
}

func healthy(ctx context.Context, url string) bool {
	client := &http.Client{Timeout: 3 * time.Second}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("failed to close response body: %v", err)
		}
	}()
	return resp.StatusCode == http.StatusOK
}
