// Command healthcheck probes the fitsync status API for container health
// checks. It exits 0 when /api/v1/health answers 200 or when the status API
// is disabled.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"
)

const (
	probeTimeout = 2 * time.Second
	defaultAddr  = "127.0.0.1:8080"
	healthPath   = "/api/v1/health"
)

func main() {
	os.Exit(check())
}

// check returns the process exit code.
func check() int {
	listenAddr, set := os.LookupEnv("LISTEN_ADDR")
	if set && listenAddr == "" {
		return 0
	}

	if err := probe(healthURL(listenAddr)); err != nil {
		fmt.Fprintln(os.Stderr, "healthcheck:", err)
		return 1
	}
	return 0
}

func probe(target string) error {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned %d", target, resp.StatusCode)
	}
	return nil
}

// healthURL builds the probe URL from LISTEN_ADDR. The probe runs inside the
// same container, so a wildcard bind address is probed on loopback.
func healthURL(listenAddr string) string {
	host, port, err := net.SplitHostPort(listenAddr)
	if err != nil {
		host, port, _ = net.SplitHostPort(defaultAddr)
	}

	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}

	u := url.URL{Scheme: "http", Host: net.JoinHostPort(host, port), Path: healthPath}
	return u.String()
}
