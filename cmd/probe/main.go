// Command probe is a standalone CLI that issues the same health-probe
// request the balancer's monitor issues against a tracked backend, and
// exits 0 iff the backend reports itself healthy. Useful for manually
// diagnosing a backend, or as a container HEALTHCHECK CMD in front of the
// balancer itself.
//
// Usage:
//
//	probe [-timeout 3s] <backend-base-url>
//
// Example:
//
//	probe http://localhost:8081
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

type healthPayload struct {
	Status string `json:"status"`
}

func main() {
	timeout := flag.Duration("timeout", 3*time.Second, "probe timeout")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: probe [-timeout 3s] <backend-base-url>")
		os.Exit(2)
	}
	base := strings.TrimRight(flag.Arg(0), "/")

	client := &http.Client{Timeout: *timeout}
	resp, err := client.Get(base + "/actuator/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "probe: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		fmt.Fprintf(os.Stderr, "probe: HTTP %d from %s\n", resp.StatusCode, base)
		os.Exit(1)
	}

	var body healthPayload
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		fmt.Fprintf(os.Stderr, "probe: invalid JSON body: %v\n", err)
		os.Exit(1)
	}

	if !strings.EqualFold(body.Status, "UP") {
		fmt.Fprintf(os.Stderr, "probe: status=%q\n", body.Status)
		os.Exit(1)
	}

	fmt.Println("UP")
	os.Exit(0)
}
