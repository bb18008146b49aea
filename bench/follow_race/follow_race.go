package main

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// TokenResp represents the token pair returned by /auth/jwt/create
type TokenResp struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// FollowReq represents the JSON payload for creating a follow
type FollowReq struct {
	Following string `json:"following"`
}

const benchPassword = "bench-password"

func main() {
	// --- Command-line flags ---
	var server string
	var rounds int
	var concurrency int
	var csvFile string
	var insecure bool

	flag.StringVar(&server, "server", "http://localhost:8080", "server base URL")
	flag.IntVar(&rounds, "rounds", 20, "number of subscriber/target pairs to race on")
	flag.IntVar(&concurrency, "c", 50, "concurrent follow requests per pair")
	flag.StringVar(&csvFile, "csv", "follow_latencies.csv", "CSV file to save latencies")
	flag.BoolVar(&insecure, "insecure", false, "skip TLS certificate verification")
	flag.Parse()

	client := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: insecure},
		},
		Timeout: 10 * time.Second,
	}
	api := server + "/api/v1"

	var latMu sync.Mutex
	var allLatencies []float64
	statuses := make(map[int]*int64)
	for _, code := range []int{http.StatusCreated, http.StatusBadRequest, http.StatusUnauthorized, http.StatusInternalServerError} {
		statuses[code] = new(int64)
	}
	var other int64
	var brokenRounds int

	for round := 0; round < rounds; round++ {
		// --- Create a fresh pair for every round ---
		suffix := time.Now().UnixNano()
		subscriber := fmt.Sprintf("race-sub-%d-%d", round, suffix)
		target := fmt.Sprintf("race-target-%d-%d", round, suffix)
		for _, name := range []string{subscriber, target} {
			if err := register(client, api, name); err != nil {
				panic(fmt.Sprintf("failed to create user: %v", err))
			}
		}
		token, err := login(client, api, subscriber)
		if err != nil {
			panic(fmt.Sprintf("failed to obtain token: %v", err))
		}

		// --- Fire duplicate follows at the same time ---
		start := make(chan struct{})
		var wg sync.WaitGroup
		var created int64
		body, _ := json.Marshal(FollowReq{Following: target})

		for i := 0; i < concurrency; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start

				req, _ := http.NewRequestWithContext(context.Background(), http.MethodPost, api+"/follow", bytes.NewReader(body))
				req.Header.Set("Content-Type", "application/json")
				req.Header.Set("Authorization", "Bearer "+token)

				t0 := time.Now()
				resp, err := client.Do(req)
				lat := time.Since(t0).Seconds() * 1000 // latency in ms
				if err != nil {
					fmt.Printf("Request error: %v\n", err)
					atomic.AddInt64(&other, 1)
					return
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()

				latMu.Lock()
				allLatencies = append(allLatencies, lat)
				latMu.Unlock()

				if counter, ok := statuses[resp.StatusCode]; ok {
					atomic.AddInt64(counter, 1)
				} else {
					atomic.AddInt64(&other, 1)
				}
				if resp.StatusCode == http.StatusCreated {
					atomic.AddInt64(&created, 1)
				}
			}()
		}
		close(start)
		wg.Wait()

		if created != 1 {
			brokenRounds++
			fmt.Printf("Round %d: expected exactly one 201, got %d\n", round, created)
		}
	}

	// --- Report ---
	fmt.Printf("Rounds: %d  Concurrency: %d  Rounds violating uniqueness: %d\n", rounds, concurrency, brokenRounds)
	codes := make([]int, 0, len(statuses))
	for code := range statuses {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Printf("  %d: %d\n", code, atomic.LoadInt64(statuses[code]))
	}
	fmt.Printf("  other/errors: %d\n", other)

	sort.Float64s(allLatencies)
	fmt.Printf("Latency (ms): p50=%.2f p90=%.2f p99=%.2f\n",
		percentile(allLatencies, 50), percentile(allLatencies, 90), percentile(allLatencies, 99))

	// --- Save latencies to CSV ---
	f, err := os.Create(csvFile)
	if err != nil {
		fmt.Printf("Failed to create CSV file: %v\n", err)
		return
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()
	w.Write([]string{"latency_ms"})
	for _, d := range allLatencies {
		w.Write([]string{fmt.Sprintf("%.3f", d)})
	}
	fmt.Printf("Saved latencies to %s\n", csvFile)

	if brokenRounds > 0 {
		os.Exit(1)
	}
}

func register(client *http.Client, api, username string) error {
	b, _ := json.Marshal(map[string]string{"username": username, "password": benchPassword})
	resp, err := client.Post(api+"/users", "application/json", bytes.NewReader(b))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, msg)
	}
	return nil
}

func login(client *http.Client, api, username string) (string, error) {
	b, _ := json.Marshal(map[string]string{"username": username, "password": benchPassword})
	resp, err := client.Post(api+"/auth/jwt/create", "application/json", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var tokens TokenResp
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return "", err
	}
	return tokens.Access, nil
}

// percentile calculates the p-th percentile from sorted data
func percentile(data []float64, p float64) float64 {
	if len(data) == 0 {
		return 0
	}
	k := (p / 100.0) * float64(len(data)-1)
	f := int(k)
	c := f + 1
	if c >= len(data) {
		return data[len(data)-1]
	}
	return data[f]*(float64(c)-k) + data[c]*(k-float64(f))
}
