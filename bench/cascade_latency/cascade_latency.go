package main

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"
)

// Post represents a post entity returned by the API.
type Post struct {
	ID      string    `json:"id"`
	Text    string    `json:"text"`
	PubDate time.Time `json:"pub_date"`
}

type benchUser struct {
	Username string
	Token    string
	Posts    []string
}

const benchPassword = "bench-password"

// Measures how long a user's posts stay readable after DELETE /users/me, i.e.
// the time the cascade worker needs to consume the user_deleted event.
func main() {
	// CLI flags
	var serverAddr string
	var U, P, concurrency int
	var pollTimeout int
	var insecure bool

	flag.StringVar(&serverAddr, "server", "http://localhost:8080", "server base URL")
	flag.IntVar(&U, "users", 20, "number of users to create and delete")
	flag.IntVar(&P, "posts", 5, "posts per user")
	flag.IntVar(&concurrency, "c", 10, "concurrent deletions")
	flag.IntVar(&pollTimeout, "timeout", 10, "seconds to wait for the cascade")
	flag.BoolVar(&insecure, "insecure", false, "skip TLS certificate verification")
	flag.Parse()

	ctx := context.Background()
	api := serverAddr + "/api/v1"

	client := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: insecure},
		},
		Timeout: 10 * time.Second,
	}

	// --- 1) Create users and their posts ---
	fmt.Printf("Creating %d users with %d posts each...\n", U, P)
	users := make([]benchUser, 0, U)
	for i := 0; i < U; i++ {
		u := benchUser{Username: fmt.Sprintf("cascade-%d-%d", i, time.Now().UnixNano())}
		creds, _ := json.Marshal(map[string]string{"username": u.Username, "password": benchPassword})

		resp, err := client.Post(api+"/users", "application/json", bytes.NewReader(creds))
		if err != nil {
			fmt.Printf("create user error: %v\n", err)
			os.Exit(1)
		}
		resp.Body.Close()

		resp, err = client.Post(api+"/auth/jwt/create", "application/json", bytes.NewReader(creds))
		if err != nil {
			fmt.Printf("login error: %v\n", err)
			os.Exit(1)
		}
		var tokens struct {
			Access string `json:"access"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
			resp.Body.Close()
			fmt.Printf("decode token error: %v\n", err)
			os.Exit(1)
		}
		resp.Body.Close()
		u.Token = tokens.Access

		for j := 0; j < P; j++ {
			b, _ := json.Marshal(map[string]string{"text": fmt.Sprintf("post %d of %s", j, u.Username)})
			req, _ := http.NewRequestWithContext(ctx, http.MethodPost, api+"/posts", bytes.NewReader(b))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+u.Token)

			resp, err := client.Do(req)
			if err != nil {
				fmt.Printf("post error: %v\n", err)
				os.Exit(1)
			}
			var p Post
			err = json.NewDecoder(resp.Body).Decode(&p)
			resp.Body.Close()
			if err != nil {
				fmt.Printf("decode post error: %v\n", err)
				os.Exit(1)
			}
			u.Posts = append(u.Posts, p.ID)
		}
		users = append(users, u)
	}
	fmt.Println("Users and posts created.")

	// --- 2) Delete users concurrently and poll until their posts are gone ---
	var latencies []float64
	var latMu sync.Mutex
	var failCount int
	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency) // concurrency limiter

	for _, u := range users {
		wg.Add(1)
		sem <- struct{}{}
		go func(u benchUser) {
			defer wg.Done()
			defer func() { <-sem }()

			req, _ := http.NewRequestWithContext(ctx, http.MethodDelete, api+"/users/me", nil)
			req.Header.Set("Authorization", "Bearer "+u.Token)
			start := time.Now()
			resp, err := client.Do(req)
			if err != nil || resp.StatusCode != http.StatusNoContent {
				if resp != nil {
					resp.Body.Close()
				}
				latMu.Lock()
				failCount++
				latMu.Unlock()
				return
			}
			resp.Body.Close()

			deadline := start.Add(time.Duration(pollTimeout) * time.Second)
			for _, id := range u.Posts {
				if !waitGone(ctx, client, api+"/posts/"+id, deadline) {
					latMu.Lock()
					failCount++
					latMu.Unlock()
					return
				}
			}

			latMu.Lock()
			latencies = append(latencies, time.Since(start).Seconds()*1000)
			latMu.Unlock()
		}(u)
	}
	wg.Wait()

	// --- 3) Compute latency statistics and export to CSV ---
	if len(latencies) == 0 {
		fmt.Println("No completed cascades recorded.")
		return
	}
	sort.Float64s(latencies)
	fmt.Printf("Cascade stats (ms): count=%d p50=%.2f p90=%.2f p99=%.2f fails=%d\n",
		len(latencies), percentile(latencies, 50), percentile(latencies, 90), percentile(latencies, 99), failCount)

	f, err := os.Create("cascade_latencies.csv")
	if err != nil {
		fmt.Printf("Failed to create CSV file: %v\n", err)
		return
	}
	defer f.Close()
	w := csv.NewWriter(f)
	defer w.Flush()
	w.Write([]string{"latency_ms"})
	for _, v := range latencies {
		w.Write([]string{fmt.Sprintf("%.3f", v)})
	}
	fmt.Println("Saved cascade_latencies.csv")
}

// waitGone polls url until it answers 404 or the deadline passes.
func waitGone(ctx context.Context, client *http.Client, url string, deadline time.Time) bool {
	for time.Now().Before(deadline) {
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		resp, err := client.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusNotFound {
				return true
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return false
}

// percentile calculates the requested percentile using linear interpolation.
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
	d0 := data[f] * (float64(c) - k)
	d1 := data[c] * (k - float64(f))
	return d0 + d1
}
