// Command simulate fires a burst of concurrent booking requests at a single
// slot through the HTTP API and reports the outcome split. A healthy engine
// admits exactly one booking; every other request must come back as a
// conflict, never as a second success or a crash.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
)

type result struct {
	status  int
	latency time.Duration
	body    string
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	baseURL := flag.String("url", envOr("API_BASE_URL", "http://127.0.0.1:8080"), "API base URL")
	workers := flag.Int("workers", 25, "concurrent booking attempts")
	date := flag.String("date", "", "slot date YYYY-MM-DD (required)")
	slotTime := flag.String("time", "09:00", "slot start time HH:MM")
	modality := flag.String("modality", "virtual", "booking modality")
	flag.Parse()

	if *date == "" {
		log.Fatal("-date is required")
	}

	gofakeit.Seed(time.Now().UnixNano())

	log.Printf("storming %s %s (%s) with %d workers", *date, *slotTime, *modality, *workers)

	results := make([]result, *workers)
	var started, succeeded, conflicted, failed int64

	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			<-start
			atomic.AddInt64(&started, 1)
			results[n] = attemptBooking(*baseURL, *date, *slotTime, *modality)
		}(i)
	}

	close(start)
	wg.Wait()

	for _, r := range results {
		switch {
		case r.status == http.StatusCreated:
			atomic.AddInt64(&succeeded, 1)
		case r.status == http.StatusConflict:
			atomic.AddInt64(&conflicted, 1)
		default:
			atomic.AddInt64(&failed, 1)
			log.Printf("unexpected response status=%d body=%s", r.status, r.body)
		}
	}

	latencies := make([]time.Duration, 0, len(results))
	for _, r := range results {
		latencies = append(latencies, r.latency)
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	fmt.Printf("\nattempts:  %d\n", started)
	fmt.Printf("succeeded: %d\n", succeeded)
	fmt.Printf("conflict:  %d\n", conflicted)
	fmt.Printf("failed:    %d\n", failed)
	if len(latencies) > 0 {
		fmt.Printf("latency:   min=%s p50=%s max=%s\n",
			latencies[0], latencies[len(latencies)/2], latencies[len(latencies)-1])
	}

	if succeeded != 1 {
		fmt.Printf("\nFAIL: expected exactly 1 successful booking, got %d\n", succeeded)
		os.Exit(1)
	}
	fmt.Println("\nOK: exactly one booking won the slot")
}

func attemptBooking(baseURL, date, slotTime, modality string) result {
	payload := map[string]any{
		"scheduled_date": date,
		"scheduled_time": slotTime,
		"modality":       modality,
		"patient_details": map[string]string{
			"name":  gofakeit.Name(),
			"email": gofakeit.Email(),
			"phone": gofakeit.Phone(),
		},
		"reason": "load simulation",
	}
	body, _ := json.Marshal(payload)

	client := &http.Client{Timeout: 15 * time.Second}

	begin := time.Now()
	resp, err := client.Post(baseURL+"/appointments", "application/json", bytes.NewReader(body))
	latency := time.Since(begin)
	if err != nil {
		return result{status: 0, latency: latency, body: err.Error()}
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return result{status: resp.StatusCode, latency: latency, body: string(data)}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
