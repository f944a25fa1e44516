package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"
)

// simulate fires N concurrent bookings at the same (practitioner, date, time)
// slot and reports how many won. With the lock and the storage constraint in
// place, exactly one should.

type simConfig struct {
	APIBaseURL string
	Workers    int
	Time       string
}

type outcome struct {
	status  int
	latency time.Duration
	err     error
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulate starting")

	cfg := simConfig{
		APIBaseURL: getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Workers:    getInt("SIM_WORKERS", 20),
		Time:       getEnv("SIM_TIME", "09:00"),
	}
	if cfg.Workers <= 0 {
		log.Fatal("SIM_WORKERS must be > 0")
	}

	client := &http.Client{Timeout: 10 * time.Second}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	practitionerID, err := firstPractitioner(ctx, client, cfg.APIBaseURL)
	if err != nil {
		log.Fatalf("load practitioner: %v", err)
	}

	date := nextBusinessDay(time.Now().AddDate(0, 0, 1))
	log.Printf("hammering practitioner=%s date=%s time=%s workers=%d",
		practitionerID, date.Format("2006-01-02"), cfg.Time, cfg.Workers)

	outcomes := make([]outcome, cfg.Workers)
	var wg sync.WaitGroup
	startGate := make(chan struct{})

	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-startGate
			outcomes[i] = book(ctx, client, cfg, practitionerID, date, i)
		}(i)
	}

	close(startGate)
	wg.Wait()

	report(outcomes)
}

func firstPractitioner(ctx context.Context, client *http.Client, baseURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/practitioners", nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("list practitioners returned %d", resp.StatusCode)
	}

	var practitioners []struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&practitioners); err != nil {
		return "", err
	}
	if len(practitioners) == 0 {
		return "", fmt.Errorf("no practitioners seeded, run cmd/seed first")
	}
	return practitioners[0].ID, nil
}

func book(ctx context.Context, client *http.Client, cfg simConfig, practitionerID string, date time.Time, worker int) outcome {
	payload := map[string]any{
		"patient": map[string]any{
			"first_name": "Sim",
			"last_name":  fmt.Sprintf("Worker%d", worker),
			"birth_date": "1990-01-01",
			"sex":        "O",
			"phone":      fmt.Sprintf("555-%04d", worker),
			"email":      fmt.Sprintf("sim-worker-%d@example.com", worker),
		},
		"practitioner_id": practitionerID,
		"date":            date.Format("2006-01-02"),
		"time":            cfg.Time,
		"reason":          "prueba de concurrencia",
	}
	body, _ := json.Marshal(payload)

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.APIBaseURL+"/appointments", bytes.NewReader(body))
	if err != nil {
		return outcome{err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return outcome{latency: latency, err: err}
	}
	defer resp.Body.Close()

	return outcome{status: resp.StatusCode, latency: latency}
}

func report(outcomes []outcome) {
	var created, conflicts, errors int
	latencies := make([]time.Duration, 0, len(outcomes))

	for _, o := range outcomes {
		switch {
		case o.err != nil:
			errors++
		case o.status == http.StatusCreated:
			created++
			latencies = append(latencies, o.latency)
		case o.status == http.StatusConflict:
			conflicts++
			latencies = append(latencies, o.latency)
		default:
			errors++
		}
	}

	fmt.Println("\nSIMULATION REPORT")
	fmt.Printf("  Workers:   %d\n", len(outcomes))
	fmt.Printf("  Created:   %d\n", created)
	fmt.Printf("  Conflicts: %d\n", conflicts)
	fmt.Printf("  Errors:    %d\n", errors)

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		fmt.Printf("  Latency:   avg=%s min=%s max=%s\n",
			(sum / time.Duration(len(latencies))).Round(time.Millisecond),
			latencies[0].Round(time.Millisecond),
			latencies[len(latencies)-1].Round(time.Millisecond))
	}

	if created == 1 && errors == 0 {
		fmt.Println("  Result:    OK, exactly one booking won the slot")
	} else {
		fmt.Println("  Result:    UNEXPECTED, double booking or errors detected")
	}
}

func nextBusinessDay(t time.Time) time.Time {
	for t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
