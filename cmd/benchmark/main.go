package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Flags
var (
	targetURL   string
	concurrency int
	duration    time.Duration
	racers      int
	totalUsers  int
	workload    string
)

// Metrics
var (
	totalRequests uint64
	success200    uint64 // Confirmations applied
	fail409       uint64 // Conflicts (lost races)
	failOther     uint64
	doubleApplied uint64 // Rounds where more than one confirmation won
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.IntVar(&racers, "racers", 4, "Concurrent confirmations per pending repayment")
	flag.IntVar(&totalUsers, "users", 1000, "Number of seeded users")
	flag.StringVar(&workload, "workload", "uniform", "Workload type: uniform | hotspot")
}

func main() {
	flag.Parse()
	log.Printf("Starting Benchmark: %s | Workers: %d | Racers: %d | Duration: %s", workload, concurrency, racers, duration)

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		go worker(&wg, start)
	}

	wg.Wait()
	printResults(time.Since(start))
}

// worker repeatedly sets up a loan with a pending repayment and then races
// several creditor confirmations against it. Exactly one must win.
func worker(wg *sync.WaitGroup, start time.Time) {
	defer wg.Done()
	client := &http.Client{Timeout: 5 * time.Second}

	for time.Since(start) < duration {
		creditor, debtor := generateParties()

		loanID, err := setupPendingLoan(client, creditor, debtor)
		if err != nil {
			atomic.AddUint64(&failOther, 1)
			continue
		}

		var won uint64
		var race sync.WaitGroup
		race.Add(racers)
		for i := 0; i < racers; i++ {
			go func() {
				defer race.Done()
				code, err := post(client, "/api/v1/loans/"+loanID+"/repayments/confirm", creditor, nil)
				if err != nil {
					atomic.AddUint64(&failOther, 1)
					return
				}
				atomic.AddUint64(&totalRequests, 1)
				switch code {
				case http.StatusOK:
					atomic.AddUint64(&success200, 1)
					atomic.AddUint64(&won, 1)
				case http.StatusConflict:
					atomic.AddUint64(&fail409, 1)
				default:
					atomic.AddUint64(&failOther, 1)
				}
			}()
		}
		race.Wait()

		if won > 1 {
			atomic.AddUint64(&doubleApplied, 1)
		}
	}
}

func setupPendingLoan(client *http.Client, creditor, debtor string) (string, error) {
	var loan struct {
		ID string `json:"id"`
	}
	body := map[string]interface{}{
		"debtor_id":   debtor,
		"principal":   "100.00",
		"description": "benchmark",
	}
	code, err := postJSON(client, "/api/v1/loans", creditor, body, &loan)
	if err != nil {
		return "", err
	}
	if code != http.StatusCreated {
		return "", fmt.Errorf("create loan: status %d", code)
	}

	steps := []struct {
		path string
		body interface{}
	}{
		{"/api/v1/loans/" + loan.ID + "/confirm-receipt", nil},
		{"/api/v1/loans/" + loan.ID + "/repayments", map[string]string{"amount": "1.00"}},
	}
	for _, s := range steps {
		code, err := post(client, s.path, debtor, s.body)
		if err != nil {
			return "", err
		}
		if code != http.StatusOK {
			return "", fmt.Errorf("%s: status %d", s.path, code)
		}
	}
	return loan.ID, nil
}

func post(client *http.Client, path, user string, body interface{}) (int, error) {
	return postJSON(client, path, user, body, nil)
}

func postJSON(client *http.Client, path, user string, body, out interface{}) (int, error) {
	payload := []byte("{}")
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return 0, err
		}
	}

	req, err := http.NewRequest(http.MethodPost, targetURL+path, bytes.NewBuffer(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", user)

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return 0, err
		}
	}
	return resp.StatusCode, nil
}

// generateParties picks a creditor and a distinct debtor among the seeded
// users (user-0001 .. user-N).
func generateParties() (string, string) {
	if workload == "hotspot" {
		// Hotspot: 90% of loans are between users 1 and 2
		if rand.Float32() < 0.90 {
			if rand.Float32() < 0.5 {
				return userID(1), userID(2)
			}
			return userID(2), userID(1)
		}
	}

	// Uniform Random
	a := rand.Intn(totalUsers) + 1
	b := rand.Intn(totalUsers) + 1
	for a == b {
		b = rand.Intn(totalUsers) + 1
	}
	return userID(a), userID(b)
}

func userID(i int) string {
	return fmt.Sprintf("user-%04d", i)
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalRequests)
	s200 := atomic.LoadUint64(&success200)
	f409 := atomic.LoadUint64(&fail409)
	fErr := atomic.LoadUint64(&failOther)
	doubles := atomic.LoadUint64(&doubleApplied)

	tps := float64(total) / d.Seconds()
	var abortRate float64
	if total > 0 {
		abortRate = float64(f409) / float64(total) * 100
	}

	results := map[string]interface{}{
		"workload":        workload,
		"duration_sec":    d.Seconds(),
		"total_requests":  total,
		"throughput_tps":  tps,
		"confirmed":       s200,
		"aborts_conflict": f409,
		"abort_rate_pct":  abortRate,
		"double_applied":  doubles,
		"errors":          fErr,
	}

	// Summary on stdout, full copy on disk
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	filename := fmt.Sprintf("results_%s.json", workload)
	file, err := os.Create(filename)
	if err != nil {
		log.Printf("Saving results failed: %v", err)
		return
	}
	json.NewEncoder(file).Encode(results)
	file.Close()

	if doubles > 0 {
		log.Printf("FAIL: %d repayments were confirmed more than once", doubles)
		os.Exit(1)
	}
}
