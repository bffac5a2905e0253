// main.go - Performance testing tool for the visit tracking endpoint
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"log/slog"

	v1 "visitry/api/v1"
	"visitry/internal/visitors"
)

// PerfConfig holds the configuration for the performance test
type PerfConfig struct {
	BaseURL       string
	Concurrency   int
	Duration      time.Duration
	VisitsPerSec  int
	DevicePool    int
	VerboseOutput bool
	Timeout       time.Duration
}

// PerfStats holds statistics about the performance test
type PerfStats struct {
	TotalRequests      int64
	SuccessfulRequests int64
	FailedRequests     int64
	MinLatency         time.Duration
	MaxLatency         time.Duration
	TotalLatency       time.Duration
	StatusCodes        map[int]int64
	StatusCodesMutex   sync.Mutex
	StartTime          time.Time
	EndTime            time.Time
	ResponseTimes      []time.Duration
	ResponseTimesMutex sync.Mutex
	UniqueResponses    int64
}

// Result captures the result of a single request
type Result struct {
	Duration   time.Duration
	StatusCode int
	Unique     bool
	Error      error
}

func main() {
	baseURL := flag.String("url", "http://localhost:3000", "Base URL of the API")
	concurrency := flag.Int("c", 10, "Number of concurrent clients")
	duration := flag.Duration("d", 30*time.Second, "Duration of the test")
	visitsPerSec := flag.Int("rate", 0, "Target visits per second (0 = unlimited)")
	devicePool := flag.Int("devices", 200, "Number of distinct synthetic devices")
	verbose := flag.Bool("verbose", false, "Enable verbose output")
	timeout := flag.Duration("timeout", 10*time.Second, "Request timeout")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	config := &PerfConfig{
		BaseURL:       *baseURL,
		Concurrency:   *concurrency,
		Duration:      *duration,
		VisitsPerSec:  *visitsPerSec,
		DevicePool:    *devicePool,
		VerboseOutput: *verbose,
		Timeout:       *timeout,
	}

	logger.Info("Starting performance test",
		slog.String("url", config.BaseURL),
		slog.Int("concurrency", config.Concurrency),
		slog.Duration("duration", config.Duration),
		slog.Int("devices", config.DevicePool))

	ctx, cancel := context.WithTimeout(context.Background(), config.Duration)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Interrupted, finishing up...")
		cancel()
	}()

	stats := &PerfStats{
		StatusCodes: make(map[int]int64),
		MinLatency:  time.Hour,
		StartTime:   time.Now(),
	}

	for result := range runTest(ctx, config, logger) {
		processResult(result, stats)
	}
	stats.EndTime = time.Now()

	printResults(stats)
}

// runTest starts the worker clients and fans their results into one channel
func runTest(ctx context.Context, config *PerfConfig, logger *slog.Logger) <-chan Result {
	results := make(chan Result, config.Concurrency*4)
	devices := makeDevices(config.DevicePool)

	// Optional rate limiting shared by all workers
	var throttle <-chan time.Time
	if config.VisitsPerSec > 0 {
		ticker := time.NewTicker(time.Second / time.Duration(config.VisitsPerSec))
		go func() {
			<-ctx.Done()
			ticker.Stop()
		}()
		throttle = ticker.C
	}

	var wg sync.WaitGroup
	for i := 0; i < config.Concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			client := &http.Client{Timeout: config.Timeout}

			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				if throttle != nil {
					select {
					case <-throttle:
					case <-ctx.Done():
						return
					}
				}

				result := sendVisit(client, config, devices)
				if config.VerboseOutput && result.Error != nil {
					logger.Error("Request failed", slog.Any("error", result.Error))
				}

				select {
				case results <- result:
				case <-ctx.Done():
					return
				}
			}
		}(i)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1",
}

// makeDevices builds the pool of synthetic signal tuples the workers
// replay. A bounded pool means the server sees mostly returning
// visitors, which matches real traffic.
func makeDevices(count int) []visitors.Signals {
	devices := make([]visitors.Signals, count)
	for i := range devices {
		devices[i] = visitors.Signals{
			UserAgent:      userAgents[rand.Intn(len(userAgents))],
			Language:       []string{"en-US", "de-DE", "fr-FR", "ja-JP"}[rand.Intn(4)],
			ScreenWidth:    []int{1920, 2560, 1366, 390}[rand.Intn(4)],
			ScreenHeight:   []int{1080, 1440, 768, 844}[rand.Intn(4)],
			ColorDepth:     24,
			TimezoneOffset: []int{-300, 0, 60, 540}[rand.Intn(4)],
			Platform:       []string{"Win32", "MacIntel", "Linux x86_64", "iPhone"}[rand.Intn(4)],
			CookiesEnabled: true,
			LocalStorage:   true,
			SessionStorage: true,
			CanvasHash:     fmt.Sprintf("%08x", rand.Uint32()),
		}
	}
	return devices
}

func sendVisit(client *http.Client, config *PerfConfig, devices []visitors.Signals) Result {
	params := v1.TrackVisitParams{
		Signals:   devices[rand.Intn(len(devices))],
		WithinTab: rand.Intn(4) == 0,
	}

	body, err := json.Marshal(params)
	if err != nil {
		return Result{Error: err}
	}

	req, err := http.NewRequest(http.MethodPost, config.BaseURL+"/x/api/v1/visits", bytes.NewReader(body))
	if err != nil {
		return Result{Error: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", params.Signals.UserAgent)
	// The visits endpoint only accepts browser traffic.
	req.Header.Set("Sec-Fetch-Site", "cross-site")

	start := time.Now()
	resp, err := client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return Result{Duration: elapsed, Error: err}
	}
	defer resp.Body.Close()

	var payload struct {
		Unique bool `json:"unique"`
	}
	if data, err := io.ReadAll(resp.Body); err == nil {
		json.Unmarshal(data, &payload)
	}

	return Result{
		Duration:   elapsed,
		StatusCode: resp.StatusCode,
		Unique:     payload.Unique,
	}
}

func processResult(result Result, stats *PerfStats) {
	atomic.AddInt64(&stats.TotalRequests, 1)

	if result.Error != nil || result.StatusCode >= 400 {
		atomic.AddInt64(&stats.FailedRequests, 1)
	} else {
		atomic.AddInt64(&stats.SuccessfulRequests, 1)
	}
	if result.Unique {
		atomic.AddInt64(&stats.UniqueResponses, 1)
	}

	if result.StatusCode > 0 {
		stats.StatusCodesMutex.Lock()
		stats.StatusCodes[result.StatusCode]++
		stats.StatusCodesMutex.Unlock()
	}

	stats.ResponseTimesMutex.Lock()
	stats.ResponseTimes = append(stats.ResponseTimes, result.Duration)
	stats.TotalLatency += result.Duration
	if result.Duration < stats.MinLatency {
		stats.MinLatency = result.Duration
	}
	if result.Duration > stats.MaxLatency {
		stats.MaxLatency = result.Duration
	}
	stats.ResponseTimesMutex.Unlock()
}

func printResults(stats *PerfStats) {
	elapsed := stats.EndTime.Sub(stats.StartTime)
	rps := float64(stats.TotalRequests) / elapsed.Seconds()

	var avgLatency time.Duration
	if stats.TotalRequests > 0 {
		avgLatency = stats.TotalLatency / time.Duration(stats.TotalRequests)
	}

	fmt.Println()
	fmt.Println("=== Visit Tracking Performance Test ===")
	fmt.Printf("Duration:         %v\n", elapsed.Round(time.Millisecond))
	fmt.Printf("Total requests:   %d\n", stats.TotalRequests)
	fmt.Printf("Successful:       %d\n", stats.SuccessfulRequests)
	fmt.Printf("Failed:           %d\n", stats.FailedRequests)
	fmt.Printf("Unique visitors:  %d\n", stats.UniqueResponses)
	fmt.Printf("Requests/sec:     %.1f\n", rps)
	fmt.Printf("Latency avg/min/max: %v / %v / %v\n",
		avgLatency.Round(time.Microsecond),
		stats.MinLatency.Round(time.Microsecond),
		stats.MaxLatency.Round(time.Microsecond))

	for _, percentile := range []float64{0.50, 0.90, 0.99} {
		fmt.Printf("Latency p%.0f:      %v\n", percentile*100, latencyPercentile(stats, percentile))
	}

	fmt.Println("Status codes:")
	codes := make([]int, 0, len(stats.StatusCodes))
	for code := range stats.StatusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Printf("  %d: %d\n", code, stats.StatusCodes[code])
	}
}

func latencyPercentile(stats *PerfStats, percentile float64) time.Duration {
	if len(stats.ResponseTimes) == 0 {
		return 0
	}

	sorted := make([]time.Duration, len(stats.ResponseTimes))
	copy(sorted, stats.ResponseTimes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	index := int(float64(len(sorted)-1) * percentile)
	return sorted[index].Round(time.Microsecond)
}
