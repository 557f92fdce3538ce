package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/hackgods/care-scheduling/internal/logging"
)

type SimConfig struct {
	APIBaseURL     string
	Slots          int
	BookersPerSlot int
	CancelRatio    float64
	Timeout        time.Duration
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95, max time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	pick := func(pct int) time.Duration {
		idx := len(latencies) * pct / 100
		if idx >= len(latencies) {
			idx = len(latencies) - 1
		}
		return latencies[idx]
	}

	return sum / time.Duration(len(latencies)), pick(50), pick(95), latencies[len(latencies)-1]
}

type Simulator struct {
	config   SimConfig
	client   *http.Client
	log      logrus.FieldLogger
	doctorID uuid.UUID
	slots    []string

	booking OperationMetrics
	cancel  OperationMetrics

	mu      sync.Mutex
	winners map[string][]uuid.UUID // slot -> appointment ids that got 201
}

func main() {
	_ = godotenv.Load()
	log := logging.New(getEnv("LOG_LEVEL", "info"))

	cfg := SimConfig{
		APIBaseURL:     strings.TrimRight(getEnv("SIM_API_BASE_URL", "http://localhost:8080"), "/"),
		Slots:          getInt("SIM_SLOTS", 16),
		BookersPerSlot: getInt("SIM_BOOKERS_PER_SLOT", 25),
		CancelRatio:    getFloat("SIM_CANCEL_RATIO", 0.25),
		Timeout:        getDuration("SIM_TIMEOUT", 2*time.Minute),
	}
	if cfg.Slots <= 0 || cfg.BookersPerSlot <= 0 {
		log.Fatal("SIM_SLOTS and SIM_BOOKERS_PER_SLOT must be > 0")
	}

	log.WithFields(logrus.Fields{
		"api":              cfg.APIBaseURL,
		"slots":            cfg.Slots,
		"bookers_per_slot": cfg.BookersPerSlot,
	}).Info("simulator starting")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	sim := &Simulator{
		config:   cfg,
		client:   &http.Client{Timeout: 10 * time.Second},
		log:      log,
		doctorID: uuid.New(),
		winners:  make(map[string][]uuid.UUID),
	}

	if err := sim.publish(ctx); err != nil {
		log.WithError(err).Fatal("publish slots")
	}
	sim.race(ctx)
	sim.cancelSome(ctx)

	if !sim.PrintReport() {
		cancel()
		os.Exit(1)
	}
}

// publish creates a fresh doctor's slots, one per hour starting tomorrow 08:00 UTC.
func (s *Simulator) publish(ctx context.Context) error {
	tomorrow := time.Now().UTC().AddDate(0, 0, 1)
	start := time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 8, 0, 0, 0, time.UTC)

	for i := 0; i < s.config.Slots; i++ {
		s.slots = append(s.slots, start.Add(time.Duration(i)*time.Hour).Format(time.RFC3339))
	}

	status, _, err := s.post(ctx, fmt.Sprintf("/doctors/%s/slots", s.doctorID), map[string]any{"date_times": s.slots})
	if err != nil {
		return err
	}
	if status != http.StatusCreated {
		return fmt.Errorf("publish returned %d", status)
	}
	s.log.WithFields(logrus.Fields{"doctor_id": s.doctorID, "slots": len(s.slots)}).Info("slots published")
	return nil
}

// race fires BookersPerSlot concurrent bookings at every slot at once.
func (s *Simulator) race(ctx context.Context) {
	start := make(chan struct{})
	var wg sync.WaitGroup

	for _, at := range s.slots {
		for i := 0; i < s.config.BookersPerSlot; i++ {
			wg.Add(1)
			go func(at string) {
				defer wg.Done()
				<-start
				s.book(ctx, at)
			}(at)
		}
	}

	began := time.Now()
	close(start)
	wg.Wait()
	s.log.WithField("elapsed", time.Since(began).Round(time.Millisecond)).Info("booking race complete")
}

func (s *Simulator) book(ctx context.Context, at string) {
	began := time.Now()
	status, body, err := s.post(ctx, "/appointments", map[string]string{
		"doctor_id":      s.doctorID.String(),
		"patient_id":     uuid.NewString(),
		"slot_date_time": at,
		"reason":         "simulated",
	})
	latency := time.Since(began)

	if err != nil {
		s.booking.Record(latency, false, false)
		return
	}

	switch status {
	case http.StatusCreated:
		var appt struct {
			ID uuid.UUID `json:"id"`
		}
		_ = json.Unmarshal(body, &appt)
		s.mu.Lock()
		s.winners[at] = append(s.winners[at], appt.ID)
		s.mu.Unlock()
		s.booking.Record(latency, true, false)
	case http.StatusConflict:
		s.booking.Record(latency, false, true)
	default:
		s.booking.Record(latency, false, false)
	}
}

// cancelSome cancels roughly CancelRatio of the winning appointments.
func (s *Simulator) cancelSome(ctx context.Context) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	s.mu.Lock()
	var ids []uuid.UUID
	for _, won := range s.winners {
		if len(won) > 0 && rng.Float64() < s.config.CancelRatio {
			ids = append(ids, won[0])
		}
	}
	s.mu.Unlock()

	for _, id := range ids {
		began := time.Now()
		status, _, err := s.post(ctx, fmt.Sprintf("/appointments/%s/transition", id), map[string]string{
			"actor_role": "staff",
			"status":     "cancelled",
		})
		s.cancel.Record(time.Since(began), err == nil && status == http.StatusOK, status == http.StatusConflict)
	}
}

func (s *Simulator) post(ctx context.Context, path string, payload any) (int, []byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+path, bytes.NewReader(data))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, buf.Bytes(), nil
}

// PrintReport prints the run and reports whether every slot had at most one winner.
func (s *Simulator) PrintReport() bool {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Doctor: %s\n", s.doctorID)
	fmt.Printf("Slots: %d, bookers per slot: %d\n\n", len(s.slots), s.config.BookersPerSlot)

	printOperationReport("Booking", &s.booking)
	printOperationReport("Cancel", &s.cancel)

	s.mu.Lock()
	defer s.mu.Unlock()

	ok := true
	for _, at := range s.slots {
		if n := len(s.winners[at]); n > 1 {
			fmt.Printf("DOUBLE BOOKING: %s won by %d requests\n", at, n)
			ok = false
		}
	}
	if ok {
		fmt.Println("No slot was booked more than once.")
	}
	return ok
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)
	avg, p50, p95, max := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s p50=%s p95=%s max=%s\n",
		avg.Round(time.Millisecond), p50.Round(time.Millisecond),
		p95.Round(time.Millisecond), max.Round(time.Millisecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
