package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hackgods/turnos-scheduling/internal/api"
	"github.com/hackgods/turnos-scheduling/internal/appointment"
	"github.com/hackgods/turnos-scheduling/internal/config"
	"github.com/hackgods/turnos-scheduling/internal/db"
	"github.com/hackgods/turnos-scheduling/internal/logging"
)

type SimConfig struct {
	APIBaseURL      string
	Duration        time.Duration
	Workers         int
	BookingRatio    float64
	TransitionRatio float64
	ReadRatio       float64
	PatientLimit    int
	PhysicianLimit  int
	HorizonDays     int
	PostgresDSN     string
	JWTSecret       string
}

type DataPool struct {
	Patients   []string
	Physicians []string
	Slots      []string
	Dates      []string

	mu           sync.RWMutex
	appointments []bookedRef
}

type bookedRef struct {
	ID      uuid.UUID
	Patient string
}

func (dp *DataPool) AddAppointment(ref bookedRef) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, ref)
}

func (dp *DataPool) RandomAppointment(rng *rand.Rand) (bookedRef, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return bookedRef{}, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
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

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]
	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Booking       OperationMetrics
	Transition    OperationMetrics
	ReadByID      OperationMetrics
	ListByPatient OperationMetrics
	Calendar      OperationMetrics
	Availability  OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	log     *zap.Logger
	metrics Metrics
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(baseCfg.Env, baseCfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg := loadConfig(baseCfg)
	if err := validateConfig(cfg); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	logger.Info("simulator starting",
		zap.Duration("duration", cfg.Duration),
		zap.Int("workers", cfg.Workers),
		zap.Float64("booking", cfg.BookingRatio),
		zap.Float64("transition", cfg.TransitionRatio),
		zap.Float64("read", cfg.ReadRatio),
	)

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sim.pool, err = sim.loadDataPool(ctx)
	if err != nil {
		logger.Fatal("load data pool", zap.Error(err))
	}
	logger.Info("data pool ready",
		zap.Int("patients", len(sim.pool.Patients)),
		zap.Int("physicians", len(sim.pool.Physicians)),
		zap.Int("slots", len(sim.pool.Slots)),
		zap.Int("dates", len(sim.pool.Dates)),
	)

	sim.Run()
	sim.PrintReport()

	doubles, err := sim.VerifyNoDoubleBooking(context.Background())
	if err != nil {
		logger.Fatal("verification failed", zap.Error(err))
	}
	if doubles > 0 {
		logger.Error("double bookings detected", zap.Int("count", doubles))
		os.Exit(2)
	}
	logger.Info("no double bookings detected")
}

func loadConfig(base config.Config) SimConfig {
	cfg := SimConfig{
		APIBaseURL:      getEnv("SIM_API_BASE_URL", "http://localhost:"+base.HTTPPort),
		Duration:        getDuration("SIM_DURATION", 30*time.Second),
		Workers:         getInt("SIM_WORKERS", 10),
		BookingRatio:    getFloat("SIM_BOOKING_RATIO", 0.5),
		TransitionRatio: getFloat("SIM_TRANSITION_RATIO", 0.2),
		ReadRatio:       getFloat("SIM_READ_RATIO", 0.3),
		PatientLimit:    getInt("SIM_PATIENT_LIMIT", 2000),
		PhysicianLimit:  getInt("SIM_PHYSICIAN_LIMIT", 10),
		HorizonDays:     getInt("SIM_HORIZON_DAYS", 5),
		PostgresDSN:     base.PostgresDSN,
		JWTSecret:       base.JWTSecret,
	}

	// Normalize ratios
	total := cfg.BookingRatio + cfg.TransitionRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.TransitionRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.HorizonDays <= 0 {
		return fmt.Errorf("SIM_HORIZON_DAYS must be > 0")
	}
	if cfg.PatientLimit <= 0 || cfg.PhysicianLimit <= 0 {
		return fmt.Errorf("SIM_PATIENT_LIMIT and SIM_PHYSICIAN_LIMIT must be > 0")
	}
	return nil
}

// loadDataPool takes refs from the seeded profile tables when Postgres is
// configured and makes them up otherwise. The slot catalog always comes from
// the API.
func (s *Simulator) loadDataPool(ctx context.Context) (*DataPool, error) {
	dp := &DataPool{}

	var catalog api.CatalogEnvelope
	if code, err := s.call(ctx, http.MethodGet, "/slots", nil, appointment.Actor{}, &catalog); err != nil {
		return nil, fmt.Errorf("load slot catalog: %w", err)
	} else if code != http.StatusOK || len(catalog.Slots) == 0 {
		return nil, fmt.Errorf("load slot catalog: status %d", code)
	}
	dp.Slots = catalog.Slots

	tomorrow := time.Now().UTC().AddDate(0, 0, 1)
	for i := 0; i < s.config.HorizonDays; i++ {
		dp.Dates = append(dp.Dates, tomorrow.AddDate(0, 0, i).Format(appointment.DateLayout))
	}

	if s.config.PostgresDSN == "" {
		for i := 0; i < s.config.PatientLimit; i++ {
			dp.Patients = append(dp.Patients, uuid.NewString())
		}
		for i := 0; i < s.config.PhysicianLimit; i++ {
			dp.Physicians = append(dp.Physicians, uuid.NewString())
		}
		return dp, nil
	}

	pool, err := db.ConnectPostgres(ctx, s.config.PostgresDSN, db.PoolOptions{MaxConns: 2})
	if err != nil {
		return nil, err
	}
	defer pool.Close()

	if dp.Patients, err = loadIDs(ctx, pool, `SELECT id FROM patients LIMIT $1`, s.config.PatientLimit); err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	if dp.Physicians, err = loadIDs(ctx, pool, `SELECT id FROM physicians LIMIT $1`, s.config.PhysicianLimit); err != nil {
		return nil, fmt.Errorf("load physicians: %w", err)
	}
	if len(dp.Patients) == 0 || len(dp.Physicians) == 0 {
		return nil, fmt.Errorf("no profiles loaded; run cmd/seed first")
	}
	return dp, nil
}

func loadIDs(ctx context.Context, pool *pgxpool.Pool, sql string, limit int) ([]string, error) {
	rows, err := pool.Query(ctx, sql, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.log.Info("starting simulation", zap.Duration("duration", s.config.Duration), zap.Int("workers", s.config.Workers))

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.log.Info("simulation complete")
}

var visitReasons = []string{
	"Routine checkup",
	"Follow-up visit",
	"Lab results review",
	"Prescription renewal",
	"New symptoms",
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	seed := time.Now().UnixNano() + int64(workerID)
	rng := rand.New(rand.NewSource(seed))
	faker := gofakeit.New(uint64(seed))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.BookingRatio:
				s.doBooking(ctx, rng, faker)
			case r < s.config.BookingRatio+s.config.TransitionRatio:
				s.doTransition(ctx, rng)
			default:
				switch rng.Intn(4) {
				case 0:
					s.doReadByID(ctx, rng)
				case 1:
					s.doListByPatient(ctx, rng)
				case 2:
					s.doCalendar(ctx, rng)
				case 3:
					s.doAvailability(ctx, rng)
				}
			}
		}
	}
}

func pick(rng *rand.Rand, from []string) string {
	return from[rng.Intn(len(from))]
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand, faker *gofakeit.Faker) {
	patient := pick(rng, s.pool.Patients)
	body := api.BookAppointmentRequest{
		PhysicianRef: pick(rng, s.pool.Physicians),
		PatientRef:   patient,
		Date:         pick(rng, s.pool.Dates),
		Slot:         pick(rng, s.pool.Slots),
		Reason:       faker.RandomString(visitReasons),
	}

	start := time.Now()
	var env api.AppointmentEnvelope
	code, err := s.call(ctx, http.MethodPost, "/appointments", body, appointment.Actor{Role: appointment.RolePatient, Ref: patient}, &env)
	latency := time.Since(start)

	success := err == nil && code == http.StatusCreated
	if success {
		s.pool.AddAppointment(bookedRef{ID: env.Appointment.ID, Patient: patient})
	}
	s.metrics.Booking.Record(latency, success, err == nil && code == http.StatusConflict)
}

// doTransition either lets the patient cancel or moves the appointment one
// step forward as the front desk. Conflicts here are illegal transitions.
func (s *Simulator) doTransition(ctx context.Context, rng *rand.Rand) {
	ref, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}

	actor := appointment.Actor{Role: appointment.RoleSecretary}
	target := []appointment.Status{
		appointment.StatusConfirmed,
		appointment.StatusInProgress,
		appointment.StatusCompleted,
		appointment.StatusNoShow,
	}[rng.Intn(4)]
	if rng.Intn(5) == 0 {
		actor = appointment.Actor{Role: appointment.RolePatient, Ref: ref.Patient}
		target = appointment.StatusCancelled
	}

	start := time.Now()
	code, err := s.call(ctx, http.MethodPost, "/appointments/"+ref.ID.String()+"/status",
		api.ChangeStatusRequest{Status: string(target)}, actor, nil)
	latency := time.Since(start)

	conflict := err == nil && (code == http.StatusConflict || code == http.StatusForbidden)
	s.metrics.Transition.Record(latency, err == nil && code == http.StatusOK, conflict)
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	ref, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	code, err := s.call(ctx, http.MethodGet, "/appointments/"+ref.ID.String(), nil,
		appointment.Actor{Role: appointment.RolePatient, Ref: ref.Patient}, nil)
	s.metrics.ReadByID.Record(time.Since(start), err == nil && code == http.StatusOK, false)
}

func (s *Simulator) doListByPatient(ctx context.Context, rng *rand.Rand) {
	patient := pick(rng, s.pool.Patients)

	start := time.Now()
	code, err := s.call(ctx, http.MethodGet, "/appointments", nil,
		appointment.Actor{Role: appointment.RolePatient, Ref: patient}, nil)
	s.metrics.ListByPatient.Record(time.Since(start), err == nil && code == http.StatusOK, false)
}

func (s *Simulator) doCalendar(ctx context.Context, rng *rand.Rand) {
	physician := pick(rng, s.pool.Physicians)
	d, _ := time.Parse(appointment.DateLayout, pick(rng, s.pool.Dates))

	start := time.Now()
	code, err := s.call(ctx, http.MethodGet, fmt.Sprintf("/calendar/%d/%d", d.Year(), int(d.Month())), nil,
		appointment.Actor{Role: appointment.RolePhysician, Ref: physician}, nil)
	s.metrics.Calendar.Record(time.Since(start), err == nil && code == http.StatusOK, false)
}

func (s *Simulator) doAvailability(ctx context.Context, rng *rand.Rand) {
	path := fmt.Sprintf("/physicians/%s/availability?date=%s",
		url.PathEscape(pick(rng, s.pool.Physicians)), pick(rng, s.pool.Dates))

	start := time.Now()
	code, err := s.call(ctx, http.MethodGet, path, nil, appointment.Actor{Role: appointment.RoleSecretary}, nil)
	s.metrics.Availability.Record(time.Since(start), err == nil && code == http.StatusOK, false)
}

// VerifyNoDoubleBooking reads every simulated physician's ledger back and
// counts (date, slot) pairs held by more than one active appointment.
func (s *Simulator) VerifyNoDoubleBooking(ctx context.Context) (int, error) {
	secretary := appointment.Actor{Role: appointment.RoleSecretary}
	doubles := 0

	for _, physician := range s.pool.Physicians {
		q := url.Values{}
		q.Set("physician", physician)
		q.Set("from", s.pool.Dates[0])
		q.Set("to", s.pool.Dates[len(s.pool.Dates)-1])

		var list api.AppointmentListEnvelope
		code, err := s.call(ctx, http.MethodGet, "/appointments?"+q.Encode(), nil, secretary, &list)
		if err != nil {
			return 0, err
		}
		if code != http.StatusOK {
			return 0, fmt.Errorf("list appointments for %s: status %d", physician, code)
		}

		held := make(map[string]int)
		for _, a := range list.Appointments {
			if a.Status == string(appointment.StatusCancelled) {
				continue
			}
			key := a.Date + " " + a.Slot
			held[key]++
			if held[key] == 2 {
				doubles++
				s.log.Error("slot held twice",
					zap.String("physician_ref", physician),
					zap.String("date", a.Date),
					zap.String("slot", a.Slot),
				)
			}
		}
	}
	return doubles, nil
}

// call sends one request as actor and decodes the JSON response into out when
// out is non-nil.
func (s *Simulator) call(ctx context.Context, method, path string, body any, actor appointment.Actor, out any) (int, error) {
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			return 0, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, &payload)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if err := s.authenticate(req, actor); err != nil {
		return 0, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return resp.StatusCode, nil
}

func (s *Simulator) authenticate(req *http.Request, actor appointment.Actor) error {
	if actor.Role == "" {
		return nil
	}
	if s.config.JWTSecret == "" {
		req.Header.Set(api.HeaderActorRole, string(actor.Role))
		req.Header.Set(api.HeaderActorRef, actor.Ref)
		return nil
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, api.ActorClaims{
		Role: string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.Ref,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(5 * time.Minute)),
		},
	})
	signed, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+signed)
	return nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Status change", &s.metrics.Transition)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
	printOperationReport("List by Patient", &s.metrics.ListByPatient)
	printOperationReport("Month calendar", &s.metrics.Calendar)
	printOperationReport("Availability", &s.metrics.Availability)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Rejected: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
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
