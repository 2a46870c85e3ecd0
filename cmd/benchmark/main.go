// Command benchmark drives concurrent cashier sessions against a running API
// and reports how postings fare under contention.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"github.com/punchamoorthee/wastebank/internal/logging"
)

type options struct {
	baseURL    string
	workers    int
	duration   time.Duration
	workload   string
	token      string
	codeFormat string
	wasteType  string
	members    int
	depositPct float64
}

// tally counts outcomes for one posting kind.
type tally struct {
	posted   atomic.Uint64
	conflict atomic.Uint64
	rejected atomic.Uint64
	failed   atomic.Uint64
}

func (t *tally) record(status int) {
	switch status {
	case http.StatusCreated:
		t.posted.Add(1)
	case http.StatusConflict:
		t.conflict.Add(1)
	case http.StatusUnprocessableEntity:
		t.rejected.Add(1)
	default:
		t.failed.Add(1)
	}
}

type kindResult struct {
	Posted   uint64 `json:"posted"`
	Conflict uint64 `json:"conflict"`
	Rejected uint64 `json:"rejected"`
	Failed   uint64 `json:"failed"`
}

func (t *tally) snapshot() kindResult {
	return kindResult{
		Posted:   t.posted.Load(),
		Conflict: t.conflict.Load(),
		Rejected: t.rejected.Load(),
		Failed:   t.failed.Load(),
	}
}

type results struct {
	Workload     string     `json:"workload"`
	Workers      int        `json:"workers"`
	DurationSec  float64    `json:"duration_sec"`
	Postings     uint64     `json:"postings"`
	Throughput   float64    `json:"throughput_tps"`
	ConflictRate float64    `json:"conflict_rate_pct"`
	SetupErrors  uint64     `json:"setup_errors"`
	Deposits     kindResult `json:"deposits"`
	Withdrawals  kindResult `json:"withdrawals"`
}

type bench struct {
	opts        options
	client      *http.Client
	logger      *slog.Logger
	deposits    tally
	withdrawals tally
	setupErrors atomic.Uint64
}

func main() {
	var o options
	flag.StringVar(&o.baseURL, "url", "http://localhost:8080", "API base URL")
	flag.IntVar(&o.workers, "workers", 10, "concurrent cashier sessions")
	flag.DurationVar(&o.duration, "duration", 30*time.Second, "test duration")
	flag.StringVar(&o.workload, "workload", "uniform", "member selection: uniform | hotspot")
	flag.StringVar(&o.token, "token", os.Getenv("WASTEBANK_TOKEN"), "operator bearer token")
	flag.StringVar(&o.codeFormat, "code-format", "NSB%05d", "member code format used by the seeder")
	flag.StringVar(&o.wasteType, "waste-type", "", "waste type id used for deposits")
	flag.IntVar(&o.members, "members", 200, "number of seeded members")
	flag.Float64Var(&o.depositPct, "deposit-ratio", 0.5, "share of postings that are deposits")
	flag.Parse()

	logger := logging.Setup(os.Getenv("LOG_LEVEL"))
	if o.wasteType == "" {
		logger.Error("-waste-type is required")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, o.duration)
	defer cancel()

	b := &bench{
		opts:   o,
		client: &http.Client{Timeout: 5 * time.Second},
		logger: logger,
	}
	logger.Info("benchmark starting", "workload", o.workload, "workers", o.workers, "duration", o.duration)

	start := time.Now()
	var wg sync.WaitGroup
	for range o.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.cashier(ctx)
		}()
	}
	wg.Wait()

	if err := b.report(time.Since(start)); err != nil {
		logger.Error("write results", "error", err)
		os.Exit(1)
	}
}

// cashier runs one session until ctx ends: select a member, then post a
// deposit or a withdrawal for them.
func (b *bench) cashier(ctx context.Context) {
	var opened struct {
		ID string `json:"id"`
	}
	if status := b.call(ctx, http.MethodPost, "/api/v1/sessions", nil, &opened); status != http.StatusCreated {
		b.logger.Warn("open session failed", "status", status)
		b.setupErrors.Add(1)
		return
	}
	base := "/api/v1/sessions/" + opened.ID
	defer b.call(context.Background(), http.MethodDelete, base, nil, nil)

	for ctx.Err() == nil {
		sel := map[string]string{"code": b.pickMember()}
		if status := b.call(ctx, http.MethodPut, base+"/member", sel, nil); status != http.StatusOK {
			b.setupErrors.Add(1)
			continue
		}

		if rand.Float64() < b.opts.depositPct {
			line := map[string]any{"waste_type_id": b.opts.wasteType, "weight_kg": "1.5"}
			if status := b.call(ctx, http.MethodPost, base+"/lines", line, nil); status != http.StatusOK {
				b.setupErrors.Add(1)
				continue
			}
			b.deposits.record(b.call(ctx, http.MethodPost, base+"/deposit", nil, nil))
		} else {
			b.withdrawals.record(b.call(ctx, http.MethodPost, base+"/withdrawal", map[string]any{"amount": 1000}, nil))
		}
	}
}

// call returns the response status, or 0 when the request never completed.
func (b *bench) call(ctx context.Context, method, path string, payload, out any) int {
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			return 0
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, b.opts.baseURL+path, &body)
	if err != nil {
		return 0
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+b.opts.token)

	resp, err := b.client.Do(req)
	if err != nil {
		return 0
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return 0
		}
	}
	return resp.StatusCode
}

// pickMember sends 90% of hotspot traffic to the first two members.
func (b *bench) pickMember() string {
	if b.opts.workload == "hotspot" && rand.Float64() < 0.9 {
		return fmt.Sprintf(b.opts.codeFormat, rand.IntN(2)+1)
	}
	return fmt.Sprintf(b.opts.codeFormat, rand.IntN(b.opts.members)+1)
}

func (b *bench) report(elapsed time.Duration) error {
	r := results{
		Workload:    b.opts.workload,
		Workers:     b.opts.workers,
		DurationSec: elapsed.Seconds(),
		SetupErrors: b.setupErrors.Load(),
		Deposits:    b.deposits.snapshot(),
		Withdrawals: b.withdrawals.snapshot(),
	}
	var conflicts uint64
	for _, k := range []kindResult{r.Deposits, r.Withdrawals} {
		r.Postings += k.Posted + k.Conflict + k.Rejected + k.Failed
		conflicts += k.Conflict
	}
	r.Throughput = float64(r.Postings) / elapsed.Seconds()
	if r.Postings > 0 {
		r.ConflictRate = float64(conflicts) / float64(r.Postings) * 100
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return err
	}

	f, err := os.Create(fmt.Sprintf("results_%s.json", b.opts.workload))
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(r)
}
