// Package chain provides a deterministic synthetic contract source. It stands
// in for the on-chain reader in development and test environments: records are
// generated from a fixed seed so runs are reproducible, with optional latency
// and failure injection.
package chain

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coalesced/showgate/errs"
	"github.com/coalesced/showgate/internal/query"
	"github.com/coalesced/showgate/internal/schema"
)

// Options configures the synthetic dataset and its failure model.
type Options struct {
	// Shows is the number of synthetic records. Zero means a small default set.
	Shows int
	// Latency delays every simulated contract call.
	Latency time.Duration
	// FailEvery makes every Nth call fail with an unavailable error. Zero
	// disables injection.
	FailEvery int
}

const defaultShows = 8

var venues = [...]string{"Grand Hall", "Riverside Stage", "Warehouse 12", "Atrium"}

// Source implements the contract-side collaborator with synthetic data.
type Source struct {
	opts   Options
	logger *slog.Logger
	base   time.Time

	mu      sync.Mutex
	calls   int
	list    *callState[[]schema.Show]
	details map[string]*callState[*schema.Show]
}

// NewSource builds a synthetic source. The dataset is derived from opts alone.
func NewSource(opts Options, logger *slog.Logger) *Source {
	if opts.Shows <= 0 {
		opts.Shows = defaultShows
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		opts:    opts,
		logger:  logger,
		base:    time.Date(2026, time.January, 1, 19, 0, 0, 0, time.UTC),
		details: make(map[string]*callState[*schema.Show]),
	}
}

// AllShows reports the synthetic enumeration state.
func (s *Source) AllShows(context.Context) query.State[[]schema.Show] {
	s.mu.Lock()
	if s.list == nil {
		s.list = newCall(s, func() ([]schema.Show, error) {
			return s.dataset(), nil
		})
	}
	st := s.list
	s.mu.Unlock()
	return st.snapshot()
}

// Show reports the synthetic detail state for one id.
func (s *Source) Show(_ context.Context, id string) query.State[*schema.Show] {
	s.mu.Lock()
	st, ok := s.details[id]
	if !ok {
		st = newCall(s, func() (*schema.Show, error) {
			for _, record := range s.dataset() {
				if record.ID == id {
					return record.Clone(), nil
				}
			}
			return nil, errs.New(errs.SourceContract, errs.CodeNotFound,
				errs.WithMessage("show "+id+" does not exist on chain"))
		})
		s.details[id] = st
	}
	s.mu.Unlock()
	return st.snapshot()
}

// dataset synthesizes the full record set. Every field is a pure function of
// the record index.
func (s *Source) dataset() []schema.Show {
	records := make([]schema.Show, 0, s.opts.Shows)
	for i := 0; i < s.opts.Shows; i++ {
		n := i + 1
		records = append(records, schema.Show{
			ID:          fmt.Sprintf("%d", n),
			Name:        fmt.Sprintf("Synthetic Show #%d", n),
			Description: fmt.Sprintf("Deterministic fixture record %d", n),
			Location:    venues[i%len(venues)],
			StartTime:   s.base.AddDate(0, 0, i*7),
			TicketPrice: decimal.NewFromInt(int64(1000 + 250*i)),
			MaxTickets:  decimal.NewFromInt(int64(100 + 50*i)),
			SoldTickets: decimal.NewFromInt(int64(10 * i)),
			Organizer:   fmt.Sprintf("0x%040x", n),
			IsActive:    i%3 != 2,
			Status:      i % 3,
			MetadataURI: fmt.Sprintf("ipfs://show-%d", n),
		})
	}
	return records
}

// injectFailure decides whether this call fails, counting calls globally.
func (s *Source) injectFailure() error {
	if s.opts.FailEvery <= 0 {
		return nil
	}
	s.mu.Lock()
	s.calls++
	fail := s.calls%s.opts.FailEvery == 0
	s.mu.Unlock()
	if !fail {
		return nil
	}
	return errs.New(errs.SourceContract, errs.CodeUnavailable,
		errs.WithMessage("injected chain read failure"))
}

// callState tracks one simulated contract call. The produce function runs on
// its own goroutine after the configured latency.
type callState[T any] struct {
	mu       sync.Mutex
	state    query.State[T]
	inFlight bool
	run      func()
}

func newCall[T any](s *Source, produce func() (T, error)) *callState[T] {
	st := &callState[T]{}
	st.state.Loading = true
	st.state.Fetching = true
	st.state.Refetch = st.refetch
	st.run = func() {
		if s.opts.Latency > 0 {
			time.Sleep(s.opts.Latency)
		}
		var data T
		err := s.injectFailure()
		if err == nil {
			data, err = produce()
		}

		st.mu.Lock()
		defer st.mu.Unlock()
		st.inFlight = false
		st.state.Loading = false
		st.state.Fetching = false
		if err != nil {
			st.state.Err = err
			s.logger.Debug("synthetic chain call failed", "error", err)
			return
		}
		st.state.Data = data
		st.state.Err = nil
	}
	st.start()
	return st
}

func (c *callState[T]) snapshot() query.State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *callState[T]) refetch() {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return
	}
	c.state.Fetching = true
	c.mu.Unlock()
	c.start()
}

func (c *callState[T]) start() {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return
	}
	c.inFlight = true
	c.mu.Unlock()
	go c.run()
}
