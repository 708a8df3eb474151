// promo-ingest loads bulk promo code exports into the discounts table.
// Each input file is a gzip-compressed list of codes, one per line. Files are
// streamed concurrently; a bloom filter keeps already-ingested codes from
// being upserted twice within a run.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/freemarket/basket-api/internal/domain/discount"
	"github.com/freemarket/basket-api/internal/storage/postgres"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	progressEvery = 1_000_000
	minCodeLen    = 4
	maxCodeLen    = 32
)

func main() {
	var (
		dataDir     string
		databaseURL string
		percentage  string
		validDays   int
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.gz promo code files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&percentage, "percentage", "10", "discount percentage applied to ingested codes")
	flag.IntVar(&validDays, "valid-days", 0, "validity window in days (0 = no expiry)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	pct, err := decimal.NewFromString(percentage)
	if err != nil || !pct.IsPositive() || pct.GreaterThan(decimal.NewFromInt(100)) {
		slog.Error("percentage must be a decimal in (0, 100]", slog.String("value", percentage))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL, pct, validDays); err != nil {
		slog.Error("promo ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("promo ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string, pct decimal.Decimal, validDays int) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.gz"))
	if err != nil {
		return errors.Wrap(err, "glob data dir")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.gz files found in %s", dataDir)
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	repo := postgres.NewDiscountRepository(pool)

	var validTo time.Time
	if validDays > 0 {
		validTo = time.Now().UTC().AddDate(0, 0, validDays)
	}

	// Dedupe across all files: the filter is checked and updated under a
	// mutex shared by the reader goroutines.
	var (
		mu     sync.Mutex
		seen   = bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		codes  = make(chan string, 1024)
		stats  ingestStats
		writer = make(chan error, 1)
	)

	readCtx, cancelRead := context.WithCancel(ctx)
	defer cancelRead()

	go func() {
		err := writeDiscounts(ctx, repo, codes, pct, validTo, &stats)
		if err != nil {
			// Unblock readers still pushing into the channel.
			cancelRead()
		}
		writer <- err
	}()

	g, gctx := errgroup.WithContext(readCtx)
	for _, path := range files {
		g.Go(func() error {
			return streamGzFile(gctx, path, func(code string) {
				if len(code) < minCodeLen || len(code) > maxCodeLen {
					return
				}
				mu.Lock()
				dup := seen.TestOrAddString(code)
				mu.Unlock()
				if dup {
					return
				}
				select {
				case codes <- code:
				case <-gctx.Done():
				}
			})
		})
	}

	readErr := g.Wait()
	close(codes)
	writeErr := <-writer

	slog.Info("ingest finished",
		slog.Uint64("written", stats.written.Load()),
		slog.Int("files", len(files)),
	)

	if readErr != nil {
		return errors.Wrap(readErr, "read promo files")
	}
	return writeErr
}

type ingestStats struct {
	written atomic.Uint64
}

// writeDiscounts drains the codes channel, upserting one discount per code.
func writeDiscounts(
	ctx context.Context,
	repo *postgres.DiscountRepository,
	codes <-chan string,
	pct decimal.Decimal,
	validTo time.Time,
	stats *ingestStats,
) error {
	now := time.Now().UTC()
	for code := range codes {
		d := &discount.Discount{
			ID:         uuid.New(),
			Code:       code,
			Percentage: pct,
			Active:     true,
			ValidTo:    validTo,
			CreatedAt:  now,
		}
		if err := repo.Upsert(ctx, d); err != nil {
			return errors.Wrapf(err, "upsert discount %s", code)
		}

		if n := stats.written.Add(1); n%progressEvery == 0 {
			slog.Info("write progress", slog.Uint64("written", n))
		}
	}
	return nil
}

// streamGzFile opens a gzip-compressed file and calls fn for each trimmed,
// non-empty line.
func streamGzFile(ctx context.Context, path string, fn func(code string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	var count uint64
	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		code := strings.TrimSpace(scanner.Text())
		if code == "" {
			continue
		}
		fn(code)

		count++
		if count%progressEvery == 0 {
			slog.Info("read progress", slog.String("file", filepath.Base(path)), slog.Uint64("codes", count))
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}
