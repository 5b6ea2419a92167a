// Command catalog-ingest loads supplier catalog feeds into the products
// table. Feeds are gzip-compressed JSON-lines files, one product per line,
// and routinely repeat the same product across feeds. A bloom filter drops
// the bulk of the repeats cheaply; the slug upsert absorbs the false
// negatives that slip through.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/basmalabs/storefront/internal/repository"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	batchSize     = 500
	progressEvery = 100_000
)

// feedProduct is one line of a supplier feed.
type feedProduct struct {
	Title         string           `json:"title"`
	Slug          string           `json:"slug"`
	Description   string           `json:"description"`
	Price         decimal.Decimal  `json:"price"`
	DiscountPrice *decimal.Decimal `json:"discountPrice"`
	Quantity      int              `json:"quantity"`
	Brand         string           `json:"brand"`
	Colors        []string         `json:"colors"`
	ImageCover    string           `json:"imageCover"`
	Images        []string         `json:"images"`
	Category      string           `json:"category"`
}

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.gz feed files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL); err != nil {
		slog.Error("catalog ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.gz"))
	if err != nil {
		return errors.Wrap(err, "list feed files")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.gz feed files in %s", dataDir)
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	slog.Info("ingesting feeds", slog.Int("files", len(files)))

	// Readers parse feeds concurrently; a single writer owns the bloom
	// filter and the database batches, so neither needs locking.
	products := make(chan feedProduct, batchSize)

	g, ctx := errgroup.WithContext(ctx)
	readers, ctx := errgroup.WithContext(ctx)
	for _, f := range files {
		readers.Go(readFeed(ctx, f, products))
	}
	g.Go(func() error {
		defer close(products)
		return readers.Wait()
	})

	w := &feedWriter{
		pool:       pool,
		seen:       bloom.NewWithEstimates(bloomCapacity, bloomFPR),
		categories: make(map[string]string),
	}
	g.Go(func() error { return w.consume(ctx, products) })

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("feeds ingested",
		slog.Uint64("lines", w.lines),
		slog.Uint64("written", w.written),
		slog.Uint64("duplicates", w.duplicates),
	)
	return nil
}

// readFeed streams one gzip feed file and sends parsed products downstream.
// Malformed lines are logged and skipped rather than failing the run.
func readFeed(ctx context.Context, path string, out chan<- feedProduct) func() error {
	return func() error {
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

		var lineNo uint64
		scanner := bufio.NewScanner(gz)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			lineNo++

			var p feedProduct
			if err := json.Unmarshal(scanner.Bytes(), &p); err != nil {
				slog.Warn("skipping malformed feed line",
					slog.String("file", path), slog.Uint64("line", lineNo))
				continue
			}
			if p.Slug == "" || p.Title == "" || p.Category == "" {
				slog.Warn("skipping incomplete feed line",
					slog.String("file", path), slog.Uint64("line", lineNo))
				continue
			}

			select {
			case out <- p:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := scanner.Err(); err != nil {
			return errors.Wrapf(err, "scan %s", path)
		}

		slog.Info("feed read", slog.String("file", filepath.Base(path)), slog.Uint64("lines", lineNo))
		return nil
	}
}

const upsertProductSQL = `
INSERT INTO products (id, title, slug, description, quantity, price, discount_price,
                      colors, image_cover, images, category_id, brand)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (slug) DO UPDATE SET
    title = EXCLUDED.title,
    description = EXCLUDED.description,
    quantity = EXCLUDED.quantity,
    price = EXCLUDED.price,
    discount_price = EXCLUDED.discount_price,
    updated_at = now()`

const ensureCategorySQL = `
INSERT INTO categories (id, name, slug)
VALUES ($1, $2, $3)
ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
RETURNING id`

// feedWriter dedups and batches products into the database.
type feedWriter struct {
	pool       *pgxpool.Pool
	seen       *bloom.BloomFilter
	categories map[string]string

	batch *pgx.Batch

	lines      uint64
	written    uint64
	duplicates uint64
}

func (w *feedWriter) consume(ctx context.Context, products <-chan feedProduct) error {
	w.batch = &pgx.Batch{}

	for p := range products {
		w.lines++
		if w.lines%progressEvery == 0 {
			slog.Info("ingest progress",
				slog.Uint64("lines", w.lines), slog.Uint64("written", w.written))
		}

		if w.seen.TestAndAddString(p.Slug) {
			w.duplicates++
			continue
		}

		categoryID, err := w.ensureCategory(ctx, p.Category)
		if err != nil {
			return errors.Wrapf(err, "ensure category %q", p.Category)
		}

		w.batch.Queue(upsertProductSQL,
			uuid.New().String(), p.Title, p.Slug, p.Description, p.Quantity,
			p.Price, p.DiscountPrice, p.Colors, p.ImageCover, p.Images,
			categoryID, p.Brand,
		)
		w.written++

		if w.batch.Len() >= batchSize {
			if err := w.flush(ctx); err != nil {
				return err
			}
		}
	}

	return w.flush(ctx)
}

func (w *feedWriter) flush(ctx context.Context) error {
	if w.batch.Len() == 0 {
		return nil
	}
	if err := w.pool.SendBatch(ctx, w.batch).Close(); err != nil {
		return errors.Wrap(err, "write product batch")
	}
	w.batch = &pgx.Batch{}
	return nil
}

// ensureCategory resolves a feed category name to a category id, creating
// the category on first sight.
func (w *feedWriter) ensureCategory(ctx context.Context, name string) (string, error) {
	if id, ok := w.categories[name]; ok {
		return id, nil
	}

	slug := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", "-"))

	var id string
	err := w.pool.QueryRow(ctx, ensureCategorySQL, uuid.New().String(), name, slug).Scan(&id)
	if err != nil {
		return "", err
	}

	w.categories[name] = id
	return id, nil
}
