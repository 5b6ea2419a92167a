// Command seed-db loads a small development dataset: a few categories and
// products from a JSON file, plus an admin user whose API key unlocks the
// API for local testing.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/basmalabs/storefront/internal/repository"
)

type productJSON struct {
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
		databaseURL  string
		productsFile string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&apiKey, "api-key", "", "admin API key to seed (or STORE_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or STORE_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("STORE_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or STORE_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("STORE_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedAdminUser(ctx, pool, apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed admin user")
	}

	return nil
}

const seedCategorySQL = `
INSERT INTO categories (id, name, slug, show_on_home)
VALUES ($1, $2, $3, TRUE)
ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
RETURNING id`

const seedProductSQL = `
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

func seedProducts(ctx context.Context, pool *pgxpool.Pool, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	categories := make(map[string]string)
	for _, p := range products {
		categoryID, ok := categories[p.Category]
		if !ok {
			err := pool.QueryRow(ctx, seedCategorySQL,
				uuid.New().String(), p.Category, p.Category).Scan(&categoryID)
			if err != nil {
				return errors.Wrapf(err, "upsert category %q", p.Category)
			}
			categories[p.Category] = categoryID
		}

		_, err := pool.Exec(ctx, seedProductSQL,
			uuid.New().String(), p.Title, p.Slug, p.Description, p.Quantity,
			p.Price, p.DiscountPrice, p.Colors, p.ImageCover, p.Images,
			categoryID, p.Brand,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert product %s", p.Slug)
		}

		slog.Info("upserted product", slog.String("slug", p.Slug), slog.String("title", p.Title))
	}

	return nil
}

const seedUserSQL = `
INSERT INTO users (id, name, email, role, api_key_hash)
VALUES ($1, 'Admin', 'admin@localhost', 'admin', $2)
ON CONFLICT (email) DO UPDATE SET api_key_hash = EXCLUDED.api_key_hash`

func seedAdminUser(ctx context.Context, pool *pgxpool.Pool, apiKey, pepper string) error {
	slog.Info("seeding admin user")

	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(apiKey))
	hash := hex.EncodeToString(mac.Sum(nil))

	if _, err := pool.Exec(ctx, seedUserSQL, uuid.New().String(), hash); err != nil {
		return errors.Wrap(err, "upsert admin user")
	}

	return nil
}
