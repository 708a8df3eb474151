package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/freemarket/basket-api/internal/domain/discount"
	"github.com/freemarket/basket-api/internal/domain/product"
	"github.com/freemarket/basket-api/internal/storage/postgres"
)

type productJSON struct {
	ID              uuid.UUID       `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	Price           decimal.Decimal `json:"price"`
	IsDiscounted    bool            `json:"isDiscounted"`
	DiscountedPrice decimal.Decimal `json:"discountedPrice"`
	StockQuantity   int             `json:"stockQuantity"`
}

func main() {
	var (
		databaseURL  string
		productsFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
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

	if err := run(ctx, databaseURL, productsFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, postgres.NewProductRepository(pool), productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedDiscounts(ctx, postgres.NewDiscountRepository(pool)); err != nil {
		return errors.Wrap(err, "seed discounts")
	}

	return nil
}

func seedProducts(ctx context.Context, repo *postgres.ProductRepository, productsFile string) error {
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

	now := time.Now().UTC()
	for _, p := range products {
		if err := repo.Upsert(ctx, &product.Product{
			ID:              p.ID,
			Name:            p.Name,
			Description:     p.Description,
			Price:           p.Price,
			IsDiscounted:    p.IsDiscounted,
			DiscountedPrice: p.DiscountedPrice,
			StockQuantity:   p.StockQuantity,
			CreatedAt:       now,
		}); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		slog.Info("upserted product", slog.String("id", p.ID.String()), slog.String("name", p.Name))
	}

	return nil
}

func seedDiscounts(ctx context.Context, repo *postgres.DiscountRepository) error {
	slog.Info("seeding discount codes")

	now := time.Now().UTC()
	discounts := []discount.Discount{
		{
			ID:         uuid.New(),
			Code:       "SAVE10",
			Percentage: decimal.NewFromInt(10),
			Active:     true,
			CreatedAt:  now,
		},
		{
			ID:         uuid.New(),
			Code:       "WELCOME5",
			Percentage: decimal.NewFromInt(5),
			Active:     true,
			CreatedAt:  now,
		},
		{
			ID:         uuid.New(),
			Code:       "EXPIRED20",
			Percentage: decimal.NewFromInt(20),
			Active:     true,
			ValidTo:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			CreatedAt:  now,
		},
	}

	for i := range discounts {
		d := &discounts[i]
		if err := repo.Upsert(ctx, d); err != nil {
			return errors.Wrapf(err, "upsert discount %s", d.Code)
		}

		slog.Info("upserted discount",
			slog.String("code", d.Code),
			slog.String("percentage", d.Percentage.String()),
		)
	}

	return nil
}
