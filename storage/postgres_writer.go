package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"rvrank-scraper/models"
)

// PostgresWriter persists enriched listings to PostgreSQL.
type PostgresWriter struct {
	db *sql.DB
}

// NewPostgresWriter opens a connection to PostgreSQL, runs schema
// migrations, and returns a ready-to-use PostgresWriter.
func NewPostgresWriter(dsn string) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pw := &PostgresWriter{db: db}
	if err := pw.migrate(); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pw, nil
}

func (pw *PostgresWriter) migrate() error {
	_, err := pw.db.Exec(`
		CREATE TABLE IF NOT EXISTS rv_listings (
			id                    TEXT        NOT NULL,
			search_zip            VARCHAR(10) NOT NULL,
			search_type           VARCHAR(50) NOT NULL,
			search_condition      VARCHAR(5)  NOT NULL DEFAULT '',
			rank                  INT,
			year                  INT,
			make                  TEXT        NOT NULL DEFAULT '',
			model                 TEXT        NOT NULL DEFAULT '',
			price                 NUMERIC(12,2),
			city                  TEXT        NOT NULL DEFAULT '',
			state                 VARCHAR(2)  NOT NULL DEFAULT '',
			region                VARCHAR(20) NOT NULL DEFAULT '',
			dealer_id             TEXT        NOT NULL DEFAULT '',
			dealer_name           TEXT        NOT NULL DEFAULT '',
			dealer_group          TEXT        NOT NULL DEFAULT '',
			thor_brand            TEXT        NOT NULL DEFAULT '',
			photo_count           INT         NOT NULL DEFAULT 0,
			tier                  VARCHAR(20) NOT NULL DEFAULT 'standard',
			tier_ceiling          INT         NOT NULL DEFAULT 1,
			competitive_position  VARCHAR(20) NOT NULL DEFAULT '',
			realistic_new_rank    INT         NOT NULL DEFAULT 0,
			realistic_improvement INT         NOT NULL DEFAULT 0,
			views                 INT,
			saves                 INT,
			scraped_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (id, search_zip, search_type, search_condition)
		);

		CREATE INDEX IF NOT EXISTS idx_rv_listings_dealer ON rv_listings(dealer_name);
		CREATE INDEX IF NOT EXISTS idx_rv_listings_brand  ON rv_listings(thor_brand);
		CREATE INDEX IF NOT EXISTS idx_rv_listings_region ON rv_listings(region);
		CREATE INDEX IF NOT EXISTS idx_rv_listings_rank   ON rv_listings(rank);
	`)
	return err
}

// Clear deletes all existing listings from the table.
func (pw *PostgresWriter) Clear() error {
	_, err := pw.db.Exec("DELETE FROM rv_listings")
	if err != nil {
		return fmt.Errorf("postgres: clear: %w", err)
	}
	return nil
}

// Write batch-inserts all enriched listings, replacing the previous batch.
func (pw *PostgresWriter) Write(listings []*models.Listing) error {
	if len(listings) == 0 {
		return nil
	}

	if err := pw.Clear(); err != nil {
		return err
	}

	const batchSize = 50
	for i := 0; i < len(listings); i += batchSize {
		end := i + batchSize
		if end > len(listings) {
			end = len(listings)
		}
		if err := pw.insertBatch(listings[i:end]); err != nil {
			return err
		}
	}
	return nil
}

const insertCols = 24

func (pw *PostgresWriter) insertBatch(batch []*models.Listing) error {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*insertCols)

	for idx, l := range batch {
		a := l.Analysis
		if a == nil {
			a = &models.Analysis{Tier: models.TierStandard, TierCeiling: 1}
		}

		base := idx * insertCols
		placeholders := make([]string, insertCols)
		for p := range placeholders {
			placeholders[p] = fmt.Sprintf("$%d", base+p+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")

		valueArgs = append(valueArgs,
			l.ID, l.SearchZip, l.SearchType, l.SearchCondition,
			l.Rank, l.Year, l.Make, l.Model, l.Price,
			l.City, l.State, l.Region,
			l.DealerID, l.DealerName, l.DealerGroup, l.ThorBrand,
			l.PhotoCount, string(a.Tier), a.TierCeiling, a.CompetitivePosition,
			a.RealisticNewRank, a.RealisticImprovement,
			l.Views, l.Saves,
		)
	}

	query := fmt.Sprintf(`
		INSERT INTO rv_listings (
			id, search_zip, search_type, search_condition,
			rank, year, make, model, price,
			city, state, region,
			dealer_id, dealer_name, dealer_group, thor_brand,
			photo_count, tier, tier_ceiling, competitive_position,
			realistic_new_rank, realistic_improvement,
			views, saves
		)
		VALUES %s
		ON CONFLICT (id, search_zip, search_type, search_condition) DO NOTHING
	`, strings.Join(valueStrings, ","))

	_, err := pw.db.Exec(query, valueArgs...)
	return err
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}
