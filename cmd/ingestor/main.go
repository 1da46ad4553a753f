package main

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mjashworth/priceframe/internal/pkg/config"
)

// Price-paid CSV column layout, as published.
const (
	ppTransactionID = 0
	ppPrice         = 1
	ppDate          = 2
	ppPostcode      = 3
	ppPropertyType  = 4
	ppNewBuild      = 5
	ppTenure        = 6
	ppLocality      = 10
	ppTownCity      = 11
	ppDistrict      = 12
	ppCounty        = 13
	ppFieldCount    = 16
)

// Open postcode geo CSV column layout.
const (
	pcPostcode   = 0
	pcStatus     = 1
	pcCountry    = 6
	pcLatitude   = 7
	pcLongitude  = 8
	pcFieldCount = 9
)

func main() {
	cfg, err := config.Load("priceframe-ingestor")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	mode := "all"
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	client := &http.Client{Timeout: 30 * time.Minute}

	switch mode {
	case "prices":
		ingestPrices(ctx, pool, client, cfg)
	case "postcodes":
		ingestPostcodes(ctx, pool, client, cfg)
	case "all":
		ingestPostcodes(ctx, pool, client, cfg)
		ingestPrices(ctx, pool, client, cfg)
	default:
		log.Fatalf("usage: ingestor <prices|postcodes|all>")
	}

	log.Println("ingestion complete")
}

// ---------------------------------------------------------------------------
// Price-paid data, one published CSV per year
// ---------------------------------------------------------------------------

func ingestPrices(ctx context.Context, pool *pgxpool.Pool, client *http.Client, cfg *config.Config) {
	endYear := time.Now().UTC().Year()
	log.Printf("ingesting price-paid data %d-%d", cfg.Ingest.StartYear, endYear)

	var wg sync.WaitGroup
	sem := make(chan struct{}, 2) // max 2 concurrent year downloads

	for year := cfg.Ingest.StartYear; year <= endYear; year++ {
		wg.Add(1)
		go func(year int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := ingestYear(ctx, pool, client, cfg, year); err != nil {
				log.Printf("ERROR [%d]: %v", year, err)
			}
		}(year)
	}
	wg.Wait()
}

func ingestYear(ctx context.Context, pool *pgxpool.Pool, client *http.Client, cfg *config.Config, year int) error {
	url := fmt.Sprintf("%s%d.csv", cfg.Ingest.PricePaidURLPrefix, year)
	log.Printf("[%d] downloading %s", year, url)

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d for %s", resp.StatusCode, url)
	}

	reader := csv.NewReader(resp.Body)
	reader.FieldsPerRecord = ppFieldCount
	reader.LazyQuotes = true

	const batchSize = 5000
	rows := make([][]any, 0, batchSize)
	total := 0

	flush := func() error {
		if len(rows) == 0 {
			return nil
		}
		if err := copyPriceRows(ctx, pool, rows); err != nil {
			return err
		}
		total += len(rows)
		rows = rows[:0]
		return nil
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Published files occasionally carry broken rows.
			continue
		}

		price, err := strconv.ParseInt(record[ppPrice], 10, 64)
		if err != nil {
			continue
		}
		d, err := time.ParseInLocation("2006-01-02 15:04", record[ppDate], time.UTC)
		if err != nil {
			continue
		}
		postcode := strings.TrimSpace(record[ppPostcode])
		if postcode == "" {
			continue
		}

		rows = append(rows, []any{
			strings.Trim(record[ppTransactionID], "{}"),
			price,
			d,
			postcode,
			record[ppPropertyType],
			record[ppNewBuild],
			record[ppTenure],
			record[ppLocality],
			record[ppTownCity],
			record[ppDistrict],
			record[ppCounty],
		})
		if len(rows) >= batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	log.Printf("[%d] loaded %d transactions", year, total)
	return nil
}

func copyPriceRows(ctx context.Context, pool *pgxpool.Pool, rows [][]any) error {
	// COPY into a temp table, then upsert so re-running a year is safe.
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		CREATE TEMP TABLE pp_stage (LIKE pp_data INCLUDING DEFAULTS) ON COMMIT DROP
	`); err != nil {
		return fmt.Errorf("stage table: %w", err)
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"pp_stage"},
		[]string{"transaction_id", "price", "date_of_transfer", "postcode",
			"property_type", "new_build_flag", "tenure_type",
			"locality", "town_city", "district", "county"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("copy: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO pp_data SELECT * FROM pp_stage
		ON CONFLICT (transaction_id) DO NOTHING
	`); err != nil {
		return fmt.Errorf("merge: %w", err)
	}

	return tx.Commit(ctx)
}

// ---------------------------------------------------------------------------
// Postcode coordinates
// ---------------------------------------------------------------------------

func ingestPostcodes(ctx context.Context, pool *pgxpool.Pool, client *http.Client, cfg *config.Config) {
	log.Printf("downloading postcode data from %s", cfg.Ingest.PostcodeURL)

	resp, err := client.Get(cfg.Ingest.PostcodeURL)
	if err != nil {
		log.Printf("ERROR postcodes: download: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("ERROR postcodes: HTTP %d", resp.StatusCode)
		return
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("ERROR postcodes: read body: %v", err)
		return
	}

	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		log.Printf("ERROR postcodes: open zip: %v", err)
		return
	}

	for _, f := range zr.File {
		if !strings.HasSuffix(f.Name, ".csv") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			log.Printf("ERROR postcodes: open %s: %v", f.Name, err)
			return
		}
		err = loadPostcodeCSV(ctx, pool, rc)
		rc.Close()
		if err != nil {
			log.Printf("ERROR postcodes: %v", err)
		}
		return
	}
	log.Println("ERROR postcodes: no csv in archive")
}

func loadPostcodeCSV(ctx context.Context, pool *pgxpool.Pool, r io.Reader) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	const batchSize = 10000
	rows := make([][]any, 0, batchSize)
	total := 0

	flush := func() error {
		if len(rows) == 0 {
			return nil
		}
		if err := copyPostcodeRows(ctx, pool, rows); err != nil {
			return err
		}
		total += len(rows)
		rows = rows[:0]
		return nil
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil || len(record) < pcFieldCount {
			continue
		}

		// Terminated postcodes carry no coordinates.
		lat, err := strconv.ParseFloat(record[pcLatitude], 64)
		if err != nil {
			continue
		}
		lon, err := strconv.ParseFloat(record[pcLongitude], 64)
		if err != nil {
			continue
		}

		rows = append(rows, []any{
			strings.TrimSpace(record[pcPostcode]),
			record[pcStatus],
			record[pcCountry],
			lat,
			lon,
		})
		if len(rows) >= batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	log.Printf("loaded %d postcodes", total)
	return nil
}

func copyPostcodeRows(ctx context.Context, pool *pgxpool.Pool, rows [][]any) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		CREATE TEMP TABLE pc_stage (LIKE postcode_data INCLUDING DEFAULTS) ON COMMIT DROP
	`); err != nil {
		return fmt.Errorf("stage table: %w", err)
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"pc_stage"},
		[]string{"postcode", "status", "country", "latitude", "longitude"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("copy: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO postcode_data SELECT * FROM pc_stage
		ON CONFLICT (postcode) DO UPDATE
		SET status = EXCLUDED.status, country = EXCLUDED.country,
		    latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude
	`); err != nil {
		return fmt.Errorf("merge: %w", err)
	}

	return tx.Commit(ctx)
}
