package extractdir

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mjashworth/priceframe/internal/core/domain"
	"github.com/mjashworth/priceframe/internal/pkg/metrics"
)

const (
	extension  = ".csv"
	dateLayout = "2006-01-02"
	fieldCount = 13
)

// Store persists extracts as CSV files in a single directory, one file
// per range, named by the range key. Extracts are immutable: Save writes
// a whole file and never merges with existing ones, so overlapping
// extracts coexist on disk.
type Store struct {
	dir string
}

// New creates the extract directory if needed and returns a Store on it.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create extract dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Ranges lists the query ranges of every readable extract on disk.
// Files whose names do not decode as range keys are skipped with a
// warning so one stray file cannot poison every lookup.
func (s *Store) Ranges(ctx context.Context) ([]domain.QueryRange, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read extract dir: %w", err)
	}

	var ranges []domain.QueryRange
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, extension) {
			continue
		}
		r, err := domain.DecodeRangeKey(strings.TrimSuffix(name, extension))
		if err != nil {
			slog.Warn("skipping extract with undecodable name", "file", name, "error", err)
			continue
		}
		ranges = append(ranges, r)
	}
	return ranges, nil
}

// Load reads the extract for the given range. Structural failures in the
// file body surface as ErrCorruptExtract.
func (s *Store) Load(ctx context.Context, r domain.QueryRange) (*domain.Extract, error) {
	path := s.path(r)
	f, err := os.Open(path)
	if err != nil {
		metrics.ExtractLoads.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("open extract: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = fieldCount

	var records []domain.TransactionRecord
	for line := 1; ; line++ {
		row, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			metrics.ExtractLoads.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("%w: %s line %d: %v", domain.ErrCorruptExtract, path, line, err)
		}
		rec, err := parseRecord(row)
		if err != nil {
			metrics.ExtractLoads.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("%w: %s line %d: %v", domain.ErrCorruptExtract, path, line, err)
		}
		records = append(records, rec)
	}

	metrics.ExtractLoads.WithLabelValues("ok").Inc()
	return &domain.Extract{Range: r, Records: records}, nil
}

// Save writes the records as a new extract file for the range. A write
// to an existing range replaces the file wholesale. The file is staged
// under a temporary name and renamed in so readers never see a partial
// extract.
func (s *Store) Save(ctx context.Context, r domain.QueryRange, records []domain.TransactionRecord) error {
	tmp, err := os.CreateTemp(s.dir, "extract-*.tmp")
	if err != nil {
		metrics.ExtractSaves.WithLabelValues("error").Inc()
		return fmt.Errorf("stage extract: %w", err)
	}
	defer os.Remove(tmp.Name())

	writer := csv.NewWriter(tmp)
	for _, rec := range records {
		if err := writer.Write(formatRecord(rec)); err != nil {
			tmp.Close()
			metrics.ExtractSaves.WithLabelValues("error").Inc()
			return fmt.Errorf("write extract row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		tmp.Close()
		metrics.ExtractSaves.WithLabelValues("error").Inc()
		return fmt.Errorf("flush extract: %w", err)
	}
	if err := tmp.Close(); err != nil {
		metrics.ExtractSaves.WithLabelValues("error").Inc()
		return fmt.Errorf("close extract: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path(r)); err != nil {
		metrics.ExtractSaves.WithLabelValues("error").Inc()
		return fmt.Errorf("commit extract: %w", err)
	}

	metrics.ExtractSaves.WithLabelValues("ok").Inc()
	return nil
}

func (s *Store) path(r domain.QueryRange) string {
	return filepath.Join(s.dir, domain.EncodeRangeKey(r)+extension)
}

func formatRecord(rec domain.TransactionRecord) []string {
	return []string{
		strconv.FormatInt(rec.Price, 10),
		rec.DateOfTransfer.Format(dateLayout),
		rec.Postcode,
		string(rec.PropertyType),
		rec.NewBuildFlag,
		rec.TenureType,
		rec.Locality,
		rec.TownCity,
		rec.District,
		rec.County,
		rec.Country,
		strconv.FormatFloat(rec.Latitude, 'f', -1, 64),
		strconv.FormatFloat(rec.Longitude, 'f', -1, 64),
	}
}

func parseRecord(row []string) (domain.TransactionRecord, error) {
	var rec domain.TransactionRecord

	price, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return rec, fmt.Errorf("price %q: %v", row[0], err)
	}
	d, err := time.ParseInLocation(dateLayout, row[1], time.UTC)
	if err != nil {
		return rec, fmt.Errorf("date %q: %v", row[1], err)
	}
	lat, err := strconv.ParseFloat(row[11], 64)
	if err != nil {
		return rec, fmt.Errorf("latitude %q: %v", row[11], err)
	}
	lon, err := strconv.ParseFloat(row[12], 64)
	if err != nil {
		return rec, fmt.Errorf("longitude %q: %v", row[12], err)
	}

	rec = domain.TransactionRecord{
		Price:          price,
		DateOfTransfer: d,
		Postcode:       row[2],
		PropertyType:   domain.PropertyType(row[3]),
		NewBuildFlag:   row[4],
		TenureType:     row[5],
		Locality:       row[6],
		TownCity:       row[7],
		District:       row[8],
		County:         row[9],
		Country:        row[10],
		Latitude:       lat,
		Longitude:      lon,
	}
	return rec, nil
}
