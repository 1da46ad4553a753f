package usecases_test

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/mjashworth/priceframe/internal/core/domain"
	"github.com/mjashworth/priceframe/internal/core/usecases"
)

// --- Mock TransactionStore ---

type mockStore struct {
	fetchRangeFn func(ctx context.Context, q domain.QueryRange) ([]domain.TransactionRecord, error)
	calls        int
}

func (m *mockStore) FetchRange(ctx context.Context, q domain.QueryRange) ([]domain.TransactionRecord, error) {
	m.calls++
	if m.fetchRangeFn != nil {
		return m.fetchRangeFn(ctx, q)
	}
	return nil, nil
}

// --- Mock ExtractStore ---

type mockExtracts struct {
	extracts map[string]*domain.Extract
	saved    []domain.QueryRange
	loadErr  error
}

func newMockExtracts() *mockExtracts {
	return &mockExtracts{extracts: make(map[string]*domain.Extract)}
}

func (m *mockExtracts) add(r domain.QueryRange, records ...domain.TransactionRecord) {
	m.extracts[domain.EncodeRangeKey(r)] = &domain.Extract{Range: r, Records: records}
}

func (m *mockExtracts) Ranges(ctx context.Context) ([]domain.QueryRange, error) {
	var ranges []domain.QueryRange
	for _, e := range m.extracts {
		ranges = append(ranges, e.Range)
	}
	return ranges, nil
}

func (m *mockExtracts) Load(ctx context.Context, r domain.QueryRange) (*domain.Extract, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	e, ok := m.extracts[domain.EncodeRangeKey(r)]
	if !ok {
		return nil, errors.New("extract not found")
	}
	return e, nil
}

func (m *mockExtracts) Save(ctx context.Context, r domain.QueryRange, records []domain.TransactionRecord) error {
	m.saved = append(m.saved, r)
	m.add(r, records...)
	return nil
}

// --- Fixtures ---

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func boxRecord(price int64, d time.Time, lat, lon float64) domain.TransactionRecord {
	return domain.TransactionRecord{
		Price:          price,
		DateOfTransfer: d,
		Postcode:       "CB2 1TN",
		PropertyType:   domain.PropertyDetached,
		NewBuildFlag:   "N",
		TenureType:     "F",
		TownCity:       "CAMBRIDGE",
		District:       "CAMBRIDGE",
		County:         "CAMBRIDGESHIRE",
		Country:        "England",
		Latitude:       lat,
		Longitude:      lon,
	}
}

func prices(rows []domain.TransactionRecord) []int64 {
	out := make([]int64, len(rows))
	for i, r := range rows {
		out[i] = r.Price
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// --- Tests ---

func TestFetch_CacheMissFetchesAndSaves(t *testing.T) {
	want := []domain.TransactionRecord{
		boxRecord(250000, date(2018, 3, 1), 52.21, 0.12),
	}
	store := &mockStore{
		fetchRangeFn: func(ctx context.Context, q domain.QueryRange) ([]domain.TransactionRecord, error) {
			return want, nil
		},
	}
	extracts := newMockExtracts()
	svc := usecases.NewFetchService(store, extracts)

	requested := domain.NewBoxRange(52.2, 0.13, 0.1, date(2015, 1, 1), date(2020, 12, 31))
	rows, filtered, err := svc.Fetch(context.Background(), requested)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filtered {
		t.Error("fresh fetch must not be marked as locally filtered")
	}
	if len(rows) != 1 || rows[0].Price != 250000 {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	if len(extracts.saved) != 1 || extracts.saved[0] != requested {
		t.Errorf("extract must be saved keyed by the requested range, saved: %+v", extracts.saved)
	}
}

func TestFetch_CacheHitFiltersLocally(t *testing.T) {
	cached := domain.NewBoxRange(52.2, 0.13, 0.2, date(2010, 1, 1), date(2022, 12, 31))
	extracts := newMockExtracts()
	extracts.add(cached,
		boxRecord(100000, date(2016, 5, 1), 52.21, 0.12),  // in range
		boxRecord(200000, date(2008, 5, 1), 52.21, 0.12),  // kept by extract, outside requested dates
		boxRecord(300000, date(2016, 5, 1), 52.28, 0.12),  // outside requested box
		boxRecord(400000, date(2019, 11, 2), 52.19, 0.14), // in range
	)
	store := &mockStore{}
	svc := usecases.NewFetchService(store, extracts)

	requested := domain.NewBoxRange(52.2, 0.13, 0.1, date(2015, 1, 1), date(2020, 12, 31))
	rows, filtered, err := svc.Fetch(context.Background(), requested)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !filtered {
		t.Error("cache hit must be marked as locally filtered")
	}
	if store.calls != 0 {
		t.Errorf("external store must not be queried on a hit, got %d calls", store.calls)
	}

	got := prices(rows)
	if len(got) != 2 || got[0] != 100000 || got[1] != 400000 {
		t.Errorf("local filter kept wrong rows: %v", got)
	}
}

// A cache hit followed by local filtering must yield the same row set as a
// direct fetch for the identical narrow range, regardless of which of
// several overlapping extracts serves the hit.
func TestFetch_HitEquivalentToDirectFetch(t *testing.T) {
	narrow := domain.NewBoxRange(52.2, 0.13, 0.05, date(2016, 1, 1), date(2018, 12, 31))

	all := []domain.TransactionRecord{
		boxRecord(100000, date(2016, 2, 1), 52.21, 0.125),
		boxRecord(150000, date(2017, 7, 14), 52.19, 0.135),
		boxRecord(200000, date(2015, 6, 1), 52.21, 0.125), // too early
		boxRecord(250000, date(2017, 7, 14), 52.27, 0.13), // outside narrow box
		boxRecord(300000, date(2018, 12, 31), 52.2, 0.13),
	}
	inNarrow := func(rec domain.TransactionRecord) bool { return narrow.MatchesRecord(rec) }

	serverSide := func(ctx context.Context, q domain.QueryRange) ([]domain.TransactionRecord, error) {
		var rows []domain.TransactionRecord
		for _, rec := range all {
			if q.MatchesRecord(rec) {
				rows = append(rows, rec)
			}
		}
		return rows, nil
	}

	// Direct fetch with an empty cache.
	direct := usecases.NewFetchService(&mockStore{fetchRangeFn: serverSide}, newMockExtracts())
	directRows, _, err := direct.Fetch(context.Background(), narrow)
	if err != nil {
		t.Fatalf("direct fetch: %v", err)
	}

	// Same request against three overlapping cached extracts, two of which
	// cover the narrow range. Any covering extract is acceptable.
	extracts := newMockExtracts()
	for _, r := range []domain.QueryRange{
		domain.NewBoxRange(52.2, 0.13, 0.2, date(2010, 1, 1), date(2022, 12, 31)),
		domain.NewBoxRange(52.2, 0.13, 0.1, date(2014, 1, 1), date(2020, 12, 31)),
		domain.NewBoxRange(52.5, 0.5, 0.3, date(2010, 1, 1), date(2022, 12, 31)), // disjoint area
	} {
		var records []domain.TransactionRecord
		for _, rec := range all {
			if r.MatchesRecord(rec) {
				records = append(records, rec)
			}
		}
		extracts.add(r, records...)
	}

	cachedSvc := usecases.NewFetchService(&mockStore{}, extracts)
	cachedRows, filtered, err := cachedSvc.Fetch(context.Background(), narrow)
	if err != nil {
		t.Fatalf("cached fetch: %v", err)
	}
	if !filtered {
		t.Fatal("expected a cache hit")
	}

	gotDirect, gotCached := prices(directRows), prices(cachedRows)
	if len(gotDirect) != len(gotCached) {
		t.Fatalf("row count mismatch: direct %v, cached %v", gotDirect, gotCached)
	}
	for i := range gotDirect {
		if gotDirect[i] != gotCached[i] {
			t.Fatalf("row set mismatch: direct %v, cached %v", gotDirect, gotCached)
		}
	}
	for _, rec := range cachedRows {
		if !inNarrow(rec) {
			t.Errorf("cached result leaked a row outside the narrow range: %+v", rec)
		}
	}
}

func TestFetch_ExternalFailureWrapped(t *testing.T) {
	store := &mockStore{
		fetchRangeFn: func(ctx context.Context, q domain.QueryRange) ([]domain.TransactionRecord, error) {
			return nil, errors.New("connection refused")
		},
	}
	svc := usecases.NewFetchService(store, newMockExtracts())

	_, _, err := svc.Fetch(context.Background(),
		domain.NewOutcodeRange("CB2", date(2015, 1, 1), date(2016, 1, 1)))
	if !errors.Is(err, domain.ErrExternalFetch) {
		t.Errorf("expected ErrExternalFetch, got %v", err)
	}
}

func TestFetch_CorruptExtractPropagates(t *testing.T) {
	cached := domain.NewOutcodeRange("CB2", date(2010, 1, 1), date(2022, 12, 31))
	extracts := newMockExtracts()
	extracts.add(cached)
	extracts.loadErr = domain.ErrCorruptExtract

	svc := usecases.NewFetchService(&mockStore{}, extracts)
	_, _, err := svc.Fetch(context.Background(),
		domain.NewOutcodeRange("CB2", date(2015, 1, 1), date(2016, 1, 1)))
	if !errors.Is(err, domain.ErrCorruptExtract) {
		t.Errorf("expected ErrCorruptExtract, got %v", err)
	}
}

func TestFetch_InvalidRangeRejected(t *testing.T) {
	svc := usecases.NewFetchService(&mockStore{}, newMockExtracts())
	_, _, err := svc.Fetch(context.Background(),
		domain.NewOutcodeRange("", date(2015, 1, 1), date(2016, 1, 1)))
	if err == nil {
		t.Error("expected validation error for empty outcode")
	}
}
