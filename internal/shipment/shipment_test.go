package shipment

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/korean"

	apperrors "github.com/kosonkh7/SOPO-Dashboard/internal/errors"
)

var testItems = []string{
	"food", "fashion", "digital", "furniture", "beauty", "sports",
	"books", "baby", "pet", "living", "etc",
}

const testHeader = "date,center_name,food,fashion,digital,furniture,beauty,sports,books,baby,pet,living,etc"

func csvRow(date, center string, base int) string {
	cols := []string{date, center}
	for i := 0; i < ItemColumnCount; i++ {
		cols = append(cols, fmt.Sprint(base+i))
	}
	return strings.Join(cols, ",")
}

func eucKR(t *testing.T, s string) string {
	t.Helper()
	encoded, err := korean.EUCKR.NewEncoder().String(s)
	require.NoError(t, err)
	return encoded
}

func TestRead_EUCKR(t *testing.T) {
	content := strings.Join([]string{
		testHeader,
		csvRow("20230102", "강남센터", 100),
		csvRow("20230101", "강남센터", 90),
		csvRow("20230101", "마포센터", 50),
	}, "\n")

	ds, err := Read(strings.NewReader(eucKR(t, content)), LoadOptions{Encoding: EncodingEUCKR})
	require.NoError(t, err)

	assert.Equal(t, testItems, ds.Items())
	assert.Equal(t, []string{"강남센터", "마포센터"}, ds.Centers())
	assert.Equal(t, 3, ds.Len())

	first, last := ds.DateRange()
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), first)
	assert.Equal(t, time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC), last)

	series, err := ds.Series("강남센터", "digital")
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, 92.0, series[0].Value)
	assert.Equal(t, 102.0, series[1].Value)
	assert.True(t, series[0].Date.Before(series[1].Date))
}

func TestRead_UTF8WithBOM(t *testing.T) {
	content := "\ufeff" + testHeader + "\n" + csvRow("20240301", "송파센터", 1)

	ds, err := Read(strings.NewReader(content), LoadOptions{Encoding: EncodingUTF8})
	require.NoError(t, err)
	assert.Equal(t, []string{"송파센터"}, ds.Centers())
}

func TestRead_Errors(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		encoding string
		wantType apperrors.ErrorType
		wantMsg  string
	}{
		{
			name:     "unsupported encoding",
			content:  testHeader,
			encoding: "latin-1",
			wantType: apperrors.ErrTypeConfig,
		},
		{
			name:     "short header",
			content:  "date,center_name,food\n20230101,a,1",
			encoding: EncodingUTF8,
			wantType: apperrors.ErrTypeParsing,
			wantMsg:  "header has 3 columns",
		},
		{
			name:     "wrong leading columns",
			content:  strings.Replace(testHeader, "center_name", "center", 1) + "\n" + csvRow("20230101", "a", 1),
			encoding: EncodingUTF8,
			wantType: apperrors.ErrTypeParsing,
			wantMsg:  "header must start with",
		},
		{
			name:     "bad date",
			content:  testHeader + "\n" + csvRow("2023-01-01", "a", 1),
			encoding: EncodingUTF8,
			wantType: apperrors.ErrTypeParsing,
			wantMsg:  "line 2: parse date",
		},
		{
			name:     "negative volume",
			content:  testHeader + "\n" + csvRow("20230101", "a", -1),
			encoding: EncodingUTF8,
			wantType: apperrors.ErrTypeParsing,
			wantMsg:  `line 2 column "food": negative volume`,
		},
		{
			name:     "unparsable volume",
			content:  testHeader + "\n" + strings.Replace(csvRow("20230101", "a", 1), ",1,", ",x,", 1),
			encoding: EncodingUTF8,
			wantType: apperrors.ErrTypeParsing,
			wantMsg:  "parse volume",
		},
		{
			name:     "duplicate center day",
			content:  testHeader + "\n" + csvRow("20230101", "a", 1) + "\n" + csvRow("20230101", "a", 2),
			encoding: EncodingUTF8,
			wantType: apperrors.ErrTypeParsing,
			wantMsg:  "duplicate row",
		},
		{
			name:     "header only",
			content:  testHeader,
			encoding: EncodingUTF8,
			wantType: apperrors.ErrTypeParsing,
			wantMsg:  "only a header",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.content), LoadOptions{Encoding: tt.encoding})
			require.Error(t, err)
			assert.Equal(t, tt.wantType, apperrors.TypeOf(err))
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func newTestDataset(t *testing.T) *Dataset {
	t.Helper()
	start := time.Date(2023, 12, 30, 0, 0, 0, 0, time.UTC)
	var records []Record
	for d := 0; d < 5; d++ {
		for c, center := range []string{"b", "a"} {
			vols := make([]float64, ItemColumnCount)
			for i := range vols {
				vols[i] = float64(d*10 + c + i)
			}
			records = append(records, Record{Date: start.AddDate(0, 0, d), Center: center, Volumes: vols})
		}
	}
	ds, err := NewDataset(testItems, records)
	require.NoError(t, err)
	return ds
}

func TestDataset_Series(t *testing.T) {
	ds := newTestDataset(t)

	t.Run("known pair", func(t *testing.T) {
		series, err := ds.Series("a", "fashion")
		require.NoError(t, err)
		require.Len(t, series, 5)
		for i := 1; i < len(series); i++ {
			assert.True(t, series[i-1].Date.Before(series[i].Date))
		}
		assert.Equal(t, 2.0, series[0].Value)
	})

	t.Run("unknown item", func(t *testing.T) {
		_, err := ds.Series("a", "groceries")
		assert.Equal(t, apperrors.ErrTypeValidation, apperrors.TypeOf(err))
	})

	t.Run("unknown center", func(t *testing.T) {
		_, err := ds.Series("z", "food")
		assert.True(t, stderrors.Is(err, apperrors.ErrNoData))
	})
}

func TestDataset_Filter(t *testing.T) {
	ds := newTestDataset(t)

	tests := []struct {
		name   string
		sel    Selection
		want   int
		noData bool
	}{
		{name: "everything", sel: Selection{}, want: 10},
		{name: "one center", sel: Selection{Centers: []string{"a"}}, want: 5},
		{name: "year", sel: Selection{Year: 2024}, want: 6},
		{name: "year and month", sel: Selection{Year: 2023, Month: 12}, want: 4},
		{name: "inclusive range", sel: Selection{From: time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), To: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}, want: 4},
		{name: "empty selection", sel: Selection{Year: 2020}, noData: true},
		{name: "unknown center", sel: Selection{Centers: []string{"nope"}}, noData: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ds.Filter(tt.sel)
			if tt.noData {
				assert.True(t, stderrors.Is(err, apperrors.ErrNoData))
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestDataset_FilterReturnsCopies(t *testing.T) {
	ds := newTestDataset(t)

	got, err := ds.Filter(Selection{Centers: []string{"a"}})
	require.NoError(t, err)
	got[0].Volumes[0] = -1

	series, err := ds.Series("a", "food")
	require.NoError(t, err)
	assert.Equal(t, 1.0, series[0].Value)
}

func writeCSV(t *testing.T, path string, rows ...string) {
	t.Helper()
	content := eucKR(t, strings.Join(append([]string{testHeader}, rows...), "\n"))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestCache(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	pathA := filepath.Join(dir, "a.csv")
	pathB := filepath.Join(dir, "b.csv")
	writeCSV(t, pathA, csvRow("20230101", "강남센터", 1))
	writeCSV(t, pathB, csvRow("20230101", "마포센터", 1), csvRow("20230102", "마포센터", 2))

	cache := NewCache(LoadOptions{Encoding: EncodingEUCKR}, nil)

	first, hit, err := cache.Get(ctx, pathA)
	require.NoError(t, err)
	assert.False(t, hit)

	second, hit, err := cache.Get(ctx, pathA)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Same(t, first, second)

	other, _, err := cache.Get(ctx, pathB)
	require.NoError(t, err)
	assert.Equal(t, []string{"마포센터"}, other.Centers())
	assert.Equal(t, 2, cache.Len())

	t.Run("stale file reloads", func(t *testing.T) {
		writeCSV(t, pathA, csvRow("20230101", "강남센터", 1), csvRow("20230101", "송파센터", 1))
		future := time.Now().Add(time.Hour)
		require.NoError(t, os.Chtimes(pathA, future, future))

		reloaded, hit, err := cache.Get(ctx, pathA)
		require.NoError(t, err)
		assert.False(t, hit)
		assert.Equal(t, 2, reloaded.Len())
	})

	t.Run("invalidate", func(t *testing.T) {
		cache.Invalidate(pathB)
		_, hit, err := cache.Get(ctx, pathB)
		require.NoError(t, err)
		assert.False(t, hit)
	})

	t.Run("purge", func(t *testing.T) {
		cache.Purge()
		assert.Equal(t, 0, cache.Len())
	})

	t.Run("missing file", func(t *testing.T) {
		_, _, err := cache.Get(ctx, filepath.Join(dir, "missing.csv"))
		assert.Equal(t, apperrors.ErrTypeStorage, apperrors.TypeOf(err))
	})
}
