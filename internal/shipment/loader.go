package shipment

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	apperrors "github.com/kosonkh7/SOPO-Dashboard/internal/errors"
)

// Supported source encodings
const (
	EncodingEUCKR = "euc-kr"
	EncodingUTF8  = "utf-8"
)

const (
	dateColumn   = "date"
	centerColumn = "center_name"
)

// LoadOptions declares how the source file is decoded.
type LoadOptions struct {
	Encoding string
}

// Load reads the shipment table at path.
func Load(path string, opts LoadOptions) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewStorageError("open shipment file", err).WithContext("path", path)
	}
	defer file.Close()

	ds, err := Read(file, opts)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return ds, nil
}

// Read decodes a shipment table from r.
func Read(r io.Reader, opts LoadOptions) (*Dataset, error) {
	decoded, err := decoder(r, opts.Encoding)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(decoded)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, apperrors.NewParsingError("read header", err)
	}
	items, err := parseHeader(header)
	if err != nil {
		return nil, err
	}

	var records []Record
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, apperrors.NewParsingError(fmt.Sprintf("read line %d", line), err)
		}

		rec, err := parseRecord(row, header, line)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, apperrors.NewParsingError("shipment file contains only a header", nil)
	}

	return NewDataset(items, records)
}

func decoder(r io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToLower(encoding) {
	case EncodingEUCKR:
		return transform.NewReader(r, korean.EUCKR.NewDecoder()), nil
	case EncodingUTF8:
		// Strips a leading byte order mark when present.
		return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())), nil
	default:
		return nil, apperrors.NewConfigError(fmt.Sprintf("unsupported encoding %q", encoding), nil)
	}
}

func parseHeader(header []string) ([]string, error) {
	if len(header) < 2+ItemColumnCount {
		return nil, apperrors.NewParsingError(
			fmt.Sprintf("header has %d columns, want at least %d", len(header), 2+ItemColumnCount), nil)
	}
	if strings.TrimSpace(header[0]) != dateColumn || strings.TrimSpace(header[1]) != centerColumn {
		return nil, apperrors.NewParsingError(
			fmt.Sprintf("header must start with %q,%q, got %q,%q", dateColumn, centerColumn, header[0], header[1]), nil)
	}

	items := make([]string, ItemColumnCount)
	for i := range items {
		items[i] = strings.TrimSpace(header[2+i])
		if items[i] == "" {
			return nil, apperrors.NewParsingError(fmt.Sprintf("empty item column name at position %d", 2+i), nil)
		}
	}
	return items, nil
}

func parseRecord(row, header []string, line int) (Record, error) {
	if len(row) < 2+ItemColumnCount {
		return Record{}, apperrors.NewParsingError(
			fmt.Sprintf("line %d: %d columns, want at least %d", line, len(row), 2+ItemColumnCount), nil)
	}

	date, err := time.Parse(DateLayout, strings.TrimSpace(row[0]))
	if err != nil {
		return Record{}, apperrors.NewParsingError(fmt.Sprintf("line %d: parse date %q", line, row[0]), err)
	}

	center := strings.TrimSpace(row[1])
	if center == "" {
		return Record{}, apperrors.NewParsingError(fmt.Sprintf("line %d: empty center_name", line), nil)
	}

	volumes := make([]float64, ItemColumnCount)
	for i := range volumes {
		raw := strings.TrimSpace(row[2+i])
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Record{}, apperrors.NewParsingError(
				fmt.Sprintf("line %d column %q: parse volume %q", line, header[2+i], raw), err)
		}
		if v < 0 {
			return Record{}, apperrors.NewParsingError(
				fmt.Sprintf("line %d column %q: negative volume %v", line, header[2+i], v), nil)
		}
		volumes[i] = v
	}

	return Record{Date: date, Center: center, Volumes: volumes}, nil
}
