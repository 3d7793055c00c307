package parquetio

import (
	"fmt"
	"strings"

	"github.com/parquet-go/parquet-go"
)

// LoadTransfers reads a full transfers.parquet file.
func LoadTransfers(path string) ([]Transfer, error) {
	rows, err := parquet.ReadFile[Transfer](path)
	if err != nil {
		return nil, fmt.Errorf("reading transfers %s: %w", path, err)
	}
	return rows, nil
}

// LoadGroundTruth reads a full ground_truth.parquet file.
func LoadGroundTruth(path string) ([]GroundTruth, error) {
	rows, err := parquet.ReadFile[GroundTruth](path)
	if err != nil {
		return nil, fmt.Errorf("reading ground truth %s: %w", path, err)
	}
	return rows, nil
}

// WriteTransfers writes the shared transfers frame once per round, as
// described in §4.2's "first writer wins" input-sharing contract: an
// existing file at path is left as it is.
func WriteTransfers(path string, rows []Transfer) error {
	if fileExists(path) {
		return nil
	}
	if err := parquet.WriteFile(path, rows); err != nil {
		return fmt.Errorf("writing transfers %s: %w", path, err)
	}
	return nil
}

// LoadFeatures reads features.parquet, returning the decoded address
// column plus the total number of columns the file declares (G1 needs
// both: a non-null "address" column and at least 4 additional columns).
// A missing file returns (nil, 0, nil); the caller decides what a missing
// output means (§4.2).
func LoadFeatures(path string) ([]Feature, int, error) {
	if !fileExists(path) {
		return nil, 0, nil
	}
	f, size, err := openReaderAt(path)
	if err != nil {
		return nil, 0, fmt.Errorf("opening features %s: %w", path, err)
	}
	defer f.Close()
	pf, err := parquet.OpenFile(f, size)
	if err != nil {
		return nil, 0, fmt.Errorf("opening features %s: %w", path, err)
	}
	columnCount := len(pf.Schema().Fields())

	reader := parquet.NewGenericReader[Feature](pf)
	defer reader.Close()

	buf := make([]Feature, 128)
	var out []Feature
	for {
		n, readErr := reader.Read(buf)
		out = append(out, buf[:n]...)
		if readErr != nil {
			break
		}
	}
	return out, columnCount, nil
}

// rawPatternRow is the on-disk shape of a patterns.parquet row (§4.4, §9's
// "dynamic pattern-row shape" design note). "addresses" and "address_path"
// are read as scalar comma-joined strings and split by toPattern; list-typed
// columns are not decoded. The fallback fields are scalar strings.
type rawPatternRow struct {
	PatternID     string `parquet:"pattern_id"`
	PatternType   string `parquet:"pattern_type"`
	Addresses     string `parquet:"addresses,optional"`
	AddressPath   string `parquet:"address_path,optional"`
	Address       string `parquet:"address,optional"`
	SourceAddress string `parquet:"source_address,optional"`
	TargetAddress string `parquet:"target_address,optional"`
}

func (r rawPatternRow) toPattern() Pattern {
	return Pattern{
		PatternID:     r.PatternID,
		PatternType:   r.PatternType,
		Addresses:     splitNonEmpty(r.Addresses),
		AddressPath:   splitNonEmpty(r.AddressPath),
		Address:       r.Address,
		SourceAddress: r.SourceAddress,
		TargetAddress: r.TargetAddress,
	}
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// hasRequiredPatternColumns checks the two required columns G1 demands of
// a patterns frame.
func hasRequiredPatternColumns(schema *parquet.Schema) bool {
	found := map[string]bool{}
	for _, f := range schema.Fields() {
		found[f.Name()] = true
	}
	return found["pattern_id"] && found["pattern_type"]
}

// LoadPatterns reads patterns.parquet, or merges one-or-more
// patterns_*.parquet pieces, returning nil if nothing is found (§4.2).
// hasSchema reports whether the required pattern_id/pattern_type columns
// were present. It is false both when no file is found and when a file
// lacks those columns; callers that must tell the two apart check for the
// files themselves.
func LoadPatterns(singlePath string, piecePaths []string) (rows []Pattern, hasSchema bool, err error) {
	paths := piecePaths
	if fileExists(singlePath) {
		paths = []string{singlePath}
	}
	if len(paths) == 0 {
		return nil, false, nil
	}

	for _, p := range paths {
		f, size, err := openReaderAt(p)
		if err != nil {
			return nil, false, fmt.Errorf("opening patterns %s: %w", p, err)
		}
		pf, err := parquet.OpenFile(f, size)
		if err != nil {
			f.Close()
			return nil, false, fmt.Errorf("opening patterns %s: %w", p, err)
		}
		if !hasRequiredPatternColumns(pf.Schema()) {
			f.Close()
			return nil, false, nil
		}
		hasSchema = true

		reader := parquet.NewGenericReader[rawPatternRow](pf)
		buf := make([]rawPatternRow, 128)
		for {
			n, readErr := reader.Read(buf)
			for i := 0; i < n; i++ {
				rows = append(rows, buf[i].toPattern())
			}
			if readErr != nil {
				break
			}
		}
		reader.Close()
		f.Close()
	}
	return rows, hasSchema, nil
}
