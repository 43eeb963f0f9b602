// Command buildtables converts OFLC prevailing wage data into the per-SOC
// wage table files served to the map. Each output file maps a county join
// key ("IL|cook") to the hourly Level I-IV thresholds of the wage area that
// contains the county.
//
// Usage:
//
//	go run ./cmd/buildtables \
//	  -geography data/oflc/Geography.csv \
//	  -wages data/oflc/ALC_Export.csv \
//	  -out data/soc
package main

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/jszwec/csvutil"

	"github.com/couchcryptid/wage-level-map/internal/domain"
)

// geographyRow is one county or town of an OFLC wage area.
type geographyRow struct {
	Area     string `csv:"Area"`
	AreaName string `csv:"AreaName"`
	StateAb  string `csv:"StateAb"`
	County   string `csv:"CountyTownName"`
}

// wageRow is one (area, occupation) row of hourly level thresholds. Blank
// levels are absent thresholds.
type wageRow struct {
	Area    string `csv:"Area"`
	SocCode string `csv:"SocCode"`
	Level1  string `csv:"Level1"`
	Level2  string `csv:"Level2"`
	Level3  string `csv:"Level3"`
	Level4  string `csv:"Level4"`
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	geoPath := flag.String("geography", "", "OFLC geography CSV (Area,AreaName,StateAb,CountyTownName)")
	wagePath := flag.String("wages", "", "OFLC wage CSV (Area,SocCode,Level1..Level4)")
	outDir := flag.String("out", "data/soc", "output directory for <soc>.json tables")
	flag.Parse()

	if *geoPath == "" || *wagePath == "" {
		flag.Usage()
		return errors.New("missing required flags: -geography, -wages")
	}

	areas, err := loadGeography(*geoPath)
	if err != nil {
		return fmt.Errorf("load geography: %w", err)
	}
	log.Printf("geography: %d wage areas", len(areas))

	tables, skipped, err := buildTables(*wagePath, areas)
	if err != nil {
		return fmt.Errorf("build tables: %w", err)
	}
	log.Printf("wages: %d occupations, %d rows skipped", len(tables), skipped)

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	codes := make([]string, 0, len(tables))
	for code := range tables {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		path := filepath.Join(*outDir, code+".json")
		if err := writeJSON(path, tables[code]); err != nil {
			return fmt.Errorf("write %s: %w", code, err)
		}
	}
	log.Printf("wrote %d tables to %s", len(codes), *outDir)
	return nil
}

// loadGeography returns the join keys of the counties in each wage area.
func loadGeography(path string) (map[string][]string, error) {
	areas := make(map[string][]string)
	err := decodeCSV(path, func(dec *csvutil.Decoder) error {
		var row geographyRow
		if err := dec.Decode(&row); err != nil {
			return err
		}
		if row.Area == "" || row.StateAb == "" || row.County == "" {
			return nil
		}
		key := domain.JoinKey(strings.TrimSpace(row.StateAb), row.County)
		areas[row.Area] = append(areas[row.Area], key)
		return nil
	})
	return areas, err
}

// buildTables fans each wage row out to every county of its area. A county
// listed under more than one area keeps the first thresholds seen.
func buildTables(path string, areas map[string][]string) (map[string]domain.WageTable, int, error) {
	tables := make(map[string]domain.WageTable)
	skipped := 0
	err := decodeCSV(path, func(dec *csvutil.Decoder) error {
		var row wageRow
		if err := dec.Decode(&row); err != nil {
			return err
		}
		code := strings.TrimSpace(row.SocCode)
		keys, ok := areas[row.Area]
		if !ok || !domain.ValidOccupationCode(code) {
			skipped++
			return nil
		}
		thresholds, err := parseThresholds(row)
		if err != nil {
			return fmt.Errorf("area %s soc %s: %w", row.Area, code, err)
		}

		table := tables[code]
		if table == nil {
			table = make(domain.WageTable)
			tables[code] = table
		}
		for _, key := range keys {
			if _, exists := table[key]; !exists {
				table[key] = thresholds
			}
		}
		return nil
	})
	return tables, skipped, err
}

func parseThresholds(row wageRow) (domain.WageThresholds, error) {
	rates := make(map[domain.Level]float64, 4)
	for l, raw := range map[domain.Level]string{
		domain.Level1: row.Level1,
		domain.Level2: row.Level2,
		domain.Level3: row.Level3,
		domain.Level4: row.Level4,
	} {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return domain.WageThresholds{}, fmt.Errorf("level %s: %w", l.Roman(), err)
		}
		rates[l] = v
	}
	return domain.Thresholds(rates), nil
}

func decodeCSV(path string, each func(*csvutil.Decoder) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	dec, err := csvutil.NewDecoder(r)
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	for line := 2; ; line++ {
		err := each(dec)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
}

func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644) //nolint:gosec // public static data
}
