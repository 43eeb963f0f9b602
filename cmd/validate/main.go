// Command validate checks that the county geometry and a wage table agree on
// join keys. Keys that appear only in the table usually mean the county name
// normalization drifted between cmd/buildtables and the geometry source.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -counties data/counties.geojson \
//	  -tables data/soc \
//	  -soc 15-1252
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/couchcryptid/wage-level-map/internal/adapter/counties"
	"github.com/couchcryptid/wage-level-map/internal/adapter/wagetable"
	"github.com/couchcryptid/wage-level-map/internal/domain"
)

// maxListed caps the number of keys printed per section.
const maxListed = 20

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// coverage is the join outcome between the geometry and one wage table.
type coverage struct {
	counties    int
	matched     int
	unmatched   []string // joinable counties without a table entry
	unknownFIPS []string // counties whose STATEFP is not a known state
	malformed   int      // counties missing STATEFP or NAME
	orphans     []string // table keys no county produces
}

func main() {
	countiesPath := flag.String("counties", "data/counties.geojson", "county GeoJSON file or URL")
	tablesDir := flag.String("tables", "data/soc", "directory of <soc>.json wage tables")
	soc := flag.String("soc", "11-1011", "occupation code to validate")
	flag.Parse()

	os.Exit(run(*countiesPath, *tablesDir, *soc))
}

func run(countiesPath, tablesDir, soc string) int {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	fmt.Println("=== Wage Level Join Validation ===")
	fmt.Println()

	c, err := counties.Load(ctx, countiesPath, time.Minute, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}
	table, err := wagetable.NewDirLoader(tablesDir, logger).LoadWageTable(ctx, soc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	cov := measure(c, table)
	phases := []*phase{
		validateGeometry(cov),
		validateTableKeys(cov),
	}

	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("SOC %s: %d counties, %d table keys\n", soc, cov.counties, len(table))
	fmt.Printf("  matched:      %d (%.1f%%)\n", cov.matched, percent(cov.matched, cov.counties))
	fmt.Printf("  unmatched:    %d\n", len(cov.unmatched))
	fmt.Printf("  unknown FIPS: %d\n", len(cov.unknownFIPS))
	fmt.Printf("  malformed:    %d\n", cov.malformed)
	fmt.Printf("  orphan keys:  %d\n", len(cov.orphans))
	printList("Unmatched counties (no wage data)", cov.unmatched)

	allPassed := true
	for _, p := range phases {
		if p.passed() {
			continue
		}
		allPassed = false
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// measure joins every county against the table the same way Annotate does.
func measure(c *domain.Counties, table domain.WageTable) coverage {
	cov := coverage{counties: c.Len()}
	produced := make(map[string]bool, c.Len())
	for i := range c.Len() {
		fp, name, ok := c.Identity(i)
		if !ok {
			cov.malformed++
			continue
		}
		key, ok := c.Key(i)
		if !ok {
			cov.unknownFIPS = append(cov.unknownFIPS, fp+" "+name)
			continue
		}
		produced[key] = true
		if _, ok := table[key]; ok {
			cov.matched++
		} else {
			cov.unmatched = append(cov.unmatched, key)
		}
	}
	for key := range table {
		if !produced[key] {
			cov.orphans = append(cov.orphans, key)
		}
	}
	sort.Strings(cov.unmatched)
	sort.Strings(cov.unknownFIPS)
	sort.Strings(cov.orphans)
	return cov
}

func validateGeometry(cov coverage) *phase {
	p := &phase{name: "County geometry identities"}
	if cov.counties == 0 {
		p.errorf("geometry has no features")
	}
	if cov.malformed > 0 {
		p.errorf("%d features lack string STATEFP/NAME properties", cov.malformed)
	}
	for _, c := range head(cov.unknownFIPS) {
		p.errorf("unknown state FIPS: %s", c)
	}
	return p
}

func validateTableKeys(cov coverage) *phase {
	p := &phase{name: "Wage table keys join to counties"}
	for _, key := range head(cov.orphans) {
		p.errorf("table key %q matches no county", key)
	}
	if n := len(cov.orphans) - maxListed; n > 0 {
		p.errorf("... and %d more orphan keys", n)
	}
	return p
}

func printList(title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Printf("\n%s:\n", title)
	for _, item := range head(items) {
		fmt.Printf("  %s\n", item)
	}
	if n := len(items) - maxListed; n > 0 {
		fmt.Printf("  ... and %d more\n", n)
	}
}

func head(items []string) []string {
	if len(items) > maxListed {
		return items[:maxListed]
	}
	return items
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return 100 * float64(n) / float64(total)
}
