package ingest

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/qepting91/wikisync/internal/domain"
)

// Characters MediaWiki forbids in titles.
var invalidTitleRegex = regexp.MustCompile(`[#<>\[\]|{}]`)

// LoadCategories reads category names from the first column of a CSV file
// with a header row. Invalid and duplicate names are skipped; order is kept.
func LoadCategories(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCategories(f)
}

// ReadCategories is LoadCategories over an arbitrary reader.
func ReadCategories(rd io.Reader) ([]string, error) {
	r := csv.NewReader(stripBOM(rd))
	r.FieldsPerRecord = -1
	r.Comment = '#'

	var categories []string
	seen := make(map[string]bool)
	line := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read categories: %w", err)
		}
		line++
		if line == 1 || len(record) == 0 {
			continue // header
		}

		// Validation (Fail-Soft)
		name := strings.TrimSpace(record[0])
		if !ValidCategory(name) {
			continue
		}
		key := domain.NormalizeCategory(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		categories = append(categories, name)
	}
	return categories, nil
}

// ValidCategory reports whether name can be a category title.
func ValidCategory(name string) bool {
	return domain.NormalizeCategory(name) != "" && !invalidTitleRegex.MatchString(name)
}

func stripBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	rdr, _, err := br.ReadRune()
	if err != nil {
		return br
	}
	if rdr != '\uFEFF' {
		br.UnreadRune()
	}
	return br
}
