// Package ingest reads the watchlist of queries kept warm in the cache.
package ingest

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/qepting91/viralscout/internal/domain"
)

// LoadWatchlist reads rows of query,platform,limit,min_engagement. Only the
// query column is required; rows that do not form a valid query are skipped.
func LoadWatchlist(path string) ([]domain.Query, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadWatchlist(f)
}

// ReadWatchlist parses a watchlist from r. The first row is a header.
func ReadWatchlist(r io.Reader) ([]domain.Query, error) {
	cr := csv.NewReader(stripBOM(r))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var queries []domain.Query
	seen := make(map[string]bool)
	line := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		line++
		if line == 1 {
			continue // header
		}

		q, ok := parseRow(record)
		if !ok {
			continue
		}
		id := q.Normalized() + "|" + q.Platform + "|" + strconv.Itoa(q.Limit) + "|" + strconv.Itoa(q.MinEngagement)
		if seen[id] {
			continue
		}
		seen[id] = true
		queries = append(queries, q)
	}
	return queries, nil
}

func parseRow(record []string) (domain.Query, bool) {
	col := func(i int) string {
		if i < len(record) {
			return strings.TrimSpace(record[i])
		}
		return ""
	}

	limit, minEng := 0, 0
	if s := col(2); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return domain.Query{}, false
		}
		limit = n
	}
	if s := col(3); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return domain.Query{}, false
		}
		minEng = n
	}

	q, err := domain.NewQuery(col(0), col(1), limit, minEng)
	if err != nil {
		return domain.Query{}, false
	}
	return q, true
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
