// Package catalog loads the paper roster the daemon works against.
// The roster is a CSV export and is read once at startup; jobs refer
// to papers by their catalog ID.
package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Paper is one catalog entry.
type Paper struct {
	ID     int64
	Name   string
	URL    string
	RSSURL string
	Email  string
}

// Catalog is an in-memory index of papers by ID.
type Catalog struct {
	papers map[int64]*Paper
	order  []int64
}

// ErrMissingColumn indicates the CSV header lacks a required column.
var ErrMissingColumn = errors.New("missing catalog column")

// Load reads a catalog CSV. Required columns are id, name and url;
// rss_url and email are optional. Column order does not matter.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads catalog CSV from a reader.
func Parse(r io.Reader) (*Catalog, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read catalog header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"id", "name", "url"} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, required)
		}
	}

	cat := &Catalog{papers: make(map[int64]*Paper)}
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read catalog line %d: %w", line, err)
		}

		field := func(name string) string {
			idx, ok := columns[name]
			if !ok || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}

		id, err := strconv.ParseInt(field("id"), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("catalog line %d: bad id %q", line, field("id"))
		}
		if _, dup := cat.papers[id]; dup {
			return nil, fmt.Errorf("catalog line %d: duplicate id %d", line, id)
		}

		cat.papers[id] = &Paper{
			ID:     id,
			Name:   field("name"),
			URL:    field("url"),
			RSSURL: field("rss_url"),
			Email:  field("email"),
		}
		cat.order = append(cat.order, id)
	}
	return cat, nil
}

// Resolve returns the paper for an ID.
func (c *Catalog) Resolve(id int64) (*Paper, bool) {
	paper, ok := c.papers[id]
	return paper, ok
}

// Len reports how many papers the catalog holds.
func (c *Catalog) Len() int {
	return len(c.papers)
}

// All returns every paper in file order.
func (c *Catalog) All() []*Paper {
	papers := make([]*Paper, 0, len(c.order))
	for _, id := range c.order {
		papers = append(papers, c.papers[id])
	}
	return papers
}
