package dashboard

import (
	"sort"
	"strings"

	"vitalstats/internal/domain"
)

// PageSize is the number of rows per table page.
const PageSize = 10

// Sortable table columns.
const (
	SortByName  = "nome"
	SortByTotal = "totalRegistros"
)

// Sort directions.
const (
	Ascending  = "asc"
	Descending = "desc"
)

// TableQuery selects a page of the result table.
type TableQuery struct {
	Search    string `query:"busca"`
	SortBy    string `query:"ordenar"`
	Direction string `query:"direcao"`
	Page      int    `query:"pagina"`
}

// Normalize fills defaults and validates the sort options.
func (q *TableQuery) Normalize() error {
	if q.SortBy == "" {
		q.SortBy = SortByName
	}
	if q.Direction == "" {
		q.Direction = Ascending
	}

	problems := map[string][]string{}
	if q.SortBy != SortByName && q.SortBy != SortByTotal {
		problems["ordenar"] = []string{"must be nome or totalRegistros"}
	}
	if q.Direction != Ascending && q.Direction != Descending {
		problems["direcao"] = []string{"must be asc or desc"}
	}
	if len(problems) > 0 {
		return &domain.ValidationError{Problems: problems}
	}
	return nil
}

// TablePage is one page of the result table.
// From and To are 1-based and inclusive; both are zero when nothing matches.
type TablePage struct {
	Rows       []Row  `json:"rows"`
	Page       int    `json:"pagina"`
	TotalPages int    `json:"total_paginas"`
	TotalItems int    `json:"total_itens"`
	From       int    `json:"de"`
	To         int    `json:"ate"`
	SortBy     string `json:"ordenar"`
	Direction  string `json:"direcao"`
}

// Paginate filters, sorts and slices rows. The page is clamped to the
// available range. rows is not modified.
func Paginate(rows []Row, q TableQuery) (*TablePage, error) {
	if err := q.Normalize(); err != nil {
		return nil, err
	}

	filtered := make([]Row, 0, len(rows))
	needle := strings.ToLower(strings.TrimSpace(q.Search))
	for _, row := range rows {
		if needle == "" || strings.Contains(strings.ToLower(row.Nome), needle) {
			filtered = append(filtered, row)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		a, b := filtered[i], filtered[j]
		if q.SortBy == SortByTotal {
			if q.Direction == Descending {
				return a.TotalRegistros > b.TotalRegistros
			}
			return a.TotalRegistros < b.TotalRegistros
		}
		na, nb := strings.ToLower(a.Nome), strings.ToLower(b.Nome)
		if q.Direction == Descending {
			return na > nb
		}
		return na < nb
	})

	total := len(filtered)
	totalPages := (total + PageSize - 1) / PageSize
	page := q.Page
	if page > totalPages {
		page = totalPages
	}
	if page < 1 {
		page = 1
	}

	start := (page - 1) * PageSize
	end := min(start+PageSize, total)
	out := &TablePage{
		Rows:       filtered[start:end],
		Page:       page,
		TotalPages: totalPages,
		TotalItems: total,
		SortBy:     q.SortBy,
		Direction:  q.Direction,
	}
	if total > 0 {
		out.From = start + 1
		out.To = end
	}
	return out, nil
}
