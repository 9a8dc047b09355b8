// Package aggregation computes totals, shares and the quantile color scale
// from raw statistic records. Every function is pure and never fails.
package aggregation

import (
	"github.com/shopspring/decimal"

	"vitalstats/internal/domain"
)

// TotalFor sums the counts selected by tipo over the records of the given year.
// Records for other years are ignored. An unknown tipo yields zero.
func TotalFor(records []domain.StatisticRecord, tipo domain.RecordType, year int) int64 {
	var total int64
	for _, rec := range records {
		if rec.Ano != year {
			continue
		}
		total += rec.Count(tipo)
	}
	return total
}

// TotalForMunicipality is TotalFor limited to one municipality's records.
func TotalForMunicipality(records []domain.StatisticRecord, municipalityID int64, tipo domain.RecordType, year int) int64 {
	var total int64
	for _, rec := range records {
		if rec.Ano != year || rec.MunicipalityID() != municipalityID {
			continue
		}
		total += rec.Count(tipo)
	}
	return total
}

// TotalAcrossEntities sums TotalFor over every entity.
func TotalAcrossEntities(byEntity map[int64][]domain.StatisticRecord, tipo domain.RecordType, year int) int64 {
	var total int64
	for _, records := range byEntity {
		total += TotalFor(records, tipo, year)
	}
	return total
}

var hundred = decimal.NewFromInt(100)

// Share returns part as a percentage of total rounded to two places.
// A non-positive total yields zero.
func Share(part, total int64) decimal.Decimal {
	if total <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(part).
		Mul(hundred).
		Div(decimal.NewFromInt(total)).
		Round(2)
}
