package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// RecordType selects which vital-record counts are aggregated.
type RecordType string

const (
	RecordTypeAll       RecordType = "todos"
	RecordTypeBirths    RecordType = "nascimentos"
	RecordTypeDeaths    RecordType = "obitos"
	RecordTypeMarriages RecordType = "casamentos"
)

// IsValid returns true if the record type is one of the known values.
func (t RecordType) IsValid() bool {
	switch t {
	case RecordTypeAll, RecordTypeBirths, RecordTypeDeaths, RecordTypeMarriages:
		return true
	}
	return false
}

// Label returns the display label used in headings and table columns.
func (t RecordType) Label() string {
	switch t {
	case RecordTypeBirths:
		return "Nascimentos"
	case RecordTypeDeaths:
		return "Óbitos"
	case RecordTypeMarriages:
		return "Casamentos"
	case RecordTypeAll:
		return "Todos os Registros"
	default:
		return "Registros"
	}
}

// StatisticRecord holds yearly counts for a state or a municipality.
// Several records may exist for the same entity and year; consumers sum them.
type StatisticRecord struct {
	Ano             int    `json:"ano"`
	TotalNascimento int64  `json:"total_nascimento"`
	TotalMorte      int64  `json:"total_morte"`
	TotalCasamento  int64  `json:"total_casamento"`
	CodMunicipio    *int64 `json:"cod_municipio,omitempty"`
}

// Count returns the count selected by the record type. Unknown types count as zero.
func (r StatisticRecord) Count(t RecordType) int64 {
	switch t {
	case RecordTypeBirths:
		return r.TotalNascimento
	case RecordTypeDeaths:
		return r.TotalMorte
	case RecordTypeMarriages:
		return r.TotalCasamento
	case RecordTypeAll:
		return r.TotalNascimento + r.TotalMorte + r.TotalCasamento
	default:
		return 0
	}
}

// MunicipalityID returns the municipality code, or zero for state-level records.
func (r StatisticRecord) MunicipalityID() int64 {
	if r.CodMunicipio == nil {
		return 0
	}
	return *r.CodMunicipio
}

// UnmarshalJSON decodes a record leniently: absent, null, non-numeric or
// negative counts become zero, numeric strings are parsed and fractions truncated.
func (r *StatisticRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = StatisticRecord{
		Ano:             int(lenientCount(raw["ano"])),
		TotalNascimento: lenientCount(raw["total_nascimento"]),
		TotalMorte:      lenientCount(raw["total_morte"]),
		TotalCasamento:  lenientCount(raw["total_casamento"]),
	}

	if v, ok := raw["cod_municipio"]; ok && !bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		id := lenientCount(v)
		r.CodMunicipio = &id
	}

	return nil
}

func lenientCount(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return 0
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return 0
	}

	switch t := v.(type) {
	case json.Number:
		return parseCount(t.String())
	case string:
		return parseCount(strings.TrimSpace(t))
	default:
		return 0
	}
}

func parseCount(s string) int64 {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < 0 {
			return 0
		}
		return n
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || f < 0 || f >= math.MaxInt64 {
		return 0
	}
	return int64(f)
}
