package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// AllRegionsTag is the wire value meaning "no region filter".
const AllRegionsTag = "todas"

// AllRegions is the RegionFilter that keeps every state.
const AllRegions RegionFilter = 0

// ErrInvalidFilter is returned when a filter field has an unusable value.
var ErrInvalidFilter = errors.New("invalid filter")

// RegionFilter is either a region id or AllRegions.
type RegionFilter int64

// IsAll reports whether the filter keeps every region.
func (f RegionFilter) IsAll() bool {
	return f == AllRegions
}

// String renders the filter the way it appears in cache keys and query strings.
func (f RegionFilter) String() string {
	if f.IsAll() {
		return AllRegionsTag
	}
	return strconv.FormatInt(int64(f), 10)
}

// ParseRegionFilter accepts "todas", an empty string or a positive region id.
func ParseRegionFilter(s string) (RegionFilter, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, AllRegionsTag) {
		return AllRegions, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return AllRegions, fmt.Errorf("%w: regiao %q", ErrInvalidFilter, s)
	}
	return RegionFilter(id), nil
}

// MarshalJSON encodes AllRegions as "todas" and ids as numbers.
func (f RegionFilter) MarshalJSON() ([]byte, error) {
	if f.IsAll() {
		return json.Marshal(AllRegionsTag)
	}
	return json.Marshal(int64(f))
}

// UnmarshalJSON accepts "todas", a number or a numeric string.
func (f *RegionFilter) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = AllRegions
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		s = string(data)
	}

	parsed, err := ParseRegionFilter(s)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// FilterState is the set of user-selected dimensions driving a dashboard view.
type FilterState struct {
	TipoRegistro      RecordType   `json:"tipo_registro"`
	Ano               int          `json:"ano"`
	Regiao            RegionFilter `json:"regiao"`
	EstadoSelecionado *int64       `json:"estado_selecionado,omitempty"`
}

// DefaultFilter returns the filter a new dashboard starts with.
func DefaultFilter(year int) FilterState {
	return FilterState{
		TipoRegistro: RecordTypeAll,
		Ano:          year,
		Regiao:       AllRegions,
	}
}

// Validate checks the record type and year.
func (f FilterState) Validate() error {
	if !f.TipoRegistro.IsValid() {
		return fmt.Errorf("%w: tipo_registro %q", ErrInvalidFilter, f.TipoRegistro)
	}
	if f.Ano <= 0 {
		return fmt.Errorf("%w: ano must be positive", ErrInvalidFilter)
	}
	if f.EstadoSelecionado != nil && *f.EstadoSelecionado <= 0 {
		return fmt.Errorf("%w: estado_selecionado must be positive", ErrInvalidFilter)
	}
	return nil
}

// HasSelection reports whether a state is drilled into.
func (f FilterState) HasSelection() bool {
	return f.EstadoSelecionado != nil
}

// SelectedState returns the selected state id, or zero.
func (f FilterState) SelectedState() int64 {
	if f.EstadoSelecionado == nil {
		return 0
	}
	return *f.EstadoSelecionado
}

// WithSelection returns a copy of the filter drilled into the given state.
// A zero id clears the selection.
func (f FilterState) WithSelection(stateID int64) FilterState {
	if stateID == 0 {
		f.EstadoSelecionado = nil
		return f
	}
	id := stateID
	f.EstadoSelecionado = &id
	return f
}

// Key renders every dimension deterministically. Two filters describe the
// same view exactly when their keys are equal.
func (f FilterState) Key() string {
	selected := "none"
	if f.EstadoSelecionado != nil {
		selected = strconv.FormatInt(*f.EstadoSelecionado, 10)
	}
	return fmt.Sprintf("%s|%d|%s|%s", f.TipoRegistro, f.Ano, f.Regiao, selected)
}
