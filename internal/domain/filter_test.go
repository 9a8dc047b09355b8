package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestRegionFilter_JSON(t *testing.T) {
	tests := []struct {
		data string
		want RegionFilter
	}{
		{`"todas"`, AllRegions},
		{`null`, AllRegions},
		{`3`, RegionFilter(3)},
		{`"5"`, RegionFilter(5)},
	}

	for _, tt := range tests {
		var got RegionFilter
		if err := json.Unmarshal([]byte(tt.data), &got); err != nil {
			t.Fatalf("Unmarshal(%s) error: %v", tt.data, err)
		}
		if got != tt.want {
			t.Errorf("Unmarshal(%s) = %v, want %v", tt.data, got, tt.want)
		}
	}

	var bad RegionFilter
	if err := json.Unmarshal([]byte(`"norte"`), &bad); !errors.Is(err, ErrInvalidFilter) {
		t.Errorf("expected ErrInvalidFilter, got %v", err)
	}

	out, err := json.Marshal(FilterState{TipoRegistro: RecordTypeAll, Ano: 2025})
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	want := `{"tipo_registro":"todos","ano":2025,"regiao":"todas"}`
	if string(out) != want {
		t.Errorf("Marshal = %s, want %s", out, want)
	}
}

func TestFilterState_Key(t *testing.T) {
	a := DefaultFilter(2025)
	b := DefaultFilter(2025)
	if a.Key() != b.Key() {
		t.Errorf("equal filters produced different keys: %v vs %v", a.Key(), b.Key())
	}

	if a.Key() == a.WithSelection(35).Key() {
		t.Error("selection must change the key")
	}

	c := a
	c.Ano = 2024
	if a.Key() == c.Key() {
		t.Error("year must change the key")
	}

	if got := a.WithSelection(35).WithSelection(0); got.HasSelection() {
		t.Error("WithSelection(0) should clear the selection")
	}
}

func TestFilterState_Validate(t *testing.T) {
	valid := DefaultFilter(2025)
	if err := valid.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	badType := valid
	badType.TipoRegistro = "divorcios"
	if err := badType.Validate(); !errors.Is(err, ErrInvalidFilter) {
		t.Errorf("expected ErrInvalidFilter, got %v", err)
	}

	badYear := valid
	badYear.Ano = 0
	if err := badYear.Validate(); !errors.Is(err, ErrInvalidFilter) {
		t.Errorf("expected ErrInvalidFilter, got %v", err)
	}
}
