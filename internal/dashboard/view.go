package dashboard

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"vitalstats/internal/aggregation"
	"vitalstats/internal/choropleth"
	"vitalstats/internal/domain"
	"vitalstats/internal/loader"
)

// Level is the granularity the dashboard is showing.
type Level string

const (
	LevelStates         Level = "estados"
	LevelMunicipalities Level = "municipios"
)

// View is everything the presentation layer renders for one session.
type View struct {
	Filter         domain.FilterState `json:"filter"`
	Loading        bool               `json:"loading"`
	Notice         string             `json:"notice,omitempty"`
	Error          string             `json:"error,omitempty"`
	Level          Level              `json:"level"`
	Heading        string             `json:"heading"`
	Subtitle       string             `json:"subtitle"`
	Total          int64              `json:"total"`
	TotalFormatted string             `json:"total_formatted"`
	Map            []MapFeature       `json:"map"`
	Rows           []Row              `json:"rows"`
	FailedStates   []int64            `json:"failed_states,omitempty"`
	Hover          Hover              `json:"hover"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// MapFeature is one state on the choropleth.
type MapFeature struct {
	StateID int64  `json:"uf"`
	Nome    string `json:"nome"`
	HasData bool   `json:"has_data"`
	Total   int64  `json:"total"`
	Bucket  int    `json:"bucket"`
	Fill    string `json:"fill"`
}

// Row is one line of the result table, a state or a municipality.
type Row struct {
	ID             int64           `json:"id"`
	Nome           string          `json:"nome"`
	Sigla          string          `json:"sigla,omitempty"`
	TotalRegistros int64           `json:"totalRegistros"`
	Share          decimal.Decimal `json:"percentual"`
}

// snapshot is the controller state a view is built from.
type snapshot struct {
	filter         domain.FilterState
	loading        bool
	notice         string
	err            string
	states         *loader.StateDataset
	municipalities *loader.MunicipalityDataset
	hover          Hover
	updatedAt      time.Time
}

func buildView(s snapshot) *View {
	f := s.filter
	states := s.states
	if states == nil {
		states = emptyStates()
	}

	v := &View{
		Filter:       f,
		Loading:      s.loading,
		Notice:       s.notice,
		Error:        s.err,
		Level:        LevelStates,
		Heading:      "Estados do Brasil",
		Subtitle:     fmt.Sprintf("%s • Ano %d", f.TipoRegistro.Label(), f.Ano),
		Map:          buildMap(states, f),
		FailedStates: states.Failed,
		Hover:        s.hover,
		UpdatedAt:    s.updatedAt,
	}

	if f.HasSelection() {
		v.Level = LevelMunicipalities
		name := ""
		if st := domain.FindState(states.States, f.SelectedState()); st != nil {
			name = st.Nome
		}
		v.Heading = "Municípios - " + name
		v.Rows = municipalityRows(s.municipalities, f)

		// the state's own records are authoritative; municipality rows cover
		// states the backend has no aggregate for
		if records := states.Statistics[f.SelectedState()]; len(records) > 0 {
			v.Total = aggregation.TotalFor(records, f.TipoRegistro, f.Ano)
		} else {
			v.Total = sumRows(v.Rows)
		}
	} else {
		v.Total = aggregation.TotalAcrossEntities(states.Statistics, f.TipoRegistro, f.Ano)
		v.Rows = stateRows(states, f, v.Total)
	}
	v.TotalFormatted = FormatNumber(v.Total)

	if v.Hover.IsHovering() {
		v.Hover.Tooltip = ""
		if records, ok := states.Statistics[v.Hover.StateID]; ok {
			total := aggregation.TotalFor(records, f.TipoRegistro, f.Ano)
			v.Hover.Tooltip = tooltip(featureName(states, v.Hover.StateID), total)
		}
	}
	return v
}

// buildMap colors every known UF. States outside the dataset get no data.
func buildMap(states *loader.StateDataset, f domain.FilterState) []MapFeature {
	totals := make(map[int64]int64, len(states.Statistics))
	values := make([]int64, 0, len(states.Statistics))
	for id, records := range states.Statistics {
		total := aggregation.TotalFor(records, f.TipoRegistro, f.Ano)
		totals[id] = total
		values = append(values, total)
	}
	scale := aggregation.NewQuantileScale(values)

	names := choropleth.FeatureNames()
	features := make([]MapFeature, 0, len(names))
	for id, name := range names {
		total, ok := totals[id]
		bucket := 0
		if ok {
			bucket = scale.Bucket(total)
		}
		features = append(features, MapFeature{
			StateID: id,
			Nome:    name,
			HasData: ok,
			Total:   total,
			Bucket:  bucket,
			Fill:    choropleth.Fill(bucket, ok, id, f.SelectedState()),
		})
	}
	sort.Slice(features, func(i, j int) bool { return features[i].StateID < features[j].StateID })
	return features
}

func stateRows(states *loader.StateDataset, f domain.FilterState, grand int64) []Row {
	rows := make([]Row, 0, len(states.States))
	for _, st := range states.States {
		total := aggregation.TotalFor(states.Statistics[st.ID], f.TipoRegistro, f.Ano)
		rows = append(rows, Row{
			ID:             st.ID,
			Nome:           st.Nome,
			Sigla:          st.Sigla,
			TotalRegistros: total,
			Share:          aggregation.Share(total, grand),
		})
	}
	return rows
}

func municipalityRows(ds *loader.MunicipalityDataset, f domain.FilterState) []Row {
	if ds == nil {
		return []Row{}
	}
	rows := make([]Row, 0, len(ds.Municipalities))
	var grand int64
	for _, m := range ds.Municipalities {
		total := aggregation.TotalForMunicipality(ds.Statistics, m.ID, f.TipoRegistro, f.Ano)
		grand += total
		rows = append(rows, Row{ID: m.ID, Nome: m.Nome, TotalRegistros: total})
	}
	for i := range rows {
		rows[i].Share = aggregation.Share(rows[i].TotalRegistros, grand)
	}
	return rows
}

func sumRows(rows []Row) int64 {
	var total int64
	for _, row := range rows {
		total += row.TotalRegistros
	}
	return total
}

// featureName prefers the dataset's name and falls back to the map's.
func featureName(states *loader.StateDataset, id int64) string {
	if st := domain.FindState(states.States, id); st != nil {
		return st.Nome
	}
	return choropleth.FeatureNames()[id]
}

func emptyStates() *loader.StateDataset {
	return &loader.StateDataset{
		States:     []domain.State{},
		Statistics: map[int64][]domain.StatisticRecord{},
	}
}
