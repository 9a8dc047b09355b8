package domain

// Region is a macro-region of Brazil (Norte, Nordeste, ...).
type Region struct {
	ID   int64  `json:"id"`
	Nome string `json:"nome"`
}

// State is a federative unit (UF). ID is the IBGE code.
type State struct {
	ID       int64  `json:"id"`
	Nome     string `json:"nome"`
	Sigla    string `json:"sigla"`
	RegiaoID int64  `json:"regiao_id"`
}

// Municipality belongs to exactly one State through CodUF.
type Municipality struct {
	ID    int64  `json:"id"`
	Nome  string `json:"nome"`
	CodUF int64  `json:"cod_uf"`
}

// FindState returns the state with the given id, or nil.
func FindState(states []State, id int64) *State {
	for i := range states {
		if states[i].ID == id {
			s := states[i]
			return &s
		}
	}
	return nil
}

// MunicipalitiesOf keeps the municipalities that belong to the given state.
func MunicipalitiesOf(all []Municipality, stateID int64) []Municipality {
	out := make([]Municipality, 0)
	for _, m := range all {
		if m.CodUF == stateID {
			out = append(out, m)
		}
	}
	return out
}
