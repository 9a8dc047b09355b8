package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
)

// fakeBackend serves the statistics REST API from fixed data and counts
// requests per path.
type fakeBackend struct {
	*httptest.Server

	mu        sync.Mutex
	calls     map[string]int
	cartorios map[int64]map[string]any
	nextID    int64
}

var (
	backendRegions = []map[string]any{
		{"id": 1, "nome": "Norte"},
		{"id": 3, "nome": "Sudeste"},
	}
	backendStates = []map[string]any{
		{"id": 13, "nome": "Amazonas", "sigla": "AM", "regiao_id": 1},
		{"id": 33, "nome": "Rio de Janeiro", "sigla": "RJ", "regiao_id": 3},
		{"id": 35, "nome": "São Paulo", "sigla": "SP", "regiao_id": 3},
	}
	backendMunicipalities = []map[string]any{
		{"id": 1302603, "nome": "Manaus", "cod_uf": 13},
		{"id": 3304557, "nome": "Rio de Janeiro", "cod_uf": 33},
		{"id": 3509502, "nome": "Campinas", "cod_uf": 35},
		{"id": 3550308, "nome": "São Paulo", "cod_uf": 35},
	}
)

// brokenState answers 500 for its statistics.
const brokenState = 99

func newFakeBackend() *fakeBackend {
	b := &fakeBackend{
		calls:     map[string]int{},
		cartorios: map[int64]map[string]any{},
		nextID:    1,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /regioes", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, backendRegions)
	})
	mux.HandleFunc("GET /ufs", b.states)
	mux.HandleFunc("GET /municipios", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, backendMunicipalities)
	})
	mux.HandleFunc("GET /ufs/{id}/{ano}/estatisticas", b.stateStatistics)
	mux.HandleFunc("GET /ufs/{id}/{ano}/municipios/estatisticas", b.municipalityStatistics)
	mux.HandleFunc("GET /cartorios", b.listCartorios)
	mux.HandleFunc("POST /cartorios", b.createCartorio)
	mux.HandleFunc("GET /cartorios/{id}", b.getCartorio)
	mux.HandleFunc("DELETE /cartorios/{id}", b.deleteCartorio)

	b.Server = httptest.NewServer(b.count(mux))
	return b
}

func (b *fakeBackend) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.calls[r.URL.Path]++
		b.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

// Calls returns how many requests hit path.
func (b *fakeBackend) Calls(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[path]
}

func (b *fakeBackend) states(w http.ResponseWriter, r *http.Request) {
	region := r.URL.Query().Get("regiao_id")
	out := make([]map[string]any, 0, len(backendStates))
	for _, s := range backendStates {
		if region != "" && strconv.Itoa(s["regiao_id"].(int)) != region {
			continue
		}
		out = append(out, s)
	}
	writeJSON(w, http.StatusOK, out)
}

// stateStatistics returns births id*10, deaths id and one marriage.
func (b *fakeBackend) stateStatistics(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(r.PathValue("id"))
	year, _ := strconv.Atoi(r.PathValue("ano"))
	if id == brokenState {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "boom"})
		return
	}
	writeJSON(w, http.StatusOK, []map[string]any{{
		"ano":              year,
		"total_nascimento": id * 10,
		"total_morte":      id,
		"total_casamento":  1,
	}})
}

func (b *fakeBackend) municipalityStatistics(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(r.PathValue("id"))
	year, _ := strconv.Atoi(r.PathValue("ano"))

	out := make([]map[string]any, 0)
	for _, m := range backendMunicipalities {
		if m["cod_uf"].(int) != id {
			continue
		}
		code := m["id"].(int)
		out = append(out, map[string]any{
			"ano":              year,
			"cod_municipio":    code,
			"total_nascimento": code % 1000,
			"total_morte":      0,
			"total_casamento":  0,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *fakeBackend) listCartorios(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]map[string]any, 0, len(b.cartorios))
	for _, c := range b.cartorios {
		out = append(out, c)
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *fakeBackend) createCartorio(w http.ResponseWriter, r *http.Request) {
	var in map[string]any
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	b.mu.Lock()
	in["id"] = b.nextID
	b.cartorios[b.nextID] = in
	b.nextID++
	b.mu.Unlock()

	writeJSON(w, http.StatusCreated, in)
}

func (b *fakeBackend) getCartorio(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)

	b.mu.Lock()
	c, ok := b.cartorios[id]
	b.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (b *fakeBackend) deleteCartorio(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)

	b.mu.Lock()
	_, ok := b.cartorios[id]
	delete(b.cartorios, id)
	b.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
