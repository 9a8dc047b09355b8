package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"vitalstats/internal/api"
	memorycache "vitalstats/internal/cache/memory"
	"vitalstats/internal/config"
	"vitalstats/internal/dashboard"
	"vitalstats/internal/domain"
	"vitalstats/internal/gateway"
	"vitalstats/internal/invalidation"
	"vitalstats/internal/loader"
	memoryqueue "vitalstats/internal/queue/memory"
)

const defaultYear = 2025

// envelope mirrors the API response wrapper with the payload left raw.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *api.APIError   `json:"error"`
}

var _ = Describe("HTTP Integration Tests", Ordered, func() {
	var (
		backend   *fakeBackend
		server    *api.Server
		processor *invalidation.Processor
		cancel    context.CancelFunc
	)

	// doRequest serves one request in-process and decodes the envelope.
	doRequest := func(method, path string, body interface{}) (int, *envelope) {
		var reader io.Reader
		if body != nil {
			data, err := json.Marshal(body)
			Expect(err).NotTo(HaveOccurred())
			reader = bytes.NewReader(data)
		}

		req := httptest.NewRequest(method, path, reader)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := server.Test(req)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		if len(raw) == 0 {
			return resp.StatusCode, nil
		}

		var env envelope
		Expect(json.Unmarshal(raw, &env)).To(Succeed())
		return resp.StatusCode, &env
	}

	decode := func(env *envelope, target interface{}) {
		Expect(env).NotTo(BeNil())
		Expect(json.Unmarshal(env.Data, target)).To(Succeed())
	}

	BeforeAll(func() {
		logger := slog.New(slog.NewTextHandler(GinkgoWriter, &slog.HandlerOptions{Level: slog.LevelError}))
		backend = newFakeBackend()

		store := memorycache.NewStore(0)
		q := memoryqueue.NewQueue(16, logger)

		client := gateway.NewClient(&config.BackendConfig{
			BaseURL: backend.URL,
			Timeout: 5 * time.Second,
		}, logger)
		cached := loader.New(client, store, 4, logger)
		sessions := dashboard.NewSessions(cached, defaultYear, 10, 30*time.Minute, logger)

		processor = invalidation.NewProcessor(q, store, logger)
		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())
		go func() {
			defer GinkgoRecover()
			_ = processor.Start(ctx)
		}()

		server = api.NewServer(api.ServerDeps{
			Config: &config.ServerConfig{
				Host:         "127.0.0.1",
				Port:         8080,
				ReadTimeout:  5 * time.Second,
				WriteTimeout: 5 * time.Second,
				IdleTimeout:  5 * time.Second,
			},
			Logger:              logger,
			ReferenceHandler:    api.NewReferenceHandler(cached, defaultYear, logger),
			DashboardHandler:    api.NewDashboardHandler(sessions, logger),
			CartorioHandler:     api.NewCartorioHandler(client, logger),
			InvalidationHandler: api.NewInvalidationHandler(invalidation.NewPublisher(q, logger), logger),
			DisableRequestLog:   true,
		})
	})

	AfterAll(func() {
		cancel()
		Expect(processor.Stop()).To(Succeed())
		backend.Close()
	})

	Describe("Health Check", func() {
		It("should return healthy status", func() {
			status, env := doRequest("GET", "/healthz", nil)
			Expect(status).To(Equal(http.StatusOK))
			Expect(env.Success).To(BeTrue())
		})

		It("should render unknown routes in the envelope", func() {
			status, env := doRequest("GET", "/v1/nothing", nil)
			Expect(status).To(Equal(http.StatusNotFound))
			Expect(env.Success).To(BeFalse())
			Expect(env.Error.Code).To(Equal(api.ErrCodeNotFound))
		})
	})

	Describe("Reference API", func() {
		It("should list regions", func() {
			status, env := doRequest("GET", "/v1/regioes", nil)
			Expect(status).To(Equal(http.StatusOK))

			var regions []domain.Region
			decode(env, &regions)
			Expect(regions).To(HaveLen(2))
		})

		It("should filter states by region", func() {
			status, env := doRequest("GET", "/v1/ufs?regiao_id=3", nil)
			Expect(status).To(Equal(http.StatusOK))

			var states []domain.State
			decode(env, &states)
			Expect(states).To(HaveLen(2))
			for _, s := range states {
				Expect(s.RegiaoID).To(Equal(int64(3)))
			}
		})

		It("should reject an unparsable region", func() {
			status, env := doRequest("GET", "/v1/ufs?regiao_id=abc", nil)
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(env.Error.Code).To(Equal(api.ErrCodeValidationFailed))
		})

		It("should list the municipalities of a state", func() {
			status, env := doRequest("GET", "/v1/ufs/35/municipios", nil)
			Expect(status).To(Equal(http.StatusOK))

			var municipalities []domain.Municipality
			decode(env, &municipalities)
			Expect(municipalities).To(HaveLen(2))
		})

		It("should serve repeated statistics reads from the cache", func() {
			for i := 0; i < 3; i++ {
				status, env := doRequest("GET", "/v1/ufs/35/2023/estatisticas", nil)
				Expect(status).To(Equal(http.StatusOK))

				var records []domain.StatisticRecord
				decode(env, &records)
				Expect(records).To(HaveLen(1))
				Expect(records[0].TotalNascimento).To(Equal(int64(350)))
			}
			Expect(backend.Calls("/ufs/35/2023/estatisticas")).To(Equal(1))
		})

		It("should reject a non-positive state", func() {
			status, env := doRequest("GET", "/v1/ufs/0/2023/estatisticas", nil)
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(env.Error.Code).To(Equal(api.ErrCodeValidationFailed))
		})

		It("should report backend failures as bad gateway", func() {
			status, env := doRequest("GET", "/v1/ufs/99/2023/estatisticas", nil)
			Expect(status).To(Equal(http.StatusBadGateway))
			Expect(env.Error.Code).To(Equal(api.ErrCodeBadGateway))
		})
	})

	Describe("Dashboard Sessions API", func() {
		var sessionID string

		It("should create a session with the default filter", func() {
			status, env := doRequest("POST", "/v1/sessions", nil)
			Expect(status).To(Equal(http.StatusCreated))

			var resp api.SessionResponse
			decode(env, &resp)
			Expect(resp.ID).NotTo(BeEmpty())
			sessionID = resp.ID

			view := resp.View
			Expect(view.Level).To(Equal(dashboard.LevelStates))
			Expect(view.Filter.Ano).To(Equal(defaultYear))
			Expect(view.Heading).To(Equal("Estados do Brasil"))
			// 35*11+1 + 33*11+1 + 13*11+1
			Expect(view.Total).To(Equal(int64(894)))
			Expect(view.Map).To(HaveLen(27))
			Expect(resp.Table.TotalItems).To(Equal(3))
		})

		It("should apply a filter", func() {
			body := map[string]interface{}{
				"tipo_registro": "nascimentos",
				"ano":           defaultYear,
				"regiao":        3,
			}
			status, env := doRequest("PUT", "/v1/sessions/"+sessionID+"/filters", body)
			Expect(status).To(Equal(http.StatusOK))

			var resp api.SessionResponse
			decode(env, &resp)
			Expect(resp.View.Total).To(Equal(int64(680)))
			Expect(resp.View.Subtitle).To(Equal("Nascimentos • Ano 2025"))
			Expect(resp.View.Rows).To(HaveLen(2))
		})

		It("should reject an invalid filter", func() {
			body := map[string]interface{}{"tipo_registro": "divorcios", "ano": defaultYear}
			status, env := doRequest("PUT", "/v1/sessions/"+sessionID+"/filters", body)
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(env.Error.Code).To(Equal(api.ErrCodeValidationFailed))
		})

		It("should drill into a state", func() {
			status, env := doRequest("PUT", "/v1/sessions/"+sessionID+"/selection", map[string]interface{}{"uf": 35})
			Expect(status).To(Equal(http.StatusOK))

			var resp api.SessionResponse
			decode(env, &resp)
			Expect(resp.View.Level).To(Equal(dashboard.LevelMunicipalities))
			Expect(resp.View.Heading).To(Equal("Municípios - São Paulo"))
			Expect(resp.View.Total).To(Equal(int64(350)))
			Expect(resp.View.Rows).To(HaveLen(2))
		})

		It("should refuse a state outside the current region", func() {
			status, env := doRequest("PUT", "/v1/sessions/"+sessionID+"/selection", map[string]interface{}{"uf": 13})
			Expect(status).To(Equal(http.StatusConflict))
			Expect(env.Success).To(BeFalse())
		})

		It("should search and sort the table", func() {
			status, env := doRequest("GET", "/v1/sessions/"+sessionID+"?busca=camp", nil)
			Expect(status).To(Equal(http.StatusOK))

			var resp api.SessionResponse
			decode(env, &resp)
			Expect(resp.Table.Rows).To(HaveLen(1))
			Expect(resp.Table.Rows[0].Nome).To(Equal("Campinas"))
			Expect(resp.Table.Rows[0].TotalRegistros).To(Equal(int64(502)))

			status, env = doRequest("GET", "/v1/sessions/"+sessionID+"?ordenar=nome&direcao=asc", nil)
			Expect(status).To(Equal(http.StatusOK))
			decode(env, &resp)
			Expect(resp.Table.Rows[0].Nome).To(Equal("Campinas"))
			Expect(resp.Table.Rows[1].Nome).To(Equal("São Paulo"))
		})

		It("should reject an unknown sort column", func() {
			status, env := doRequest("GET", "/v1/sessions/"+sessionID+"?ordenar=populacao", nil)
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(env.Error.Details).To(HaveKey("ordenar"))
		})

		It("should track hover", func() {
			status, env := doRequest("PUT", "/v1/sessions/"+sessionID+"/hover", map[string]interface{}{"uf": 35})
			Expect(status).To(Equal(http.StatusOK))

			var hover dashboard.Hover
			decode(env, &hover)
			Expect(hover.Status).To(Equal(dashboard.HoverHovering))
			Expect(hover.Tooltip).To(ContainSubstring("São Paulo"))

			status, env = doRequest("DELETE", "/v1/sessions/"+sessionID+"/hover", nil)
			Expect(status).To(Equal(http.StatusOK))
			decode(env, &hover)
			Expect(hover.Status).To(Equal(dashboard.HoverIdle))
		})

		It("should return to the state level", func() {
			status, env := doRequest("DELETE", "/v1/sessions/"+sessionID+"/selection", nil)
			Expect(status).To(Equal(http.StatusOK))

			var resp api.SessionResponse
			decode(env, &resp)
			Expect(resp.View.Level).To(Equal(dashboard.LevelStates))
			Expect(resp.View.Filter.HasSelection()).To(BeFalse())
		})

		It("should delete the session", func() {
			status, _ := doRequest("DELETE", "/v1/sessions/"+sessionID, nil)
			Expect(status).To(Equal(http.StatusNoContent))

			status, env := doRequest("GET", "/v1/sessions/"+sessionID, nil)
			Expect(status).To(Equal(http.StatusNotFound))
			Expect(env.Error.Code).To(Equal(api.ErrCodeNotFound))
		})
	})

	Describe("Cartorios API", func() {
		var cartorioID int64

		It("should reject an invalid CNPJ before calling the backend", func() {
			payload := map[string]interface{}{
				"nome":  "Cartório do 1º Ofício",
				"email": "contato@cartorio.com.br",
				"cnpj":  "11.222.333/0001-82",
			}
			status, env := doRequest("POST", "/v1/cartorios", payload)
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(env.Error.Code).To(Equal(api.ErrCodeValidationFailed))
			Expect(env.Error.Details).To(HaveKey("cnpj"))
			Expect(backend.Calls("/cartorios")).To(Equal(0))
		})

		It("should create a cartorio", func() {
			payload := map[string]interface{}{
				"nome":  "  Cartório do 1º Ofício ",
				"email": "contato@cartorio.com.br",
				"cnpj":  "11.222.333/0001-81",
			}
			status, env := doRequest("POST", "/v1/cartorios", payload)
			Expect(status).To(Equal(http.StatusCreated))

			var created domain.Cartorio
			decode(env, &created)
			Expect(created.ID).To(BeNumerically(">", 0))
			Expect(created.Nome).To(Equal("Cartório do 1º Ofício"))
			Expect(created.CNPJ).To(Equal("11222333000181"))
			cartorioID = created.ID
		})

		It("should list cartorios", func() {
			status, env := doRequest("GET", "/v1/cartorios", nil)
			Expect(status).To(Equal(http.StatusOK))

			var list []domain.Cartorio
			decode(env, &list)
			Expect(list).To(HaveLen(1))
		})

		It("should delete a cartorio", func() {
			status, _ := doRequest("DELETE", "/v1/cartorios/"+strconv.FormatInt(cartorioID, 10), nil)
			Expect(status).To(Equal(http.StatusNoContent))

			status, env := doRequest("GET", "/v1/cartorios/"+strconv.FormatInt(cartorioID, 10), nil)
			Expect(status).To(Equal(http.StatusNotFound))
			Expect(env.Error.Code).To(Equal(api.ErrCodeNotFound))
		})
	})

	Describe("Cache Invalidation API", func() {
		It("should reject an unknown key", func() {
			status, env := doRequest("POST", "/v1/cache/invalidations", map[string]interface{}{
				"keys": []string{"populacao_35"},
			})
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(env.Error.Code).To(Equal(api.ErrCodeValidationFailed))
		})

		It("should drop a cached entry so the next read refetches", func() {
			before := backend.Calls("/ufs/35/2023/estatisticas")
			Expect(before).To(Equal(1))

			status, env := doRequest("POST", "/v1/cache/invalidations", map[string]interface{}{
				"targets": []map[string]interface{}{
					{"kind": "ufStats", "params": []string{"35", "2023"}},
				},
			})
			Expect(status).To(Equal(http.StatusAccepted))

			var msg invalidation.Message
			decode(env, &msg)
			Expect(msg.ID).NotTo(BeEmpty())
			Expect(msg.Keys).To(Equal([]string{"ufStats_35_2023"}))

			Eventually(func() int {
				doRequest("GET", "/v1/ufs/35/2023/estatisticas", nil)
				return backend.Calls("/ufs/35/2023/estatisticas")
			}).WithTimeout(2 * time.Second).WithPolling(20 * time.Millisecond).Should(BeNumerically(">", before))
		})
	})
})
