package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/KevinWangQQ/youtube-influencer-search/pkg/api"
	"github.com/KevinWangQQ/youtube-influencer-search/pkg/db"
	"github.com/KevinWangQQ/youtube-influencer-search/pkg/engine"
	"github.com/KevinWangQQ/youtube-influencer-search/pkg/export"
	"github.com/KevinWangQQ/youtube-influencer-search/pkg/monitoring"
	"github.com/KevinWangQQ/youtube-influencer-search/pkg/provider"
	"github.com/KevinWangQQ/youtube-influencer-search/pkg/results"
	"github.com/KevinWangQQ/youtube-influencer-search/pkg/store"
)

const apiKey = "AIza-test-key"

type stubProvider struct {
	searchErr error
}

func (p *stubProvider) SearchVideos(ctx context.Context, credential string, req provider.SearchRequest) ([]provider.Candidate, error) {
	if p.searchErr != nil {
		return nil, p.searchErr
	}
	return []provider.Candidate{
		{VideoID: "vid-1", VideoTitle: "Router \"pro\" review", ChannelID: "chan-1", ChannelTitle: "Net Lab"},
	}, nil
}

func (p *stubProvider) ChannelStatistics(ctx context.Context, credential string, ids []string) (map[string]provider.ChannelStats, error) {
	return map[string]provider.ChannelStats{
		"chan-1": {ID: "chan-1", Title: "Net Lab", URL: "https://www.youtube.com/channel/chan-1", Subscribers: 250000},
	}, nil
}

func (p *stubProvider) VideoStatistics(ctx context.Context, credential string, ids []string) (map[string]provider.VideoStats, error) {
	return map[string]provider.VideoStats{
		"vid-1": {ID: "vid-1", Title: "Router \"pro\" review", URL: "https://www.youtube.com/watch?v=vid-1", Views: 90000},
	}, nil
}

func (p *stubProvider) ValidateCredential(ctx context.Context, credential string) error {
	if credential != apiKey {
		return errors.New("API key not valid")
	}
	return nil
}

func twoKeywords(productName string) []string {
	return []string{productName + " review", productName + " unboxing"}
}

var _ = Describe("Handler", func() {
	var (
		gormDB *gorm.DB
		fake   *stubProvider
		router *gin.Engine
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		logger := logrus.New()
		logger.SetOutput(io.Discard)

		var err error
		gormDB, err = db.SetupDatabase(logger, db.NewSQLiteConfig(filepath.Join(GinkgoT().TempDir(), "api.db")))
		Expect(err).NotTo(HaveOccurred())

		taskStore := store.NewTaskStore(logger, gormDB)
		fake = &stubProvider{}
		metrics := monitoring.NewMetricsCollector()
		eng, err := engine.New(engine.Config{
			Store:     taskStore,
			Provider:  fake,
			Generator: twoKeywords,
			Metrics:   metrics,
			Logger:    logger,
		})
		Expect(err).NotTo(HaveOccurred())

		handler := api.NewHandler(eng, results.NewService(taskStore), taskStore, logger)
		router = api.NewRouter(handler, metrics, logger)
	})

	AfterEach(func() {
		Expect(db.Close(gormDB)).To(Succeed())
	})

	do := func(method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
		var reader io.Reader
		if body != nil {
			payload, err := json.Marshal(body)
			Expect(err).NotTo(HaveOccurred())
			reader = bytes.NewReader(payload)
		}
		req := httptest.NewRequest(method, path, reader)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	decode := func(rec *httptest.ResponseRecorder) map[string]interface{} {
		var out map[string]interface{}
		Expect(json.Unmarshal(rec.Body.Bytes(), &out)).To(Succeed())
		return out
	}

	createTask := func() string {
		rec := do(http.MethodPost, "/api/search", map[string]interface{}{
			"productName": "Archer BE800",
			"apiKey":      apiKey,
		}, nil)
		Expect(rec.Code).To(Equal(http.StatusOK))
		return decode(rec)["taskId"].(string)
	}

	advance := func(taskID string) map[string]interface{} {
		rec := do(http.MethodGet, "/api/status/"+taskID, nil, map[string]string{api.CredentialHeader: apiKey})
		Expect(rec.Code).To(Equal(http.StatusOK))
		return decode(rec)
	}

	Describe("POST /api/search", func() {
		It("creates a running task and returns its keywords", func() {
			rec := do(http.MethodPost, "/api/search", map[string]interface{}{
				"productName": "Archer BE800",
				"apiKey":      apiKey,
			}, nil)

			Expect(rec.Code).To(Equal(http.StatusOK))
			body := decode(rec)
			Expect(body["taskId"]).NotTo(BeEmpty())
			Expect(body["keywords"]).To(Equal([]interface{}{"Archer BE800 review", "Archer BE800 unboxing"}))
			Expect(body["status"]).To(Equal("running"))
			Expect(body["progress"]).To(BeNumerically("==", 0))
		})

		It("rejects a missing product name", func() {
			rec := do(http.MethodPost, "/api/search", map[string]interface{}{"apiKey": apiKey}, nil)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(decode(rec)["code"]).To(Equal("MISSING_FIELD"))
		})

		It("rejects negative thresholds", func() {
			rec := do(http.MethodPost, "/api/search", map[string]interface{}{
				"productName":    "Archer BE800",
				"apiKey":         apiKey,
				"minSubscribers": -1,
			}, nil)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(decode(rec)["code"]).To(Equal("INVALID_THRESHOLD"))
		})

		It("rejects a malformed body", func() {
			req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader("{not json"))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("GET /api/status/:task_id", func() {
		It("advances one keyword per call until completed", func() {
			taskID := createTask()

			first := advance(taskID)
			Expect(first["status"]).To(Equal("running"))
			Expect(first["progress"]).To(BeNumerically("==", 50))

			second := advance(taskID)
			Expect(second["status"]).To(Equal("completed"))
			Expect(second["progress"]).To(BeNumerically("==", 100))

			third := advance(taskID)
			Expect(third["status"]).To(Equal("completed"))
			Expect(third["progress"]).To(BeNumerically("==", 100))
		})

		It("requires the credential header", func() {
			taskID := createTask()

			rec := do(http.MethodGet, "/api/status/"+taskID, nil, nil)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(decode(rec)["code"]).To(Equal("MISSING_CREDENTIAL"))
		})

		It("reports provider failures as a failed task with status 200", func() {
			taskID := createTask()
			fake.searchErr = errors.New("quota exceeded")

			body := advance(taskID)

			Expect(body["status"]).To(Equal("failed"))
			Expect(body["progress"]).To(BeNumerically("==", 100))
			Expect(body["error"]).To(ContainSubstring("quota exceeded"))
		})

		It("returns 404 for unknown tasks", func() {
			rec := do(http.MethodGet, "/api/status/missing", nil, map[string]string{api.CredentialHeader: apiKey})

			Expect(rec.Code).To(Equal(http.StatusNotFound))
			Expect(decode(rec)["code"]).To(Equal("TASK_NOT_FOUND"))
		})
	})

	Describe("GET /api/tasks/:task_id", func() {
		It("reads the task without advancing it", func() {
			taskID := createTask()

			rec := do(http.MethodGet, "/api/tasks/"+taskID, nil, nil)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(decode(rec)["progress"]).To(BeNumerically("==", 0))

			rec = do(http.MethodGet, "/api/tasks/"+taskID, nil, nil)
			Expect(decode(rec)["progress"]).To(BeNumerically("==", 0))
		})
	})

	Describe("results and download", func() {
		It("summarizes the deduplicated influencers", func() {
			taskID := createTask()
			advance(taskID)
			advance(taskID)

			rec := do(http.MethodGet, "/api/results/"+taskID, nil, nil)

			Expect(rec.Code).To(Equal(http.StatusOK))
			body := decode(rec)
			Expect(body["taskId"]).To(Equal(taskID))
			summary := body["summary"].(map[string]interface{})
			Expect(summary["count"]).To(BeNumerically("==", 1))
			Expect(summary["maxSubscribers"]).To(BeNumerically("==", 250000))
			Expect(summary["avgViews"]).To(BeNumerically("==", 90000))
			Expect(body["influencers"]).To(HaveLen(1))
		})

		It("serves the CSV as an attachment", func() {
			taskID := createTask()
			advance(taskID)

			rec := do(http.MethodGet, "/api/download/"+taskID, nil, nil)

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Type")).To(Equal(export.ContentType))
			Expect(rec.Header().Get("Content-Disposition")).To(ContainSubstring("results_" + taskID + ".csv"))

			lines := strings.Split(rec.Body.String(), "\n")
			Expect(lines).To(HaveLen(2))
			Expect(lines[0]).To(Equal(export.Header))
			Expect(lines[1]).To(ContainSubstring(`"Router ""pro"" review"`))
		})

		It("serves only the header for a task without matches", func() {
			taskID := createTask()

			rec := do(http.MethodGet, "/api/download/"+taskID, nil, nil)

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(Equal(export.Header))
		})

		It("returns 404 for unknown tasks", func() {
			Expect(do(http.MethodGet, "/api/results/missing", nil, nil).Code).To(Equal(http.StatusNotFound))
			Expect(do(http.MethodGet, "/api/download/missing", nil, nil).Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("GET /api/history", func() {
		It("lists tasks up to the limit", func() {
			createTask()
			createTask()
			createTask()

			rec := do(http.MethodGet, "/api/history?limit=2", nil, nil)

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(decode(rec)["tasks"]).To(HaveLen(2))
		})

		It("rejects a non-numeric limit", func() {
			Expect(do(http.MethodGet, "/api/history?limit=abc", nil, nil).Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("POST /api/keywords", func() {
		It("previews keywords without creating a task", func() {
			rec := do(http.MethodPost, "/api/keywords", map[string]string{"productName": "Deco X50"}, nil)

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(decode(rec)["keywords"]).To(Equal([]interface{}{"Deco X50 review", "Deco X50 unboxing"}))

			history := do(http.MethodGet, "/api/history", nil, nil)
			Expect(decode(history)["tasks"]).To(BeEmpty())
		})
	})

	Describe("POST /api/validate-key", func() {
		It("accepts a working key", func() {
			rec := do(http.MethodPost, "/api/validate-key", map[string]string{"apiKey": apiKey}, nil)

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(decode(rec)["valid"]).To(BeTrue())
		})

		It("reports a rejected key as invalid", func() {
			rec := do(http.MethodPost, "/api/validate-key", map[string]string{"apiKey": "nope"}, nil)

			Expect(rec.Code).To(Equal(http.StatusOK))
			body := decode(rec)
			Expect(body["valid"]).To(BeFalse())
			Expect(body["error"]).To(ContainSubstring("API key not valid"))
		})

		It("requires a key", func() {
			Expect(do(http.MethodPost, "/api/validate-key", map[string]string{}, nil).Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("operational endpoints", func() {
		It("reports healthy when the database answers", func() {
			rec := do(http.MethodGet, "/health", nil, nil)

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(decode(rec)["status"]).To(Equal("healthy"))
		})

		It("exposes task metrics", func() {
			createTask()

			rec := do(http.MethodGet, "/metrics", nil, nil)

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring("tasks_created_total"))
		})

		It("answers CORS preflight requests", func() {
			rec := do(http.MethodOptions, "/api/search", nil, nil)

			Expect(rec.Code).To(Equal(http.StatusNoContent))
			Expect(rec.Header().Get("Access-Control-Allow-Headers")).To(ContainSubstring(api.CredentialHeader))
		})
	})
})
