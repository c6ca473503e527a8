package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/KevinWangQQ/youtube-influencer-search/pkg/db"
	"github.com/KevinWangQQ/youtube-influencer-search/pkg/db/models"
	"github.com/KevinWangQQ/youtube-influencer-search/pkg/store"
)

func newTask(createdAt time.Time) *models.Task {
	return &models.Task{
		ID:             uuid.NewString(),
		ProductName:    "eero 7",
		CredentialHash: "deadbeef",
		MinSubscribers: 1000,
		MinViews:       1000,
		MaxResults:     50,
		Status:         models.StatusRunning,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}
}

var _ = Describe("TaskStore", func() {
	var (
		ctx    context.Context
		logger *logrus.Logger
		gormDB *gorm.DB
		s      *store.TaskStore
	)

	BeforeEach(func() {
		ctx = context.Background()
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)

		var err error
		gormDB, err = db.SetupDatabase(logger, db.NewSQLiteConfig(filepath.Join(GinkgoT().TempDir(), "store.db")))
		Expect(err).NotTo(HaveOccurred(), "Failed to setup database")

		s = store.NewTaskStore(logger, gormDB)
	})

	AfterEach(func() {
		Expect(db.Close(gormDB)).To(Succeed())
	})

	Context("creating tasks", func() {
		It("persists the task with its keywords in order", func() {
			task := newTask(time.Now().UTC())
			Expect(s.CreateTaskWithKeywords(ctx, task, []string{"a", "b", "c"})).To(Succeed())

			loaded, err := s.GetTask(ctx, task.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.ProductName).To(Equal("eero 7"))
			Expect(loaded.Status).To(Equal(models.StatusRunning))
			Expect(loaded.Progress).To(Equal(0))

			keywords, err := s.ListKeywords(ctx, task.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(keywords).To(HaveLen(3))
			Expect(keywords[0].Query).To(Equal("a"))
			Expect(keywords[2].Query).To(Equal("c"))
		})

		It("persists nothing when the transaction fails", func() {
			task := newTask(time.Now().UTC())
			Expect(s.CreateTaskWithKeywords(ctx, task, []string{"a"})).To(Succeed())

			duplicate := newTask(time.Now().UTC())
			duplicate.ID = task.ID
			Expect(s.CreateTaskWithKeywords(ctx, duplicate, []string{"x"})).NotTo(Succeed())

			keywords, err := s.ListKeywords(ctx, task.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(keywords).To(HaveLen(1))
		})

		It("reports missing tasks with ErrTaskNotFound", func() {
			_, err := s.GetTask(ctx, "missing")
			Expect(errors.Is(err, store.ErrTaskNotFound)).To(BeTrue())
		})

		It("lists recent tasks newest first", func() {
			base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
			var ids []string
			for i := 0; i < 3; i++ {
				task := newTask(base.Add(time.Duration(i) * time.Hour))
				Expect(s.CreateTaskWithKeywords(ctx, task, []string{"k"})).To(Succeed())
				ids = append(ids, task.ID)
			}

			tasks, err := s.ListRecentTasks(ctx, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(tasks).To(HaveLen(2))
			Expect(tasks[0].ID).To(Equal(ids[2]))
			Expect(tasks[1].ID).To(Equal(ids[1]))
		})
	})

	Context("claiming keywords", func() {
		var task *models.Task

		BeforeEach(func() {
			task = newTask(time.Now().UTC())
			Expect(s.CreateTaskWithKeywords(ctx, task, []string{"first", "second"})).To(Succeed())
		})

		It("claims keywords in creation order and then returns nil", func() {
			first, err := s.ClaimNextKeyword(ctx, task.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(first.Query).To(Equal("first"))
			Expect(first.Processed).To(BeTrue())

			second, err := s.ClaimNextKeyword(ctx, task.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(second.Query).To(Equal("second"))

			none, err := s.ClaimNextKeyword(ctx, task.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(none).To(BeNil())

			counts, err := s.CountKeywords(ctx, task.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(counts).To(Equal(store.KeywordCounts{Total: 2, Processed: 2}))
		})

		It("never hands the same keyword to concurrent callers", func() {
			var (
				wg      sync.WaitGroup
				mu      sync.Mutex
				claimed []string
			)
			for i := 0; i < 6; i++ {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					kw, err := s.ClaimNextKeyword(ctx, task.ID)
					Expect(err).NotTo(HaveOccurred())
					if kw != nil {
						mu.Lock()
						claimed = append(claimed, kw.Query)
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			Expect(claimed).To(ConsistOf("first", "second"))
		})

		It("returns a released keyword to the pool", func() {
			kw, err := s.ClaimNextKeyword(ctx, task.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.ReleaseKeyword(ctx, kw.ID)).To(Succeed())

			again, err := s.ClaimNextKeyword(ctx, task.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(again.ID).To(Equal(kw.ID))
		})
	})

	Context("influencers", func() {
		var task *models.Task

		BeforeEach(func() {
			task = newTask(time.Now().UTC())
			Expect(s.CreateTaskWithKeywords(ctx, task, []string{"k"})).To(Succeed())
		})

		row := func(channel, video string, views int64) models.Influencer {
			return models.Influencer{
				TaskID:      task.ID,
				ChannelID:   channel,
				VideoID:     video,
				Subscribers: 5000,
				Views:       views,
				CreatedAt:   time.Now().UTC(),
			}
		}

		It("ignores duplicate (task, channel, video) triples", func() {
			inserted, err := s.InsertInfluencers(ctx, []models.Influencer{row("c1", "v1", 10), row("c1", "v2", 30)})
			Expect(err).NotTo(HaveOccurred())
			Expect(inserted).To(Equal(int64(2)))

			inserted, err = s.InsertInfluencers(ctx, []models.Influencer{row("c1", "v1", 99), row("c2", "v1", 20)})
			Expect(err).NotTo(HaveOccurred())
			Expect(inserted).To(Equal(int64(1)))

			rows, err := s.ListInfluencers(ctx, task.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(3))
			Expect(rows[0].VideoID).To(Equal("v2"))
			Expect(rows[1].ChannelID).To(Equal("c2"))
			Expect(rows[2].Views).To(Equal(int64(10)))
		})
	})

	Context("progress updates", func() {
		var task *models.Task

		BeforeEach(func() {
			task = newTask(time.Now().UTC())
			Expect(s.CreateTaskWithKeywords(ctx, task, []string{"k"})).To(Succeed())
		})

		It("never moves progress backwards", func() {
			ok, err := s.UpdateProgress(ctx, task.ID, 50, models.StatusRunning)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())

			ok, err = s.UpdateProgress(ctx, task.ID, 25, models.StatusRunning)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())

			loaded, err := s.GetTask(ctx, task.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.Progress).To(Equal(50))
		})

		It("keeps terminal states absorbing", func() {
			ok, err := s.UpdateProgress(ctx, task.ID, 100, models.StatusCompleted)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())

			ok, err = s.FailTask(ctx, task.ID, "late failure")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())

			loaded, err := s.GetTask(ctx, task.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.Status).To(Equal(models.StatusCompleted))
			Expect(loaded.CompletedAt).NotTo(BeNil())
			Expect(loaded.ErrorMessage).To(BeEmpty())
		})

		It("records the failure message", func() {
			ok, err := s.FailTask(ctx, task.ID, "quota exceeded")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())

			loaded, err := s.GetTask(ctx, task.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.Status).To(Equal(models.StatusFailed))
			Expect(loaded.Progress).To(Equal(100))
			Expect(loaded.ErrorMessage).To(Equal("quota exceeded"))
		})
	})

	It("answers pings", func() {
		Expect(s.Ping(ctx)).To(Succeed())
	})
})

var _ = Describe("TaskStore on a failing connection", func() {
	It("wraps driver errors instead of reporting not found", func() {
		sqlDB, mock, err := sqlmock.New()
		Expect(err).NotTo(HaveOccurred())
		defer sqlDB.Close()

		gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{DisableAutomaticPing: true})
		Expect(err).NotTo(HaveOccurred())

		mock.ExpectQuery(".*").WillReturnError(errors.New("connection refused"))

		s := store.NewTaskStore(logrus.New(), gormDB)
		_, err = s.GetTask(context.Background(), "t-1")
		Expect(err).To(HaveOccurred())
		Expect(errors.Is(err, store.ErrTaskNotFound)).To(BeFalse())
		Expect(err.Error()).To(ContainSubstring("connection refused"))
	})
})
