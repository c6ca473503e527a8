package engine_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/KevinWangQQ/youtube-influencer-search/pkg/db"
	"github.com/KevinWangQQ/youtube-influencer-search/pkg/db/models"
	"github.com/KevinWangQQ/youtube-influencer-search/pkg/engine"
	"github.com/KevinWangQQ/youtube-influencer-search/pkg/keywords"
	"github.com/KevinWangQQ/youtube-influencer-search/pkg/monitoring"
	"github.com/KevinWangQQ/youtube-influencer-search/pkg/store"
	"github.com/KevinWangQQ/youtube-influencer-search/pkg/taskerr"
)

const credential = "AIza-test-key"

var testThresholds = engine.Thresholds{MinSubscribers: 1000, MinViews: 1000, MaxResults: 50}

var _ = Describe("Engine", func() {
	var (
		ctx       context.Context
		logger    *logrus.Logger
		gormDB    *gorm.DB
		taskStore *store.TaskStore
		fake      *fakeProvider
		eng       *engine.Engine
	)

	newEngine := func(generator engine.KeywordGenerator) *engine.Engine {
		e, err := engine.New(engine.Config{
			Store:     taskStore,
			Provider:  fake,
			Generator: generator,
			Metrics:   monitoring.NewMetricsCollector(),
			Logger:    logger,
		})
		Expect(err).NotTo(HaveOccurred())
		return e
	}

	BeforeEach(func() {
		ctx = context.Background()
		logger = logrus.New()
		logger.SetOutput(io.Discard)

		var err error
		gormDB, err = db.SetupDatabase(logger, db.NewSQLiteConfig(filepath.Join(GinkgoT().TempDir(), "engine.db")))
		Expect(err).NotTo(HaveOccurred())

		taskStore = store.NewTaskStore(logger, gormDB)
		fake = newFakeProvider()
		eng = newEngine(nil)
	})

	AfterEach(func() {
		Expect(db.Close(gormDB)).To(Succeed())
	})

	createTask := func(name string) string {
		result, err := eng.CreateTask(ctx, engine.CreateTaskRequest{
			ProductName: name,
			Credential:  credential,
			Thresholds:  testThresholds,
		})
		Expect(err).NotTo(HaveOccurred())
		return result.TaskID
	}

	Describe("CreateTask", func() {
		It("persists a running task with the generated keywords", func() {
			result, err := eng.CreateTask(ctx, engine.CreateTaskRequest{
				ProductName: "eero 7",
				Credential:  credential,
				Thresholds:  testThresholds,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Keywords).To(Equal(keywords.Generate("eero 7")))
			Expect(result.Task.Status).To(Equal(models.StatusRunning))
			Expect(result.Task.Progress).To(Equal(0))

			task, err := taskStore.GetTask(ctx, result.TaskID)
			Expect(err).NotTo(HaveOccurred())
			Expect(task.CredentialHash).To(Equal(engine.HashCredential(credential)))
			Expect(task.CredentialHash).NotTo(ContainSubstring(credential))

			stored, err := taskStore.ListKeywords(ctx, result.TaskID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored).To(HaveLen(len(result.Keywords)))
		})

		It("persists nothing when no keywords are generated", func() {
			empty := newEngine(func(string) []string { return nil })

			_, err := empty.CreateTask(ctx, engine.CreateTaskRequest{
				ProductName: "anything",
				Credential:  credential,
				Thresholds:  testThresholds,
			})
			Expect(taskerr.Is(err, taskerr.KindInvalidInput)).To(BeTrue())
			Expect(taskerr.HasCode(err, taskerr.CodeNoKeywords)).To(BeTrue())

			tasks, err := taskStore.ListRecentTasks(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(tasks).To(BeEmpty())
		})

		DescribeTable("rejects invalid input",
			func(name, cred string, thresholds engine.Thresholds) {
				_, err := eng.CreateTask(ctx, engine.CreateTaskRequest{
					ProductName: name,
					Credential:  cred,
					Thresholds:  thresholds,
				})
				Expect(taskerr.Is(err, taskerr.KindInvalidInput)).To(BeTrue())
			},
			Entry("blank product name", "  ", credential, testThresholds),
			Entry("missing credential", "eero 7", "", testThresholds),
			Entry("negative subscribers", "eero 7", credential, engine.Thresholds{MinSubscribers: -1, MaxResults: 5}),
			Entry("zero max results", "eero 7", credential, engine.Thresholds{MaxResults: 0}),
		)
	})

	Describe("AdvanceTask", func() {
		It("finds the large creator for eero 7 and completes after one call per keyword", func() {
			taskID := createTask("eero 7")
			total := len(keywords.Generate("eero 7"))

			var progress []int
			for i := 0; i < total; i++ {
				view, err := eng.AdvanceTask(ctx, taskID, credential)
				Expect(err).NotTo(HaveOccurred())
				progress = append(progress, view.Progress)
				if i < total-1 {
					Expect(view.Status).To(Equal(models.StatusRunning))
				} else {
					Expect(view.Status).To(Equal(models.StatusCompleted))
					Expect(view.CompletedAt).NotTo(BeNil())
				}
			}

			Expect(progress).To(Equal([]int{13, 25, 38, 50, 63, 75, 88, 100}))
			Expect(fake.queries()).To(Equal(keywords.Generate("eero 7")))

			rows, err := taskStore.ListInfluencers(ctx, taskID)
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(1))
			Expect(rows[0].ChannelID).To(Equal("chan-big"))
			Expect(rows[0].Subscribers).To(Equal(int64(18600000)))
			Expect(rows[0].Views).To(Equal(int64(725000)))
			Expect(rows[0].VideoURL).To(Equal("https://www.youtube.com/watch?v=vid-big"))
			Expect(rows[0].SearchKeyword).To(Equal("eero 7"))
		})

		It("returns the terminal view unchanged on extra calls", func() {
			taskID := createTask("eero 7")
			for i := 0; i < keywords.MaxKeywords; i++ {
				_, err := eng.AdvanceTask(ctx, taskID, credential)
				Expect(err).NotTo(HaveOccurred())
			}
			searches := len(fake.queries())

			first, err := eng.AdvanceTask(ctx, taskID, credential)
			Expect(err).NotTo(HaveOccurred())
			second, err := eng.AdvanceTask(ctx, taskID, "")
			Expect(err).NotTo(HaveOccurred())

			Expect(first).To(Equal(second))
			Expect(first.Status).To(Equal(models.StatusCompleted))
			Expect(first.Progress).To(Equal(100))
			Expect(fake.queries()).To(HaveLen(searches))
		})

		It("completes a task whose keywords were all claimed elsewhere", func() {
			taskID := createTask("eero 7")
			for {
				kw, err := taskStore.ClaimNextKeyword(ctx, taskID)
				Expect(err).NotTo(HaveOccurred())
				if kw == nil {
					break
				}
			}

			view, err := eng.AdvanceTask(ctx, taskID, credential)
			Expect(err).NotTo(HaveOccurred())
			Expect(view.Status).To(Equal(models.StatusCompleted))
			Expect(view.Progress).To(Equal(100))
			Expect(fake.queries()).To(BeEmpty())
		})

		It("fails the task on a provider error and stops processing", func() {
			taskID := createTask("eero 7")
			fake.failOn["eero 7 review"] = errors.New("youtube api error: status=403 reason=quotaExceeded")

			view, err := eng.AdvanceTask(ctx, taskID, credential)
			Expect(err).NotTo(HaveOccurred())
			Expect(view.Status).To(Equal(models.StatusRunning))

			view, err = eng.AdvanceTask(ctx, taskID, credential)
			Expect(err).NotTo(HaveOccurred())
			Expect(view.Status).To(Equal(models.StatusFailed))
			Expect(view.Progress).To(Equal(100))
			Expect(view.Error).To(ContainSubstring("quotaExceeded"))

			again, err := eng.AdvanceTask(ctx, taskID, credential)
			Expect(err).NotTo(HaveOccurred())
			Expect(again.Status).To(Equal(models.StatusFailed))
			Expect(fake.queries()).To(HaveLen(2))

			counts, err := taskStore.CountKeywords(ctx, taskID)
			Expect(err).NotTo(HaveOccurred())
			Expect(counts.Processed).To(Equal(int64(2)))

			stored, err := eng.GetTask(ctx, taskID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Error).To(Equal(view.Error))
		})

		It("requires the credential while the task is running", func() {
			taskID := createTask("eero 7")

			_, err := eng.AdvanceTask(ctx, taskID, "")
			Expect(taskerr.Is(err, taskerr.KindInvalidInput)).To(BeTrue())
			Expect(taskerr.HasCode(err, taskerr.CodeMissingCredential)).To(BeTrue())
			Expect(fake.queries()).To(BeEmpty())
		})

		It("reports unknown tasks as not found", func() {
			_, err := eng.AdvanceTask(ctx, "no-such-task", credential)
			Expect(taskerr.Is(err, taskerr.KindNotFound)).To(BeTrue())
		})

		It("caps the per-keyword search at 50 results", func() {
			result, err := eng.CreateTask(ctx, engine.CreateTaskRequest{
				ProductName: "eero 7",
				Credential:  credential,
				Thresholds:  engine.Thresholds{MinSubscribers: 0, MinViews: 0, MaxResults: 500},
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = eng.AdvanceTask(ctx, result.TaskID, credential)
			Expect(err).NotTo(HaveOccurred())
			Expect(fake.searches[0].MaxResults).To(Equal(50))

			rows, err := taskStore.ListInfluencers(ctx, result.TaskID)
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(2), "candidates without statistics are skipped")
		})

		It("processes every keyword exactly once under concurrent callers", func() {
			taskID := createTask("eero 7")

			var wg sync.WaitGroup
			for i := 0; i < 12; i++ {
				wg.Add(1)
				go func(i int) {
					defer GinkgoRecover()
					defer wg.Done()
					_, err := eng.AdvanceTask(ctx, taskID, fmt.Sprintf("%s-%d", credential, i))
					Expect(err).NotTo(HaveOccurred())
				}(i)
			}
			wg.Wait()

			Expect(fake.queries()).To(ConsistOf(keywords.Generate("eero 7")))

			view, err := eng.GetTask(ctx, taskID)
			Expect(err).NotTo(HaveOccurred())
			Expect(view.Status).To(Equal(models.StatusCompleted))
			Expect(view.Progress).To(Equal(100))
		})

		It("maps store read failures to StoreFailure", func() {
			broken, err := engine.New(engine.Config{
				Store:    failingStore{TaskStore: taskStore},
				Provider: fake,
				Logger:   logger,
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = broken.AdvanceTask(ctx, "any", credential)
			Expect(taskerr.Is(err, taskerr.KindStoreFailure)).To(BeTrue())
		})
	})

	Describe("RecentTasks", func() {
		It("lists created tasks", func() {
			first := createTask("eero 7")
			second := createTask("Sony WH-1000XM5")

			views, err := eng.RecentTasks(ctx, 0)
			Expect(err).NotTo(HaveOccurred())
			ids := []string{views[0].ID, views[1].ID}
			Expect(ids).To(ConsistOf(first, second))
		})
	})

	Describe("PreviewKeywords", func() {
		It("rejects blank names", func() {
			_, err := eng.PreviewKeywords(" ")
			Expect(taskerr.Is(err, taskerr.KindInvalidInput)).To(BeTrue())
		})
	})
})

type failingStore struct {
	engine.TaskStore
}

func (failingStore) GetTask(ctx context.Context, taskID string) (*models.Task, error) {
	return nil, errors.New("database is locked")
}
