package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/trendrider/internal/blob"
	"github.com/cuongbtq/trendrider/internal/domain"
	"github.com/cuongbtq/trendrider/internal/generation"
	"github.com/cuongbtq/trendrider/internal/quota"
	"github.com/cuongbtq/trendrider/internal/storage"
	"github.com/cuongbtq/trendrider/internal/storage/storagetest"
	"github.com/cuongbtq/trendrider/internal/worker"
	"github.com/cuongbtq/trendrider/shared/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingScheduler struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (r *recordingScheduler) Schedule(_ context.Context, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.ids = append(r.ids, jobID)
	return nil
}

type testEnv struct {
	store     *storage.Storage
	ledger    *quota.Ledger
	blobs     *blob.FileStore
	scheduler *recordingScheduler
	service   *Service
	effect    *domain.Effect
	premium   *domain.Effect
	upload    *domain.Upload
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	s := storagetest.New(t)
	blobs, err := blob.NewFileStore(t.TempDir(), "http://localhost/media")
	require.NoError(t, err)
	key, err := blobs.Put(context.Background(), "uploads/in.jpg", []byte{0xff, 0xd8, 0xff}, "image/jpeg")
	require.NoError(t, err)

	env := &testEnv{
		store:     s,
		ledger:    quota.NewLedger(s, domain.FreeTierMonthlyLimit, logger.NewDiscard()),
		blobs:     blobs,
		scheduler: &recordingScheduler{},
		effect:    storagetest.SeedEffect(t, s),
		premium:   storagetest.SeedEffect(t, s, storagetest.Premium()),
		upload:    storagetest.SeedUpload(t, s, key, "image/jpeg"),
	}
	env.service = NewService(s, env.ledger, env.scheduler, blobs, logger.NewDiscard())
	return env
}

func (e *testEnv) used(t *testing.T, userID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, e.store.CommitUsage(context.Background(), userID, domain.MonthKey(time.Now()), false, false))
	}
}

func (e *testEnv) jobCount(t *testing.T, userID string) int {
	t.Helper()
	counts, err := e.store.CountJobsByStatus(context.Background(), userID)
	require.NoError(t, err)
	total := 0
	for _, n := range counts {
		total += n
	}
	return total
}

func TestService_Submit(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	handle, err := env.service.Submit(ctx, env.upload.ID, env.effect.ID, domain.Identity{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusProcessing, handle.Status)
	assert.Equal(t, []string{handle.JobID}, env.scheduler.ids)

	job, err := env.store.GetJob(ctx, handle.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusProcessing, job.Status)
	assert.Equal(t, "u1", *job.UserID)
	assert.True(t, job.QuotaReserved)
	assert.Equal(t, domain.MonthKey(time.Now()), *job.QuotaMonth)

	counter, err := env.ledger.Usage(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, counter.EffectsUsed, "usage is committed only on completion")
	assert.Equal(t, 1, counter.EffectsReserved)
}

func TestService_SubmitAnonymous(t *testing.T) {
	env := newEnv(t)

	handle, err := env.service.Submit(context.Background(), env.upload.ID, env.premium.ID, domain.Identity{})
	require.NoError(t, err)

	job, err := env.store.GetJob(context.Background(), handle.JobID)
	require.NoError(t, err)
	assert.Nil(t, job.UserID)
	assert.Nil(t, job.QuotaMonth)
	assert.False(t, job.QuotaReserved)
}

func TestService_SubmitErrors(t *testing.T) {
	env := newEnv(t)
	inactive := storagetest.SeedEffect(t, env.store, storagetest.Inactive())
	owner := "owner"
	owned := &domain.Upload{ID: "owned-upload", UserID: &owner, StorageKey: "uploads/x.jpg", MimeType: "image/jpeg"}
	require.NoError(t, env.store.CreateUpload(context.Background(), owned))

	tests := []struct {
		name     string
		uploadID string
		effectID string
		identity domain.Identity
		wantErr  error
	}{
		{name: "unknown effect", uploadID: env.upload.ID, effectID: "nope", wantErr: domain.ErrEffectNotFound},
		{name: "inactive effect", uploadID: env.upload.ID, effectID: inactive.ID, wantErr: domain.ErrEffectNotFound},
		{name: "unknown upload", uploadID: "nope", effectID: env.effect.ID, wantErr: domain.ErrUploadNotFound},
		{name: "someone else's upload", uploadID: owned.ID, effectID: env.effect.ID, identity: domain.Identity{UserID: "intruder"}, wantErr: domain.ErrUploadNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handle, err := env.service.Submit(context.Background(), tt.uploadID, tt.effectID, tt.identity)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, handle)
		})
	}
	assert.Empty(t, env.scheduler.ids)
}

func TestService_SubmitDenied(t *testing.T) {
	tests := []struct {
		name    string
		used    int
		premium bool
		reason  domain.DenialReason
	}{
		{name: "free user at ceiling", used: 5, reason: domain.DenialQuotaExceeded},
		{name: "free user premium effect", used: 0, premium: true, reason: domain.DenialPremiumRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newEnv(t)
			env.used(t, "u1", tt.used)

			effectID := env.effect.ID
			if tt.premium {
				effectID = env.premium.ID
			}

			handle, err := env.service.Submit(context.Background(), env.upload.ID, effectID, domain.Identity{UserID: "u1"})
			require.Error(t, err)
			assert.Nil(t, handle)

			reason, ok := domain.IsAdmissionDenied(err)
			require.True(t, ok)
			assert.Equal(t, tt.reason, reason)

			assert.Zero(t, env.jobCount(t, "u1"), "denial creates no job")
			assert.Empty(t, env.scheduler.ids)

			counter, err := env.ledger.Usage(context.Background(), "u1")
			require.NoError(t, err)
			assert.Equal(t, tt.used, counter.EffectsUsed)
		})
	}
}

func TestService_SubmitSchedulingFailure(t *testing.T) {
	env := newEnv(t)
	env.scheduler.err = errors.New("broker down")
	env.used(t, "u1", 4)

	handle, err := env.service.Submit(context.Background(), env.upload.ID, env.effect.ID, domain.Identity{UserID: "u1"})
	require.ErrorIs(t, err, domain.ErrSchedulingFailed)
	assert.Nil(t, handle)

	counts, err := env.store.CountJobsByStatus(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, counts[domain.JobStatusFailed])

	counter, err := env.ledger.Usage(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 4, counter.EffectsUsed)
	assert.Zero(t, counter.EffectsReserved, "reservation is released")

	// the slot is available again
	env.scheduler.err = nil
	_, err = env.service.Submit(context.Background(), env.upload.ID, env.effect.ID, domain.Identity{UserID: "u1"})
	require.NoError(t, err)
}

func TestService_ConcurrentSubmissionsAtCeiling(t *testing.T) {
	env := newEnv(t)
	env.used(t, "u1", 4)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.service.Submit(context.Background(), env.upload.ID, env.effect.ID, domain.Identity{UserID: "u1"})
			if err == nil {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, admitted)
	assert.Equal(t, 1, env.jobCount(t, "u1"))
}

func TestService_GetJobStatus(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	handle, err := env.service.Submit(ctx, env.upload.ID, env.effect.ID, domain.Identity{})
	require.NoError(t, err)

	view, err := env.service.GetJobStatus(ctx, handle.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusProcessing, view.Status)
	assert.Equal(t, env.effect.Name, view.EffectName)
	assert.Nil(t, view.ProcessingTimeSeconds)
	assert.Empty(t, view.ResultURL)

	_, err = env.store.CompleteJob(ctx, handle.JobID, 2*time.Second, "results/"+handle.JobID+".jpg", nil)
	require.NoError(t, err)

	view, err = env.service.GetJobStatus(ctx, handle.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, view.Status)
	assert.Equal(t, "http://localhost/media/results/"+handle.JobID+".jpg", view.ResultURL)
	require.NotNil(t, view.ProcessingTimeSeconds)
	assert.InDelta(t, 2.0, *view.ProcessingTimeSeconds, 0.001)
	assert.Empty(t, view.ErrorDetail)

	raw, err := json.Marshal(view)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), env.effect.HiddenPrompt)

	_, err = env.service.GetJobStatus(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestService_GetJobStatusFailed(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	handle, err := env.service.Submit(ctx, env.upload.ID, env.effect.ID, domain.Identity{})
	require.NoError(t, err)
	_, err = env.store.FailJob(ctx, handle.JobID, time.Second, "provider_rejected (status 400): bad image")
	require.NoError(t, err)

	view, err := env.service.GetJobStatus(ctx, handle.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, view.Status)
	assert.Equal(t, "provider_rejected (status 400): bad image", view.ErrorDetail)
	assert.Empty(t, view.ResultURL)
}

func TestService_EndToEndWithWorkerPool(t *testing.T) {
	env := newEnv(t)
	env.used(t, "u1", 4)

	pool := worker.NewWorker(&worker.Config{
		Logger:      logger.NewDiscard(),
		Store:       env.store,
		Ledger:      env.ledger,
		Blobs:       env.blobs,
		Generator:   generation.NewMockClient(logger.NewDiscard()),
		Concurrency: 2,
	})
	pool.Start(context.Background())
	t.Cleanup(func() { _ = pool.Stop(context.Background()) })

	service := NewService(env.store, env.ledger, pool, env.blobs, logger.NewDiscard())

	handle, err := service.Submit(context.Background(), env.upload.ID, env.effect.ID, domain.Identity{UserID: "u1"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		view, err := service.GetJobStatus(context.Background(), handle.JobID)
		return err == nil && view.Status.IsTerminal()
	}, 5*time.Second, 10*time.Millisecond)

	view, err := service.GetJobStatus(context.Background(), handle.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, view.Status)
	assert.NotEmpty(t, view.ResultURL)

	counter, err := env.ledger.Usage(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 5, counter.EffectsUsed)

	_, err = service.Submit(context.Background(), env.upload.ID, env.effect.ID, domain.Identity{UserID: "u1"})
	reason, ok := domain.IsAdmissionDenied(err)
	require.True(t, ok)
	assert.Equal(t, domain.DenialQuotaExceeded, reason)
}

type fakePublisher struct {
	body        []byte
	contentType string
	err         error
}

func (p *fakePublisher) PublishWithRetry(_ context.Context, body []byte, contentType string) error {
	p.body = body
	p.contentType = contentType
	return p.err
}

func TestQueueScheduler(t *testing.T) {
	pub := &fakePublisher{}
	require.NoError(t, NewQueueScheduler(pub).Schedule(context.Background(), "job-1"))
	assert.JSONEq(t, `{"job_id":"job-1"}`, string(pub.body))
	assert.Equal(t, "application/json", pub.contentType)

	pub.err = errors.New("nope")
	assert.Error(t, NewQueueScheduler(pub).Schedule(context.Background(), "job-2"))
}
