package server

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/guiyumin/mediagrab/internal/core/downloader"
	"github.com/guiyumin/mediagrab/internal/core/fault"
)

// JobStatus represents the current state of a download job
type JobStatus string

const (
	JobStatusQueued      JobStatus = "queued"
	JobStatusDownloading JobStatus = "downloading"
	JobStatusCompleted   JobStatus = "completed"
	JobStatusFailed      JobStatus = "failed"
	JobStatusCancelled   JobStatus = "cancelled"
)

const (
	queueSize       = 100
	cleanupInterval = 10 * time.Minute
	jobRetention    = time.Hour
)

var (
	// ErrQueueFull is returned by AddJob when no more jobs can be queued
	ErrQueueFull = errors.New("job queue is full")

	ErrQueueStopped = errors.New("job queue is stopped")
)

// JobSpec is what a client asks to download
type JobSpec struct {
	Platform string `json:"platform"`
	URL      string `json:"url"`
	Format   string `json:"format,omitempty"`
	Quality  string `json:"quality,omitempty"`
}

// Job represents a queued download
type Job struct {
	ID string `json:"id"`
	JobSpec

	Status      JobStatus `json:"status"`
	Progress    float64   `json:"progress"`
	Speed       string    `json:"speed,omitempty"`
	ETA         string    `json:"eta,omitempty"`
	FileName    string    `json:"fileName,omitempty"`
	FileSize    int64     `json:"fileSize,omitempty"`
	DownloadURL string    `json:"downloadUrl,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	cancel context.CancelFunc
	ctx    context.Context
}

func (j *Job) finished() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed || j.Status == JobStatusCancelled
}

// DownloadFunc runs one job, reporting progress until it returns
type DownloadFunc func(ctx context.Context, spec JobSpec, progressFn func(downloader.Progress)) (*downloader.Result, error)

// JobQueue runs queued downloads on a fixed pool of workers
type JobQueue struct {
	jobs          map[string]*Job
	mu            sync.RWMutex
	queue         chan *Job
	workers       int
	downloadFn    DownloadFunc
	fileURL       func(platform, fileName string) string
	wg            sync.WaitGroup
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	stopOnce      sync.Once
	stopped       bool
}

// NewJobQueue creates a queue with the given number of workers. fileURL
// builds the download link stored on completed jobs.
func NewJobQueue(workers int, downloadFn DownloadFunc, fileURL func(platform, fileName string) string) *JobQueue {
	if workers <= 0 {
		workers = 1
	}
	return &JobQueue{
		jobs:        make(map[string]*Job),
		queue:       make(chan *Job, queueSize),
		workers:     workers,
		downloadFn:  downloadFn,
		fileURL:     fileURL,
		stopCleanup: make(chan struct{}),
	}
}

// Start begins the worker pool and cleanup routine
func (jq *JobQueue) Start() {
	for range jq.workers {
		jq.wg.Add(1)
		go jq.worker()
	}

	jq.cleanupTicker = time.NewTicker(cleanupInterval)
	go jq.cleanupLoop()
}

// Stop cancels outstanding jobs and waits for the workers to exit
func (jq *JobQueue) Stop() {
	jq.stopOnce.Do(func() {
		jq.mu.Lock()
		for _, job := range jq.jobs {
			if !job.finished() {
				job.cancel()
			}
		}
		jq.stopped = true
		close(jq.queue)
		jq.mu.Unlock()

		close(jq.stopCleanup)
		if jq.cleanupTicker != nil {
			jq.cleanupTicker.Stop()
		}
		jq.wg.Wait()
	})
}

func (jq *JobQueue) worker() {
	defer jq.wg.Done()

	for job := range jq.queue {
		jq.processJob(job)
	}
}

func (jq *JobQueue) processJob(job *Job) {
	if job.ctx.Err() != nil {
		jq.finishJob(job.ID, JobStatusCancelled, nil, "cancelled by user")
		return
	}
	jq.update(job.ID, func(j *Job) { j.Status = JobStatusDownloading })

	res, err := jq.downloadFn(job.ctx, job.JobSpec, func(p downloader.Progress) {
		jq.update(job.ID, func(j *Job) {
			j.Progress = p.Percent
			j.Speed = p.Speed
			j.ETA = p.ETA
		})
	})

	switch {
	case err == nil:
		jq.finishJob(job.ID, JobStatusCompleted, res, "")
	case job.ctx.Err() != nil || fault.Is(err, fault.KindCanceled):
		jq.finishJob(job.ID, JobStatusCancelled, nil, "cancelled by user")
	default:
		jq.finishJob(job.ID, JobStatusFailed, nil, userMessage(err))
	}
}

func (jq *JobQueue) finishJob(id string, status JobStatus, res *downloader.Result, errMsg string) {
	jq.update(id, func(j *Job) {
		// a cancel request wins over a late completion
		if j.Status == JobStatusCancelled {
			return
		}
		j.Status = status
		j.Error = errMsg
		j.Speed, j.ETA = "", ""
		if res != nil {
			j.Progress = 100
			j.FileName = res.FileName
			j.FileSize = res.Size
			if jq.fileURL != nil {
				j.DownloadURL = jq.fileURL(j.Platform, res.FileName)
			}
		}
	})
	if job := jq.GetJob(id); job != nil {
		job.cancel()
	}
}

func (jq *JobQueue) cleanupLoop() {
	for {
		select {
		case <-jq.cleanupTicker.C:
			jq.cleanupOldJobs(time.Now().Add(-jobRetention))
		case <-jq.stopCleanup:
			return
		}
	}
}

// cleanupOldJobs drops finished jobs last updated before cutoff
func (jq *JobQueue) cleanupOldJobs(cutoff time.Time) int {
	jq.mu.Lock()
	defer jq.mu.Unlock()

	count := 0
	for id, job := range jq.jobs {
		if job.finished() && job.UpdatedAt.Before(cutoff) {
			delete(jq.jobs, id)
			count++
		}
	}
	return count
}

// ClearHistory removes all completed, failed, and cancelled jobs
func (jq *JobQueue) ClearHistory() int {
	return jq.cleanupOldJobs(time.Now().Add(time.Second))
}

// RemoveJob removes a single finished job by ID
func (jq *JobQueue) RemoveJob(id string) bool {
	jq.mu.Lock()
	defer jq.mu.Unlock()

	job, ok := jq.jobs[id]
	if !ok || !job.finished() {
		return false
	}
	delete(jq.jobs, id)
	return true
}

// AddJob creates and queues a new download job
func (jq *JobQueue) AddJob(spec JobSpec) (*Job, error) {
	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()

	job := &Job{
		ID:        uuid.NewString(),
		JobSpec:   spec,
		Status:    JobStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
		ctx:       ctx,
		cancel:    cancel,
	}

	jq.mu.Lock()
	defer jq.mu.Unlock()

	if jq.stopped {
		cancel()
		return nil, ErrQueueStopped
	}

	select {
	case jq.queue <- job:
		jq.jobs[job.ID] = job
		snapshot := *job
		return &snapshot, nil
	default:
		cancel()
		return nil, ErrQueueFull
	}
}

// GetJob returns a copy of the job, or nil
func (jq *JobQueue) GetJob(id string) *Job {
	jq.mu.RLock()
	defer jq.mu.RUnlock()

	if job, ok := jq.jobs[id]; ok {
		jobCopy := *job
		return &jobCopy
	}
	return nil
}

// GetAllJobs returns copies of all jobs, oldest first
func (jq *JobQueue) GetAllJobs() []*Job {
	jq.mu.RLock()
	jobs := make([]*Job, 0, len(jq.jobs))
	for _, job := range jq.jobs {
		jobCopy := *job
		jobs = append(jobs, &jobCopy)
	}
	jq.mu.RUnlock()

	slices.SortFunc(jobs, func(a, b *Job) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return jobs
}

// CancelJob cancels a queued or running job. The subprocess is killed
// through the job's context.
func (jq *JobQueue) CancelJob(id string) bool {
	jq.mu.Lock()
	defer jq.mu.Unlock()

	job, ok := jq.jobs[id]
	if !ok || job.finished() {
		return false
	}

	job.cancel()
	job.Status = JobStatusCancelled
	job.Error = "cancelled by user"
	job.UpdatedAt = time.Now()
	return true
}

func (jq *JobQueue) update(id string, fn func(*Job)) {
	jq.mu.Lock()
	defer jq.mu.Unlock()

	if job, ok := jq.jobs[id]; ok {
		if job.Status == JobStatusCancelled {
			return
		}
		fn(job)
		job.UpdatedAt = time.Now()
	}
}
