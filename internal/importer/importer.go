// Package importer provides bulk import of lyric collections from a local directory into the song catalog
package importer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/derWhity/bhajanbook/internal/log"
	"github.com/derWhity/bhajanbook/internal/models"
	"github.com/derWhity/bhajanbook/internal/repos"
	"github.com/derWhity/bhajanbook/internal/sanitize"
)

const (
	// StatusQueued is the status an import has when it waits to be started
	StatusQueued JobStatus = iota
	// StatusRunning is the status of an import that is currently active
	StatusRunning
	// StatusFinished is the status of an import that has been finished successfully
	StatusFinished
	// StatusFailed is the status of an import that has failed for some reason. To look up the reason, see the Error
	// field of the job
	StatusFailed
	// StatusCancelled is the status of an import that has been cancelled by the user
	StatusCancelled
)

var (
	// ErrAlreadyQueued is returned when an import of the same directory is already queued or running
	ErrAlreadyQueued = fmt.Errorf("an import is already queued for this directory")
	// ErrOutsideRoot is returned when the requested directory is not located below the import root
	ErrOutsideRoot = fmt.Errorf("directory is outside of the import root")
)

// SongStore is the part of the song repository the importer needs
type SongStore interface {
	GetByLyricsFile(ctx context.Context, file string) (*models.Song, error)
	Create(ctx context.Context, s *models.Song) error
}

// JobStatus defines the status of an import job
type JobStatus uint

// Job describes an import operation
type Job struct {
	// The current status of the job. See the Status* constants for possible values
	Status JobStatus `json:"status"`
	// The directory holding the manifest. Only one job per directory may be active, so this doubles as the ID
	RootDir string `json:"rootDir"`
	// The lyrics file currently being imported
	CurrentFile string `json:"currentFile,omitempty"`
	// Number of songs in the manifest
	Total uint `json:"total"`
	// Number of songs created
	Imported uint `json:"imported"`
	// Number of songs skipped because they exist already or have no lyrics
	Skipped uint `json:"skipped"`
	// Number of songs that could not be imported
	Failed uint `json:"failed"`
	// The time the job was queued
	StartedAt time.Time `json:"startedAt"`
	// The time the job ended
	FinishedAt time.Time `json:"finishedAt,omitempty"`
	// If the job has failed, this is the reason
	Error string `json:"error,omitempty"`
	// Closed when the job should end
	stop     chan struct{}
	stopOnce *sync.Once
}

// Active checks if the job is queued or running
func (j Job) Active() bool {
	return j.Status == StatusQueued || j.Status == StatusRunning
}

// A request that is either a request for starting a new job, stopping one or retrieving the status of jobs
type jobRequest struct {
	// The directory of the job. Empty means "all jobs" for status and stop requests
	rootDir string
	// The jobs requested. The channel is closed after the last one
	answer chan<- *Job
}

// Importer runs import jobs. Jobs are managed by a single goroutine; at most two of them import in parallel
type Importer struct {
	songs  SongStore
	root   string
	logger *logrus.Entry
	// Delay between two imported songs
	pause time.Duration

	once       sync.Once
	startChan  chan<- jobRequest
	stopChan   chan<- jobRequest
	statusChan chan<- jobRequest
	// Token semaphore limiting the number of jobs running at once
	queueSemaphore chan struct{}
}

// New creates a new importer that reads directories below the given root. An empty root allows every directory
func New(songs SongStore, root string, logger *logrus.Entry) *Importer {
	return &Importer{
		songs:          songs,
		root:           root,
		logger:         logger,
		queueSemaphore: make(chan struct{}, 2), // Only two imports are allowed in parallel
	}
}

// WithPause sets a delay between two imported songs
func (im *Importer) WithPause(d time.Duration) *Importer {
	im.pause = d
	return im
}

// ensureRunning starts the management goroutine on first use
func (im *Importer) ensureRunning() {
	im.once.Do(func() {
		start := make(chan jobRequest)
		stop := make(chan jobRequest)
		status := make(chan jobRequest)
		im.startChan = start
		im.stopChan = stop
		im.statusChan = status
		go im.manage(start, stop, status)
	})
}

// resolve makes the directory absolute and checks that it is located below the import root
func (im *Importer) resolve(dir string) (string, error) {
	if im.root == "" {
		return filepath.Abs(dir)
	}
	root, err := filepath.Abs(im.root)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	dir = filepath.Clean(dir)
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrOutsideRoot
	}
	return dir, nil
}

// Start queues an import of the given directory and returns the queued job
func (im *Importer) Start(dir string) (*Job, error) {
	rootDir, err := im.resolve(dir)
	if err != nil {
		return nil, err
	}
	im.logger.WithField(log.FldPath, rootDir).Debug("Starting import")
	im.ensureRunning()
	ret := make(chan *Job, 1)
	im.startChan <- jobRequest{rootDir: rootDir, answer: ret}
	job := <-ret
	if job.Status == StatusFailed {
		return nil, ErrAlreadyQueued
	}
	return job, nil
}

// Stop signals the job of the given directory to end. An empty directory stops all jobs
func (im *Importer) Stop(dir string) {
	if dir != "" {
		var err error
		if dir, err = im.resolve(dir); err != nil {
			return
		}
	}
	im.ensureRunning()
	c := make(chan *Job)
	im.stopChan <- jobRequest{dir, c}
	for range c {
		// Wait until the channel is closed
	}
}

// StopAll signals all jobs to end
func (im *Importer) StopAll() {
	im.Stop("")
}

// doGetStatus asks the management goroutine for one or all jobs
func (im *Importer) doGetStatus(rootDir string) []Job {
	im.ensureRunning()
	answer := make(chan *Job)
	im.statusChan <- jobRequest{rootDir: rootDir, answer: answer}
	ret := []Job{}
	for job := range answer {
		ret = append(ret, *job)
	}
	return ret
}

// StatusAll returns all known jobs
func (im *Importer) StatusAll() []Job {
	return im.doGetStatus("")
}

// Status returns the job of the given directory or nil if there is none
func (im *Importer) Status(dir string) *Job {
	if dir == "" {
		return nil
	}
	rootDir, err := im.resolve(dir)
	if err != nil {
		return nil
	}
	jobs := im.doGetStatus(rootDir)
	if len(jobs) > 0 {
		return &jobs[0]
	}
	return nil
}

// manage is the goroutine owning the job list
func (im *Importer) manage(start <-chan jobRequest, stop <-chan jobRequest, statusOut <-chan jobRequest) {
	im.logger.Debug("Starting importer control goroutine")
	jobs := make(map[string]Job)
	// Aggregate channel to receive status updates at
	updates := make(chan Job)
	for {
		select {
		case j := <-updates:
			jobs[j.RootDir] = j
		case req := <-statusOut:
			if req.rootDir == "" {
				for _, j := range jobs {
					data := j
					req.answer <- &data
				}
			} else if j, ok := jobs[req.rootDir]; ok {
				data := j
				req.answer <- &data
			}
			close(req.answer)
		case req := <-start:
			job := im.queue(req.rootDir, jobs, updates)
			req.answer <- &job
		case req := <-stop:
			im.logger.WithField(log.FldPath, req.rootDir).Info("Stop request received")
			for _, j := range jobs {
				if req.rootDir == "" || req.rootDir == j.RootDir {
					j.signalStop()
				}
			}
			close(req.answer)
		}
	}
}

// queue checks that the directory is free and starts a goroutine waiting for its turn
func (im *Importer) queue(rootDir string, jobs map[string]Job, updates chan<- Job) Job {
	if existing, ok := jobs[rootDir]; ok && existing.Active() {
		return Job{RootDir: rootDir, Status: StatusFailed, Error: ErrAlreadyQueued.Error()}
	}
	job := Job{
		RootDir:   rootDir,
		Status:    StatusQueued,
		StartedAt: time.Now().UTC(),
		stop:      make(chan struct{}),
		stopOnce:  &sync.Once{},
	}
	jobs[rootDir] = job
	go im.run(job, updates)
	return job
}

// signalStop closes the stop channel of the job once
func (j Job) signalStop() {
	if j.stop == nil {
		return
	}
	j.stopOnce.Do(func() { close(j.stop) })
}

// stopped checks if the job has been told to end
func (j *Job) stopped() bool {
	select {
	case <-j.stop:
		return true
	default:
		return false
	}
}

// run waits for a free slot and imports the manifest of the job's directory
func (im *Importer) run(job Job, updates chan<- Job) {
	logger := im.logger.WithField(log.FldPath, job.RootDir)
	logger.Info("Import queued")
	select {
	case im.queueSemaphore <- struct{}{}:
	case <-job.stop:
		job.Status = StatusCancelled
		job.FinishedAt = time.Now().UTC()
		updates <- job
		return
	}
	defer func() { <-im.queueSemaphore }()

	logger.Info("Import is starting")
	job.Status = StatusRunning
	updates <- job
	err := im.importDir(&job, updates, logger)
	job.CurrentFile = ""
	job.FinishedAt = time.Now().UTC()
	switch {
	case err != nil:
		logger.WithError(err).Error("Import failed")
		job.Status = StatusFailed
		job.Error = err.Error()
	case job.Status != StatusCancelled:
		job.Status = StatusFinished
	}
	logger.WithFields(logrus.Fields{
		"imported": job.Imported,
		"skipped":  job.Skipped,
		"failed":   job.Failed,
	}).Info("Import has finished")
	importsTotal.WithLabelValues(job.Status.String()).Inc()
	updates <- job
}

// importDir imports every song listed in the manifest
func (im *Importer) importDir(job *Job, updates chan<- Job, logger *logrus.Entry) error {
	manifest, err := ReadManifest(job.RootDir)
	if err != nil {
		return err
	}
	job.Total = uint(len(manifest.Prasang))
	updates <- *job
	ctx := context.Background()
	for _, item := range manifest.Prasang {
		if job.stopped() {
			logger.Warn("Received stop command. Finishing right now.")
			job.Status = StatusCancelled
			return nil
		}
		job.CurrentFile = item.LyricsFile
		created, err := im.importItem(ctx, job.RootDir, item, logger.WithField(log.FldFile, item.LyricsFile))
		switch {
		case err != nil:
			job.Failed++
			itemsTotal.WithLabelValues("failed").Inc()
		case created:
			job.Imported++
			itemsTotal.WithLabelValues("imported").Inc()
		default:
			job.Skipped++
			itemsTotal.WithLabelValues("skipped").Inc()
		}
		updates <- *job
		if created && im.pause > 0 {
			time.Sleep(im.pause)
		}
	}
	return nil
}

// importItem creates a song from a manifest item. It reports false if the item has been skipped
func (im *Importer) importItem(ctx context.Context, dir string, item ManifestItem, logger *logrus.Entry) (bool, error) {
	name := item.LyricsFile
	if name == "" || filepath.Base(name) != name {
		logger.Warn("Skipping item with an invalid lyrics file name")
		return false, fmt.Errorf("importItem: Invalid lyrics file name '%s'", name)
	}
	if _, err := im.songs.GetByLyricsFile(ctx, name); err == nil {
		logger.Debug("Skipping song - already exists")
		return false, nil
	} else if err != repos.ErrEntityNotExisting {
		logger.WithError(err).Error("Failed to look up song")
		return false, err
	}
	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		logger.WithError(err).Warn("Skipping song - lyrics file cannot be read")
		return false, err
	}
	raw, err := ExtractLyrics(f)
	f.Close()
	if err != nil {
		logger.WithError(err).Warn("Skipping song - lyrics cannot be parsed")
		return false, err
	}
	body := sanitize.Clean(raw)
	if body == "" {
		logger.Info("Skipping song - no lyrics found")
		return false, nil
	}
	song := &models.Song{
		ID:         uuid.New().String(),
		Title:      strings.TrimSpace(item.Title),
		LocalTitle: strings.TrimSpace(item.LocalTitle),
		Category:   strings.TrimSpace(string(item.Category)),
		Body:       body,
		LyricsFile: name,
		HasEnglish: item.IsEng,
		HasHindi:   item.IsHnd,
		HasGerman:  item.IsGer,
		HasAudio:   item.IsAudio,
		AudioURL:   item.AudioURL,
	}
	if err := im.songs.Create(ctx, song); err != nil {
		if err == repos.ErrDuplicateEntity {
			return false, nil
		}
		logger.WithError(err).Error("Failed to store song")
		return false, err
	}
	logger.WithField(log.FldSong, song.ID).Info("Imported song")
	return true, nil
}

// Converts the job status into a readable name
func (s JobStatus) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusRunning:
		return "running"
	case StatusFinished:
		return "finished"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	}
	return "unknown"
}

// MarshalJSON implements the json.Marshaler interface returning the name of the status
func (s JobStatus) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("\"%s\"", s)), nil
}

// UnmarshalJSON implements the json.Unmarshaler interface for the status names
func (s *JobStatus) UnmarshalJSON(data []byte) error {
	name := strings.Trim(string(data), `"`)
	for st := StatusQueued; st <= StatusCancelled; st++ {
		if st.String() == name {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown job status '%s'", name)
}

func (j Job) String() string {
	return fmt.Sprintf(
		"Import(%s)[ Status: %s | Started at: %s | File: %s | Imported: %d | Skipped: %d | Failed: %d ]",
		j.RootDir,
		j.Status,
		j.StartedAt,
		j.CurrentFile,
		j.Imported,
		j.Skipped,
		j.Failed,
	)
}
