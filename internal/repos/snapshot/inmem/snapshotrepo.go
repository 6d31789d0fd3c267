// Package inmem provides a snapshot repository that holds the offline catalog copy in memory. The snapshot is absent
// when the process starts
package inmem

import (
	"github.com/derWhity/bhajanbook/internal/models"
	"github.com/derWhity/bhajanbook/internal/repos"
)

// snapshotRequest is sent over one of the repo's channels to execute a function inside the control goroutine
type snapshotRequest struct {
	snap   *models.Snapshot
	answer chan<- snapshotResponse
}

// snapshotResponse is the answer to a snapshot request
type snapshotResponse struct {
	snap *models.Snapshot
	err  error
}

// SnapshotRepo is a snapshot repository that stores the snapshot in-memory
type SnapshotRepo struct {
	// replace is a channel to swap the stored snapshot
	replace chan<- snapshotRequest
	// load is a channel to request a copy of the stored snapshot
	load chan<- snapshotRequest
	// stop ends the control goroutine
	stop chan struct{}
}

// New creates a new snapshot repository instance
func New() *SnapshotRepo {
	repl := make(chan snapshotRequest)
	load := make(chan snapshotRequest)
	repo := &SnapshotRepo{
		replace: repl,
		load:    load,
		stop:    make(chan struct{}),
	}
	go repo.control(repl, load)
	return repo
}

// copySnapshot creates a deep copy so callers never share slices with the stored snapshot
func copySnapshot(in *models.Snapshot) *models.Snapshot {
	out := &models.Snapshot{
		TakenAt: in.TakenAt,
		Songs:   make([]models.Song, len(in.Songs)),
	}
	for i, s := range in.Songs {
		s.Keywords = append([]string(nil), s.Keywords...)
		out.Songs[i] = s
	}
	return out
}

// control is the goroutine owning the snapshot. It runs until Close is called
func (r *SnapshotRepo) control(replace <-chan snapshotRequest, load <-chan snapshotRequest) {
	var current *models.Snapshot
	for {
		select {
		case req := <-replace:
			current = copySnapshot(req.snap)
			req.answer <- snapshotResponse{}
		case req := <-load:
			if current == nil {
				req.answer <- snapshotResponse{err: repos.ErrEntityNotExisting}
			} else {
				req.answer <- snapshotResponse{snap: copySnapshot(current)}
			}
		case <-r.stop:
			return
		}
	}
}

func send(snap *models.Snapshot, channel chan<- snapshotRequest) snapshotResponse {
	answer := make(chan snapshotResponse, 1)
	channel <- snapshotRequest{snap: snap, answer: answer}
	return <-answer
}

// Replace swaps the stored snapshot for the given one
func (r *SnapshotRepo) Replace(snap *models.Snapshot) error {
	return send(snap, r.replace).err
}

// Load returns a copy of the stored snapshot or repos.ErrEntityNotExisting if none has been stored yet
func (r *SnapshotRepo) Load() (*models.Snapshot, error) {
	resp := send(nil, r.load)
	return resp.snap, resp.err
}

// Exists checks if a snapshot has been stored
func (r *SnapshotRepo) Exists() bool {
	_, err := r.Load()
	return err == nil
}

// Close stops the control goroutine. The repository must not be used afterwards
func (r *SnapshotRepo) Close() error {
	close(r.stop)
	return nil
}
