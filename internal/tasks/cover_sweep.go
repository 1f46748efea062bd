// Package tasks holds scheduled maintenance jobs.
package tasks

import (
	"fmt"
	"log"
	"sync"

	"github.com/robfig/cron/v3"

	coverstore "github.com/ama13/bookshelf/internal/covers"
	coversdb "github.com/ama13/bookshelf/internal/database/covers"
)

// CoverSweeper periodically reconciles cover rows with files on disk. Two
// kinds of garbage can accumulate: rows no book references (a delete that
// raced the reference check) and files with no row (a crash between the file
// write and the row commit during upload).
type CoverSweeper struct {
	covers *coversdb.Repository
	store  *coverstore.Store

	cron      *cron.Cron
	mu        sync.Mutex
	isRunning bool
}

// NewCoverSweeper creates a sweeper over the given repository and file store.
func NewCoverSweeper(covers *coversdb.Repository, store *coverstore.Store) *CoverSweeper {
	return &CoverSweeper{
		covers: covers,
		store:  store,
		cron:   cron.New(),
	}
}

// Start schedules the sweep. The schedule is standard 5-field cron syntax.
func (s *CoverSweeper) Start(schedule string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	_, err := s.cron.AddFunc(schedule, func() {
		if removed, err := s.Sweep(); err != nil {
			log.Printf("cover sweep failed: %v", err)
		} else if removed > 0 {
			log.Printf("cover sweep reclaimed %d orphaned cover(s)", removed)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule cover sweep '%s': %w", schedule, err)
	}

	s.cron.Start()
	s.isRunning = true
	log.Printf("Cover sweep scheduled: %s", schedule)
	return nil
}

// Stop halts the schedule. A sweep in flight finishes.
func (s *CoverSweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}
	s.cron.Stop()
	s.isRunning = false
}

// Sweep runs one reconciliation pass and returns how many orphans (rows or
// stray files) were removed.
func (s *CoverSweeper) Sweep() (int, error) {
	removed := 0

	// Rows no book references: drop the row and its file.
	orphans, err := s.covers.ListUnreferenced()
	if err != nil {
		return removed, fmt.Errorf("list unreferenced covers: %w", err)
	}
	for _, cover := range orphans {
		if err := s.store.Remove(cover.FileName); err != nil {
			log.Printf("cover sweep: could not remove file %s: %v", cover.FileName, err)
			continue
		}
		if err := s.covers.Delete(cover.ID); err != nil {
			return removed, fmt.Errorf("delete cover row %d: %w", cover.ID, err)
		}
		removed++
	}

	// Files on disk with no row behind them.
	known, err := s.covers.ListFileNames()
	if err != nil {
		return removed, fmt.Errorf("list cover file names: %w", err)
	}
	knownSet := make(map[string]bool, len(known))
	for _, name := range known {
		knownSet[name] = true
	}

	onDisk, err := s.store.List()
	if err != nil {
		return removed, fmt.Errorf("list stored files: %w", err)
	}
	for _, name := range onDisk {
		if knownSet[name] {
			continue
		}
		if err := s.store.Remove(name); err != nil {
			log.Printf("cover sweep: could not remove stray file %s: %v", name, err)
			continue
		}
		removed++
	}

	return removed, nil
}
