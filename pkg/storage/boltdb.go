package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/districtops/steward/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketJobs      = []byte("jobs")
	bucketTimelines = []byte("timelines")
)

// BoltStore implements Store interface using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed store
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "steward.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketJobs,
			bucketTimelines,
		}

		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Flush forces an fsync of the database file so that every committed write
// is durable before the caller proceeds.
func (s *BoltStore) Flush() error {
	return s.db.Sync()
}

// Job operations
func (s *BoltStore) SaveJob(job *types.ReconciliationJob) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobs)
		data, err := json.Marshal(job)
		if err != nil {
			return err
		}
		return b.Put([]byte(job.ID), data)
	})
}

func (s *BoltStore) GetJob(id string) (*types.ReconciliationJob, error) {
	var job types.ReconciliationJob
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobs)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrJobNotFound, id)
		}
		return json.Unmarshal(data, &job)
	})
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *BoltStore) GetJobsByDistrict(districtID string) ([]*types.ReconciliationJob, error) {
	var jobs []*types.ReconciliationJob
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobs)
		return b.ForEach(func(k, v []byte) error {
			var job types.ReconciliationJob
			if err := json.Unmarshal(v, &job); err != nil {
				return err
			}
			if job.DistrictID == districtID {
				jobs = append(jobs, &job)
			}
			return nil
		})
	})
	return jobs, err
}

// Timeline operations
func (s *BoltStore) SaveTimeline(timeline *types.ReconciliationTimeline) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTimelines)
		data, err := json.Marshal(timeline)
		if err != nil {
			return err
		}
		return b.Put([]byte(timeline.JobID), data)
	})
}

func (s *BoltStore) GetTimeline(jobID string) (*types.ReconciliationTimeline, error) {
	var timeline types.ReconciliationTimeline
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTimelines)
		data := b.Get([]byte(jobID))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrTimelineNotFound, jobID)
		}
		return json.Unmarshal(data, &timeline)
	})
	if err != nil {
		return nil, err
	}
	return &timeline, nil
}
