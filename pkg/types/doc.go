/*
Package types defines the core data structures used throughout Steward.

This package contains the domain model for membership-statistics
reconciliation: jobs, timelines, cycle entries, derived status, and the
snapshot/diff structures exchanged with the change detector. These types are
used by all other packages for state management and persistence.

# Core Types

Job Lifecycle:
  - ReconciliationJob: One reconciliation run per (district, period) pair
  - JobStatus: Active, completed, cancelled, failed
  - Phase: Monitoring, stabilizing, finalizing, completed, failed
  - Trigger: Automatic or manual start

History:
  - ReconciliationTimeline: Append-only history of cycle observations
  - ReconciliationEntry: One cycle's observation (diff, verdict, propagation)
  - ReconciliationStatus: Derived view recomputed from job + timeline

Feed Data:
  - DistrictStatistics: One snapshot of the upstream membership feed
  - ChangeSet: Structured diff between two snapshots

All types are JSON-serializable so they can be stored as bbolt values and
rendered by the CLI without translation.
*/
package types
