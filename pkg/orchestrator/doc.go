/*
Package orchestrator implements the reconciliation job lifecycle and the
per-cycle processing engine.

The upstream membership feed is eventually consistent: numbers for a closed
month keep shifting for days or weeks. The orchestrator watches each
(district, period) pair through a multi-state workflow until the data has
been stable long enough to freeze:

	StartJob ──> monitoring ──> stabilizing ──> finalizing ──> FinalizeJob
	                  │              │               ▲
	                  └── significant change ────────┘
	                       (may auto-extend the window)

# Cycle Processing

ProcessCycle is the unit of work a scheduler invokes per check: resolve job
and timeline (cache first, storage behind retry + circuit breaker on a miss),
diff the snapshots, propagate changed data downstream, append a timeline
entry, recompute status, possibly auto-extend, and persist. Reads and writes
on this hot path go through the resilience wrapper keyed on the
"reconciliation-storage" dependency.

Failure handling is deliberately asymmetric. Anything that could leave the
authoritative state inconsistent (a failed save, a missing job) aborts the
cycle and is alerted. Anything that is merely an enhancement (downstream
propagation, auto-extension) is alerted and absorbed so the orchestrator's
own bookkeeping always proceeds.

# Status Derivation

Status is a pure function over (job, timeline): days active, the contiguous
run of non-significant checks counted in reverse chronological order, and a
phase picked in priority order (hard deadline, stability window satisfied,
partially stable, monitoring). Terminal jobs map their status directly;
cancelled jobs surface as failed.

# Concurrency

At most one cycle runs per job id, enforced with an in-flight set; a second
concurrent call returns ErrCycleInFlight instead of risking a lost timeline
update. The orchestrator holds no locks across I/O.
*/
package orchestrator
