package taudb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rotisserie/eris"
)

// ErrNotEmpty is returned by SeedDemo when the database already holds trials.
var ErrNotEmpty = eris.New("database already contains trials")

type demoTimer struct {
	short    string
	callpath string
	// Exclusive value per unit of thread weight; inclusive values are
	// derived from the call tree.
	exclusive float64
	inclusive float64
}

type demoTrial struct {
	id       int64
	app      string
	name     string
	metrics  []demoMetric
	threads  []demoThread
	timers   []demoTimer
	metadata [][2]string
}

type demoMetric struct {
	id    int64
	name  string
	scale float64
}

type demoThread struct {
	id     int64
	index  int64
	weight float64
}

var demoTimers = []demoTimer{
	{"main", "main", 4.0, 100.0},
	{"solve", "main => solve", 38.0, 71.0},
	{"MPI_Allreduce", "main => solve => MPI_Allreduce", 21.0, 21.0},
	{"halo_exchange", "main => solve => halo_exchange", 7.0, 12.0},
	{"MPI_Send", "main => solve => halo_exchange => MPI_Send", 5.0, 5.0},
	{"read_input", "main => read_input", 17.0, 17.0},
	{"write_output", "main => write_output", 8.0, 8.0},
}

// demoTrials keeps trial 10's first metric and first thread at the lowest
// ids so a fresh client resolves demo/10/100/200.
var demoTrials = []demoTrial{
	{
		id: 10, app: "demo", name: "trialA",
		metrics: []demoMetric{{100, "TIME", 1.0e6}, {101, "PAPI_FP_OPS", 3.2e8}},
		threads: []demoThread{{200, -1, 1.0}, {201, -2, 4.0}, {202, 0, 1.1}, {203, 1, 0.9}, {204, 2, 1.0}, {205, 3, 1.0}},
		timers:  demoTimers,
		metadata: [][2]string{
			{"Application", "demo"},
			{"Hostname", "node001"},
			{"MPI Processor Name", "node001"},
			{"Starting Timestamp", "1718445100000000"},
			{"TAU Version", "2.33"},
		},
	},
	{
		id: 11, app: "demo", name: "trialB",
		metrics: []demoMetric{{110, "TIME", 0.6e6}},
		threads: []demoThread{{210, -1, 1.0}, {211, -6, 1.0}, {212, 0, 1.0}, {213, 1, 1.0}},
		timers:  demoTimers[:5],
		metadata: [][2]string{
			{"Application", "demo"},
			{"Hostname", "node002"},
			{"TAU Version", "2.33"},
		},
	},
	{
		id: 20, app: "lulesh", name: "lulesh-8rank",
		metrics: []demoMetric{{120, "TIME", 2.4e6}, {121, "PAPI_TOT_CYC", 5.1e9}},
		threads: []demoThread{{220, -1, 1.0}, {221, -2, 8.0}, {222, 0, 1.0}, {223, 1, 1.0}},
		timers:  demoTimers,
		metadata: [][2]string{
			{"Application", "lulesh"},
			{"Hostname", "cluster-a"},
			{"TAU Version", "2.32"},
		},
	},
}

// SeedDemo fills an empty database with a small deterministic dataset used
// by init-db --demo and the tests.
func (s *Store) SeedDemo(ctx context.Context) error {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM trial`).Scan(&n); err != nil {
		return fmt.Errorf("count trials: %w", err)
	}
	if n > 0 {
		return ErrNotEmpty
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		timerID := int64(1000)
		callpathID := int64(2000)
		callDataID := int64(5000)
		for _, tr := range demoTrials {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO trial (id, name, node_count, contexts_per_node, max_num_threads) VALUES (?, ?, ?, 1, 1)`,
				tr.id, tr.name, countRanks(tr.threads)); err != nil {
				return fmt.Errorf("insert trial %d: %w", tr.id, err)
			}
			for _, md := range tr.metadata {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO primary_metadata (trial, name, value) VALUES (?, ?, ?)`,
					tr.id, md[0], md[1]); err != nil {
					return fmt.Errorf("insert metadata: %w", err)
				}
			}
			for _, m := range tr.metrics {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO metric (id, trial, name) VALUES (?, ?, ?)`,
					m.id, tr.id, m.name); err != nil {
					return fmt.Errorf("insert metric %d: %w", m.id, err)
				}
			}
			for _, th := range tr.threads {
				rank := th.index
				if rank < 0 {
					rank = 0
				}
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO thread (id, trial, node_rank, thread_index) VALUES (?, ?, ?, ?)`,
					th.id, tr.id, rank, th.index); err != nil {
					return fmt.Errorf("insert thread %d: %w", th.id, err)
				}
			}

			callpaths := make([]int64, len(tr.timers))
			for i, tm := range tr.timers {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO timer (id, trial, name, short_name) VALUES (?, ?, ?, ?)`,
					timerID, tr.id, tm.short+" [{demo.c}]", tm.short); err != nil {
					return fmt.Errorf("insert timer: %w", err)
				}
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO timer_callpath (id, timer, name) VALUES (?, ?, ?)`,
					callpathID, timerID, tm.callpath); err != nil {
					return fmt.Errorf("insert callpath: %w", err)
				}
				callpaths[i] = callpathID
				timerID++
				callpathID++
			}

			for _, th := range tr.threads {
				for i, tm := range tr.timers {
					if _, err := tx.ExecContext(ctx,
						`INSERT INTO timer_call_data (id, timer_callpath, thread, calls, subroutines) VALUES (?, ?, ?, ?, ?)`,
						callDataID, callpaths[i], th.id, i+1, len(tr.timers)-i-1); err != nil {
						return fmt.Errorf("insert call data: %w", err)
					}
					for _, m := range tr.metrics {
						unit := m.scale * th.weight / 100
						if _, err := tx.ExecContext(ctx,
							`INSERT INTO timer_value (timer_call_data, metric, inclusive_value, exclusive_value, inclusive_percent, exclusive_percent)
							 VALUES (?, ?, ?, ?, ?, ?)`,
							callDataID, m.id, tm.inclusive*unit, tm.exclusive*unit, tm.inclusive, tm.exclusive); err != nil {
							return fmt.Errorf("insert timer value: %w", err)
						}
					}
					callDataID++
				}
			}
		}
		return nil
	})
	if isSQLiteReadOnly(err) {
		return eris.Wrap(err, "database opened read-only; reopen with create enabled to seed")
	}
	return err
}

func countRanks(threads []demoThread) int {
	n := 0
	for _, th := range threads {
		if th.index >= 0 {
			n++
		}
	}
	return n
}
