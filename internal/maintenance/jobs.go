package maintenance

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/edisonhq/edison/internal/entity"
	"github.com/edisonhq/edison/internal/logging"
	"github.com/edisonhq/edison/internal/pathio"
)

// StaleLockScanner is implemented by entity.Repository[T] for any record
// type; the job only needs ids-to-scan and the stale-lock removal primitive,
// so it is kept non-generic here.
type StaleLockScanner interface {
	// StaleIDs returns every entity id currently holding a lock file, paired
	// with its current state directory.
	StaleIDs() []StaleLockCandidate
	RemoveStaleLock(id, state string) (bool, error)
}

// StaleLockCandidate names one entity+state whose lock file exists.
type StaleLockCandidate struct {
	ID    string
	State string
}

// StaleLockJob removes lock files older than the repository's lock timeout
// × pathio.StaleLockFactor (spec.md §4.C "Stale locks"). It judges by file
// age only; it does not check whether the holding process is dead.
type StaleLockJob struct {
	Scanners []StaleLockScanner
	Log      *logging.Logger
}

func (j *StaleLockJob) Name() string { return "stale-lock-scan" }

// Run removes every stale lock it finds and reports how many it reclaimed,
// feeding the Runner's aggregate Report (spec.md SUPPLEMENTED FEATURES
// "Janitor-style periodic maintenance").
func (j *StaleLockJob) Run(_ context.Context) (int, error) {
	log := j.Log
	if log == nil {
		log = logging.Noop()
	}
	reclaimed := 0
	for _, scanner := range j.Scanners {
		for _, c := range scanner.StaleIDs() {
			removed, err := scanner.RemoveStaleLock(c.ID, c.State)
			if err != nil {
				log.Errorw("stale lock removal failed", "id", c.ID, "state", c.State, "error", err)
				continue
			}
			if removed {
				log.Infow("removed stale lock", "id", c.ID, "state", c.State)
				reclaimed++
			}
		}
	}
	return reclaimed, nil
}

// RepositoryScanner adapts an entity.Repository[T] to StaleLockScanner by
// walking its configured state directories for "*.lock" files.
type RepositoryScanner[T entity.Record] struct {
	Repo *entity.Repository[T]
}

func (s *RepositoryScanner[T]) StaleIDs() []StaleLockCandidate {
	var out []StaleLockCandidate
	for _, state := range s.Repo.States {
		dir := filepath.Join(s.Repo.BaseDir, state)
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() || filepath.Ext(e.Name()) != ".lock" {
				continue
			}
			base := e.Name()[:len(e.Name())-len(".lock")]
			id := firstSegment(base)
			out = append(out, StaleLockCandidate{ID: id, State: state})
		}
	}
	return out
}

func (s *RepositoryScanner[T]) RemoveStaleLock(id, state string) (bool, error) {
	return s.Repo.RemoveStaleLock(id, state)
}

func firstSegment(base string) string {
	for _, ext := range []string{".md", ".json"} {
		if len(base) > len(ext) && base[len(base)-len(ext):] == ext {
			return base[:len(base)-len(ext)]
		}
	}
	return base
}

// StaleRoundJob flags round directories that have sat open (no bundle
// approval marker written) past maxAge, and tasks whose round count has
// climbed past MaxRounds without approval (spec.md §4.I "maximum rounds
// defaults to 3 before escalation"), for operator follow-up — rounds are
// immutable once created (spec.md §4.H), so the job never deletes or
// mutates a round; it only logs a warning an operator can act on. MaxRounds
// of 0 disables the round-count check.
type StaleRoundJob struct {
	EvidenceRoot string
	MaxAge       time.Duration
	MaxRounds    int
	Clock        pathio.Clock
	Log          *logging.Logger
}

func (j *StaleRoundJob) Name() string { return "stale-round-scan" }

// Run logs every stale finding and returns how many it raised, feeding the
// Runner's aggregate Report.
func (j *StaleRoundJob) Run(_ context.Context) (int, error) {
	log := j.Log
	if log == nil {
		log = logging.Noop()
	}
	clock := j.Clock
	if clock == nil {
		clock = pathio.SystemClock{}
	}
	now := clock.Now()

	taskDirs, err := os.ReadDir(j.EvidenceRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading evidence root: %w", err)
	}

	flagged := 0
	for _, taskDir := range taskDirs {
		if !taskDir.IsDir() || taskDir.Name() == "_snapshots" {
			continue
		}
		roundDirs, err := os.ReadDir(filepath.Join(j.EvidenceRoot, taskDir.Name()))
		if err != nil {
			continue
		}
		highestOpenRound := 0
		for _, roundDir := range roundDirs {
			if !roundDir.IsDir() {
				continue
			}
			path := filepath.Join(j.EvidenceRoot, taskDir.Name(), roundDir.Name())
			if pathio.Exists(filepath.Join(path, "bundle-approved.json")) {
				continue
			}
			info, err := roundDir.Info()
			if err != nil {
				continue
			}
			if now.Sub(info.ModTime()) > j.MaxAge {
				log.Warnw("round has been open past max age without approval", "task", taskDir.Name(), "round", roundDir.Name(), "age", now.Sub(info.ModTime()))
				flagged++
			}
			if n, ok := roundNumber(roundDir.Name()); ok && n > highestOpenRound {
				highestOpenRound = n
			}
		}
		if j.MaxRounds > 0 && highestOpenRound > j.MaxRounds {
			log.Warnw("task has exceeded configured max_rounds without approval", "task", taskDir.Name(), "round", highestOpenRound, "maxRounds", j.MaxRounds)
			flagged++
		}
	}
	return flagged, nil
}

// roundNumber parses the trailing N out of a "round-N" directory name.
func roundNumber(name string) (int, bool) {
	const prefix = "round-"
	if len(name) <= len(prefix) || name[:len(prefix)] != prefix {
		return 0, false
	}
	n, err := strconv.Atoi(name[len(prefix):])
	if err != nil {
		return 0, false
	}
	return n, true
}
