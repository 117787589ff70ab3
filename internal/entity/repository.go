package entity

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/edisonhq/edison/internal/errs"
	"github.com/edisonhq/edison/internal/pathio"
)

// Codec knows how to turn a Record of type T into bytes and back, and what
// relative filename within a state directory it occupies.
type Codec[T Record] interface {
	Encode(v T) ([]byte, error)
	Decode(data []byte) (T, error)
	FileName(id string) string
}

// Filter selects entities during List (spec.md §4.C "list").
type Filter struct {
	State     string
	SessionID string
	Tag       string
}

func (f Filter) matches(r Record, state string, tags []string, sessionID string) bool {
	if f.State != "" && f.State != state {
		return false
	}
	if f.SessionID != "" && f.SessionID != sessionID {
		return false
	}
	if f.Tag != "" {
		found := false
		for _, t := range tags {
			if t == f.Tag {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Repository is a generic file-backed, per-file-locked store for one entity
// kind (spec.md §4.C). States lists every valid state directory in a fixed
// order; Get searches them in that order ("first hit wins").
type Repository[T Record] struct {
	BaseDir     string
	States      []string
	Codec       Codec[T]
	LockTimeout time.Duration
	Clock       pathio.Clock
}

func (r *Repository[T]) timeout() time.Duration {
	if r.LockTimeout <= 0 {
		return pathio.DefaultLockTimeout
	}
	return r.LockTimeout
}

func (r *Repository[T]) statePath(state, id string) string {
	return filepath.Join(r.BaseDir, state, r.Codec.FileName(id))
}

// Get searches state directories in configured order and returns the first
// match, or (zero, false, nil) if the entity does not exist anywhere.
// Reads are non-locking (spec.md §5: "read is non-locking; the file is
// small and rewritten atomically").
func (r *Repository[T]) Get(id string) (T, bool, error) {
	var zero T
	for _, state := range r.States {
		path := r.statePath(state, id)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return zero, false, errs.Wrap(errs.KindIO, "read_failed", map[string]any{"path": path}, err)
		}
		v, err := r.Codec.Decode(data)
		if err != nil {
			return zero, false, errs.Wrap(errs.KindInvariantViolation, "decode_failed", map[string]any{"path": path, "id": id}, err)
		}
		return v, true, nil
	}
	return zero, false, nil
}

// findStates returns every state directory currently holding id, used to
// detect the InvariantViolation of an entity present under more than one
// state directory (spec.md §7 "a task found in two state directories").
func (r *Repository[T]) findStates(id string) []string {
	var found []string
	for _, state := range r.States {
		if pathio.Exists(r.statePath(state, id)) {
			found = append(found, state)
		}
	}
	return found
}

// Save writes entity into the state directory matching its current
// RecordState(), taking that file's lock for the write (spec.md §4.C
// "save").
func (r *Repository[T]) Save(ctx context.Context, entity T) error {
	id := entity.RecordID()
	state := entity.RecordState()
	if state == "" {
		return errs.New(errs.KindInvariantViolation, "missing_state", map[string]any{"id": id})
	}

	path := r.statePath(state, id)
	lock := pathio.NewFileLock(path)
	if err := lock.Acquire(ctx, r.timeout()); err != nil {
		return errs.Wrap(errs.KindIO, "lock_timeout", map[string]any{"id": id, "path": path}, err)
	}
	defer lock.Release()

	data, err := r.Codec.Encode(entity)
	if err != nil {
		return errs.Wrap(errs.KindInvariantViolation, "encode_failed", map[string]any{"id": id}, err)
	}
	if err := pathio.WriteAtomic(path, data, 0o644); err != nil {
		return errs.Wrap(errs.KindIO, "write_failed", map[string]any{"id": id, "path": path}, err)
	}
	return nil
}

// Move atomically renames an entity's file from one state directory to
// another, taking the source file's lock for the duration (spec.md §4.C
// "move"). It fails with a StaleStateError if the file is not present in
// fromState — the caller observed a state that no longer holds.
func (r *Repository[T]) Move(ctx context.Context, id, fromState, toState string) error {
	src := r.statePath(fromState, id)
	dst := r.statePath(toState, id)

	lock := pathio.NewFileLock(src)
	if err := lock.Acquire(ctx, r.timeout()); err != nil {
		return errs.Wrap(errs.KindIO, "lock_timeout", map[string]any{"id": id, "path": src}, err)
	}
	defer lock.Release()

	if !pathio.Exists(src) {
		return errs.New(errs.KindStaleState, "not_in_expected_state", map[string]any{
			"id": id, "expectedState": fromState,
		})
	}
	if err := pathio.MoveAtomic(src, dst); err != nil {
		return errs.Wrap(errs.KindIO, "move_failed", map[string]any{"id": id, "from": src, "to": dst}, err)
	}
	return nil
}

// MoveAndSave is the state-machine engine's commit primitive (spec.md §4.E
// step 6: "repository move from current to to_state and append a
// state-history entry"). entity must already carry its new state and
// history. It writes the updated encoding to fromState's own file in place,
// then renames that file into toState's directory — the rename is the sole
// commit point (spec.md §8 "Directory ↔ state equivalence": "no point at
// which the entity is in two directories"), matching Move's atomic-rename
// idiom instead of writing the destination first and deleting the source
// after, which would let a reader, or a crash between the two calls,
// observe the entity in both directories at once. It fails with
// StaleStateError if fromState no longer holds the file — a concurrent
// transition won the race.
func (r *Repository[T]) MoveAndSave(ctx context.Context, id, fromState string, entity T) error {
	src := r.statePath(fromState, id)
	dst := r.statePath(entity.RecordState(), id)

	lock := pathio.NewFileLock(src)
	if err := lock.Acquire(ctx, r.timeout()); err != nil {
		return errs.Wrap(errs.KindIO, "lock_timeout", map[string]any{"id": id, "path": src}, err)
	}
	defer lock.Release()

	if !pathio.Exists(src) {
		return errs.New(errs.KindStaleState, "not_in_expected_state", map[string]any{
			"id": id, "expectedState": fromState,
		})
	}
	data, err := r.Codec.Encode(entity)
	if err != nil {
		return errs.Wrap(errs.KindInvariantViolation, "encode_failed", map[string]any{"id": id}, err)
	}
	if err := pathio.WriteAtomic(src, data, 0o644); err != nil {
		return errs.Wrap(errs.KindIO, "write_failed", map[string]any{"id": id, "path": src}, err)
	}
	if src != dst {
		if err := pathio.MoveAtomic(src, dst); err != nil {
			return errs.Wrap(errs.KindIO, "move_failed", map[string]any{"id": id, "from": src, "to": dst}, err)
		}
		os.Remove(src + ".lock")
	}
	return nil
}

// Delete removes an entity file. Callers enforce the "only from non-terminal
// states, or QA with no committed rounds" policy (spec.md §4.C "delete")
// before calling this; the repository itself only performs the removal.
func (r *Repository[T]) Delete(ctx context.Context, id, state string) error {
	path := r.statePath(state, id)
	lock := pathio.NewFileLock(path)
	if err := lock.Acquire(ctx, r.timeout()); err != nil {
		return errs.Wrap(errs.KindIO, "lock_timeout", map[string]any{"id": id, "path": path}, err)
	}
	defer lock.Release()

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return errs.New(errs.KindStaleState, "not_found", map[string]any{"id": id, "state": state})
		}
		return errs.Wrap(errs.KindIO, "delete_failed", map[string]any{"id": id, "path": path}, err)
	}
	os.Remove(path + ".lock")
	return nil
}

// List returns every entity matching filter across all state directories
// as a lazy sequence (spec.md §4.C "list"): an iterator function (Go 1.23+
// range-over-func) that reads one file at a time, so callers can stop early
// without reading the whole repository.
func (r *Repository[T]) List(filter Filter, tagsOf func(T) []string, sessionOf func(T) string) func(yield func(T) bool) {
	return func(yield func(T) bool) {
		for _, state := range r.States {
			if filter.State != "" && filter.State != state {
				continue
			}
			dir := filepath.Join(r.BaseDir, state)
			entries, err := os.ReadDir(dir)
			if err != nil {
				continue
			}
			for _, e := range entries {
				if e.IsDir() {
					continue
				}
				data, err := os.ReadFile(filepath.Join(dir, e.Name()))
				if err != nil {
					continue
				}
				v, err := r.Codec.Decode(data)
				if err != nil {
					continue
				}
				var tags []string
				if tagsOf != nil {
					tags = tagsOf(v)
				}
				var sessionID string
				if sessionOf != nil {
					sessionID = sessionOf(v)
				}
				if !filter.matches(v, state, tags, sessionID) {
					continue
				}
				if !yield(v) {
					return
				}
			}
		}
	}
}

// CheckInvariant verifies id is present in at most one state directory,
// reporting an InvariantViolation otherwise (spec.md §8 "Directory ↔ state
// equivalence").
func (r *Repository[T]) CheckInvariant(id string) error {
	states := r.findStates(id)
	if len(states) > 1 {
		return errs.New(errs.KindInvariantViolation, "present_in_multiple_states", map[string]any{
			"id": id, "states": states,
		})
	}
	return nil
}

// RemoveStaleLock is the administrative operation spec.md §4.C describes:
// it removes a lock file for id/state if it is older than timeout×6,
// without verifying the holding process beyond that age heuristic.
func (r *Repository[T]) RemoveStaleLock(id, state string) (bool, error) {
	return pathio.RemoveStale(r.statePath(state, id), r.timeout())
}
