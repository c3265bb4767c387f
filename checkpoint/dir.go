package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

const bestPrefix = "best_"

// DirStore writes one YAML file per checkpoint under Dir/<run id>/ and keeps the programs of
// the fittest checkpoint of each run in best_<tree>.txt next to them. Pairwise checkpoints
// never become the best.
type DirStore struct {
	Dir string

	mu   sync.Mutex
	best map[string]float64
}

func NewDirStore(dir string) (*DirStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create checkpoint directory %s: %w", dir, err)
	}
	return &DirStore{Dir: dir, best: map[string]float64{}}, nil
}

func (s *DirStore) runDir(runID string) string {
	return filepath.Join(s.Dir, runID)
}

func fileName(iteration int) string {
	return fmt.Sprintf("%010d.yaml", iteration)
}

func (s *DirStore) Save(ctx context.Context, c Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.RunID == "" {
		return fmt.Errorf("checkpoint must have a run id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.runDir(c.RunID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, fileName(c.Iteration)), data, 0o640); err != nil {
		return err
	}

	if c.Pairwise {
		return nil
	}
	best, ok := s.best[c.RunID]
	if ok && c.Fitness < best {
		return nil
	}
	s.best[c.RunID] = c.Fitness
	for name, program := range c.Programs {
		if err := os.WriteFile(filepath.Join(dir, bestPrefix+name+".txt"), []byte(program), 0o640); err != nil {
			return err
		}
	}
	return nil
}

func (s *DirStore) List(ctx context.Context, runID string) ([]Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.runDir(runID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		names = append(names, e.Name())
	}
	slices.Sort(names)

	checkpoints := make([]Checkpoint, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(s.runDir(runID), name))
		if err != nil {
			return nil, err
		}
		var c Checkpoint
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		checkpoints = append(checkpoints, c)
	}
	return checkpoints, nil
}

func (s *DirStore) Latest(ctx context.Context, runID string) (Checkpoint, error) {
	checkpoints, err := s.List(ctx, runID)
	if err != nil {
		return Checkpoint{}, err
	}
	if len(checkpoints) == 0 {
		return Checkpoint{}, fmt.Errorf("%w: run %s", ErrNotFound, runID)
	}
	return checkpoints[len(checkpoints)-1], nil
}

// Best reads the best program of a tree written so far.
func (s *DirStore) Best(runID, tree string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.runDir(runID), bestPrefix+tree+".txt"))
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: best %s of run %s", ErrNotFound, tree, runID)
	}
	return string(data), err
}

func (s *DirStore) Close() error {
	return nil
}
