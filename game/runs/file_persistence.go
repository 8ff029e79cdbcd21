package runs

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/wricardo/mcp-training/pushmo/game/service"
)

const runFileExt = ".json.zst"

// FilePersistence implements RunPersistence with one compressed file per run
type FilePersistence struct {
	runsDir string
}

// NewFilePersistence creates a new file-based run persistence layer
func NewFilePersistence(runsDir string) (*FilePersistence, error) {
	if err := os.MkdirAll(runsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create runs directory: %w", err)
	}

	return &FilePersistence{runsDir: runsDir}, nil
}

// Save writes a run to <id>.json.zst. The file is written under a temporary
// name and renamed so readers never see a partial run.
func (fp *FilePersistence) Save(run *service.Run) error {
	if run == nil {
		return fmt.Errorf("run cannot be nil")
	}
	if !validID(run.ID) {
		return fmt.Errorf("%w: %q", ErrInvalidRunID, run.ID)
	}

	path := fp.getFilePath(run.ID)
	tmp, err := os.CreateTemp(fp.runsDir, run.ID+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create run file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := writeRun(tmp, run); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close run file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write run file: %w", err)
	}
	return nil
}

func writeRun(f *os.File, run *service.Run) error {
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("failed to create encoder: %w", err)
	}

	bw := bufio.NewWriter(enc)
	if err := json.NewEncoder(bw).Encode(run); err != nil {
		enc.Close()
		return fmt.Errorf("failed to marshal run: %w", err)
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return fmt.Errorf("failed to write run: %w", err)
	}
	return enc.Close()
}

// Load reads a run from its compressed file
func (fp *FilePersistence) Load(id string) (*service.Run, error) {
	if !validID(id) {
		return nil, ErrRunNotFound
	}

	f, err := os.Open(fp.getFilePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to open run file: %w", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	defer dec.Close()

	var run service.Run
	if err := json.NewDecoder(bufio.NewReader(dec)).Decode(&run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run data: %w", err)
	}
	return &run, nil
}

// Delete removes a run file
func (fp *FilePersistence) Delete(id string) error {
	if !fp.Exists(id) {
		return ErrRunNotFound
	}

	if err := os.Remove(fp.getFilePath(id)); err != nil {
		return fmt.Errorf("failed to remove run file: %w", err)
	}
	return nil
}

// ListAll returns all persisted run IDs
func (fp *FilePersistence) ListAll() ([]string, error) {
	entries, err := os.ReadDir(fp.runsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read runs directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if name := entry.Name(); strings.HasSuffix(name, runFileExt) {
			ids = append(ids, strings.TrimSuffix(name, runFileExt))
		}
	}
	return ids, nil
}

// Exists checks if a run file exists
func (fp *FilePersistence) Exists(id string) bool {
	if !validID(id) {
		return false
	}
	_, err := os.Stat(fp.getFilePath(id))
	return err == nil
}

func (fp *FilePersistence) getFilePath(id string) string {
	return filepath.Join(fp.runsDir, id+runFileExt)
}
