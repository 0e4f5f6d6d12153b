package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DiskStore keeps uploaded chunks and assembled files under a base
// directory. Chunks live in a per-upload temp dir until completion.
type DiskStore struct {
	Dir string
}

func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(filepath.Join(dir, "tmp"), 0o755); err != nil {
		return nil, fmt.Errorf("storage dir: %w", err)
	}
	return &DiskStore{Dir: dir}, nil
}

func (d *DiskStore) chunkPath(uploadID string, index int) string {
	return filepath.Join(d.Dir, "tmp", fmt.Sprintf("%s.part%d", uploadID, index))
}

func (d *DiskStore) WriteChunk(uploadID string, index int, r io.Reader) (int64, error) {
	f, err := os.Create(d.chunkPath(uploadID, index))
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return io.Copy(f, r)
}

// Assemble concatenates the chunks in order into a final file and removes
// the parts. Returns the final path and total size.
func (d *DiskStore) Assemble(uploadID, name string, totalChunks int) (string, int64, error) {
	finalPath := filepath.Join(d.Dir, uploadID+"_"+filepath.Base(name))
	out, err := os.Create(finalPath)
	if err != nil {
		return "", 0, err
	}
	defer out.Close()

	var size int64
	for i := 0; i < totalChunks; i++ {
		part, err := os.Open(d.chunkPath(uploadID, i))
		if err != nil {
			return "", 0, fmt.Errorf("chunk %d: %w", i, err)
		}
		n, err := io.Copy(out, part)
		part.Close()
		if err != nil {
			return "", 0, fmt.Errorf("chunk %d: %w", i, err)
		}
		size += n
	}
	d.DiscardChunks(uploadID, totalChunks)
	return finalPath, size, nil
}

func (d *DiskStore) DiscardChunks(uploadID string, totalChunks int) {
	for i := 0; i < totalChunks; i++ {
		os.Remove(d.chunkPath(uploadID, i))
	}
}

func (d *DiskStore) Open(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

func (d *DiskStore) ReadAll(path string) ([]byte, error) {
	return os.ReadFile(path)
}
