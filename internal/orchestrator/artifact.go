package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
)

// artifactFile pairs an output path with the bytes that should replace it.
type artifactFile struct {
	path string
	data []byte
}

// stagedArtifact is a fully written temp file waiting to be renamed over its
// target.
type stagedArtifact struct {
	tmp    string
	target string
}

// stageArtifact writes data to a temp file in the target's directory and
// returns it ready to commit. The target itself is untouched.
func stageArtifact(path string, data []byte) (*stagedArtifact, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact directory: %w", err)
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return nil, fmt.Errorf("artifact path %s is a directory", path)
	}

	tmp, err := os.CreateTemp(dir, ".ferro-*")
	if err != nil {
		return nil, fmt.Errorf("create temp artifact: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return nil, fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return nil, fmt.Errorf("sync artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return nil, fmt.Errorf("close temp artifact: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return nil, fmt.Errorf("chmod artifact: %w", err)
	}
	return &stagedArtifact{tmp: tmpName, target: path}, nil
}

// commit renames the staged temp file over the target. Concurrent readers (a
// frontend build, an editor) see either the old content or the new content,
// never a mix.
func (s *stagedArtifact) commit() error {
	if err := os.Rename(s.tmp, s.target); err != nil {
		os.Remove(s.tmp)
		return fmt.Errorf("replace artifact: %w", err)
	}
	return nil
}

func (s *stagedArtifact) discard() {
	os.Remove(s.tmp)
}

// writeArtifacts replaces every file or none of them: all files are staged
// before the first rename, so a failure while staging leaves every target
// untouched. Together the generated artifacts describe one catalog; a types
// file from one run next to a client from another is worse than either run
// alone.
func writeArtifacts(files []artifactFile) error {
	staged := make([]*stagedArtifact, 0, len(files))
	for _, f := range files {
		s, err := stageArtifact(f.path, f.data)
		if err != nil {
			for _, prev := range staged {
				prev.discard()
			}
			return err
		}
		staged = append(staged, s)
	}
	for i, s := range staged {
		if err := s.commit(); err != nil {
			for _, rest := range staged[i+1:] {
				rest.discard()
			}
			return err
		}
	}
	return nil
}
