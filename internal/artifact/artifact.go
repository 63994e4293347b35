// Package artifact stores the SQL files each pipeline stage writes and
// reads them back for later stages.
package artifact

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/aeroscore/internal/compiler"
)

// File names of the stage artifacts.
const (
	ExclusionsFile = "exclusions.sql"
	ScoringFile    = "scoring.sql"
	AssembleFile   = "compute_aerospace_scores.sql"
)

var fileNames = map[string]string{
	compiler.StageExclusions: ExclusionsFile,
	compiler.StageScoring:    ScoringFile,
	compiler.StageAssemble:   AssembleFile,
}

// Stages lists the artifact-producing stages in pipeline order.
var Stages = []string{compiler.StageExclusions, compiler.StageScoring, compiler.StageAssemble}

// FileName returns the artifact file name of stage.
func FileName(stage string) (string, error) {
	name, ok := fileNames[stage]
	if !ok {
		return "", fmt.Errorf("no artifact for stage %q", stage)
	}
	return name, nil
}

// Info describes a written artifact.
type Info struct {
	Stage  string
	Path   string
	SHA256 string
	Bytes  int64
	// Changed is false when the file already held the same content.
	Changed bool
}

// Hash returns the hex SHA-256 of content.
func Hash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Write stores the artifact of stage under dir. The file is replaced via a
// temporary file so readers never see a partial script.
func Write(dir, stage, content string) (Info, error) {
	name, err := FileName(stage)
	if err != nil {
		return Info{}, err
	}
	path := filepath.Join(dir, name)
	data := []byte(content)
	info := Info{Stage: stage, Path: path, SHA256: Hash(data), Bytes: int64(len(data)), Changed: true}

	if prev, err := os.ReadFile(path); err == nil && bytes.Equal(prev, data) {
		info.Changed = false
		return info, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Info{}, fmt.Errorf("create artifacts dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+name+".*")
	if err != nil {
		return Info{}, fmt.Errorf("write %s: %w", name, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return Info{}, fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return Info{}, fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return Info{}, fmt.Errorf("write %s: %w", name, err)
	}
	return info, nil
}

// Read loads the artifact of stage from dir. A missing file yields an
// empty StageSQL and no error, which the assembler turns into a
// placeholder.
func Read(dir, stage string) (compiler.StageSQL, error) {
	name, err := FileName(stage)
	if err != nil {
		return compiler.StageSQL{}, err
	}
	data, err := os.ReadFile(filepath.Join(dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return compiler.StageSQL{}, nil
	}
	if err != nil {
		return compiler.StageSQL{}, fmt.Errorf("read %s: %w", name, err)
	}
	return compiler.StageSQL{SQL: string(data), Source: name}, nil
}

// Meta returns the "-- key: value" entries of an artifact's header banner.
func Meta(sql string) map[string]string {
	meta := make(map[string]string)
	lines := strings.Split(sql, "\n")
	rules := 0
	for _, line := range lines {
		if !strings.HasPrefix(line, "-- ") {
			break
		}
		body := strings.TrimPrefix(line, "-- ")
		if strings.HasPrefix(body, "====") {
			rules++
			if rules == 2 {
				break
			}
			continue
		}
		if strings.HasPrefix(body, " ") {
			continue
		}
		if k, v, ok := strings.Cut(body, ": "); ok && !strings.Contains(k, " ") {
			meta[k] = v
		}
	}
	return meta
}
