// Package stage decodes raw asset dumps and writes staged viewer files.
// Pipeline entry point: walk an input directory and stage every
// self-describing asset found in it.
package stage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/assetforge/pkg/codec"
)

// Stats summarizes one pipeline run.
type Stats struct {
	Heightmaps int
	Meshes     int
	Upgraded   int
	Failed     int
}

// Run stages every heightmap and mesh under inputDir, preserving the
// directory layout in the output. Raw texture dumps carry no header and
// need format and dimensions from the caller, so they are staged through
// StageTexture or the CLI, not the directory walk. A per-asset failure
// is counted, logged and skipped; only a walk error aborts the run.
func Run(s *Stager, inputDir string, upgradeMeshes bool) (Stats, error) {
	var stats Stats

	err := filepath.WalkDir(inputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(inputDir, path)
		if err != nil {
			return err
		}
		name := strings.TrimSuffix(filepath.ToSlash(rel), filepath.Ext(rel))

		switch filepath.Ext(path) {
		case ".hm":
			raw, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			if _, err := s.StageHeightmap(name, raw); err != nil {
				stats.Failed++
				s.log.Error("heightmap failed", zap.String("path", path), zap.Error(err))
				return nil
			}
			stats.Heightmaps++
		case ".msh", ".msh0":
			m, err := codec.ReadMeshFile(path)
			if err != nil {
				stats.Failed++
				s.log.Error("mesh failed", zap.String("path", path), zap.Error(err))
				return nil
			}
			if _, err := s.StageMesh(name, m); err != nil {
				stats.Failed++
				s.log.Error("mesh failed", zap.String("path", path), zap.Error(err))
				return nil
			}
			stats.Meshes++
		}
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("walking %s: %w", inputDir, err)
	}

	if upgradeMeshes {
		n, err := s.UpgradeMeshes(s.opts.OutputDir)
		if err != nil {
			return stats, err
		}
		stats.Upgraded = n
	}

	return stats, nil
}
