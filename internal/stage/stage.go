// Package stage decodes raw asset dumps and writes the staged files the
// web viewer loads: lz4 raster payloads, canonical heightmaps and MSH0
// meshes.
package stage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/assetforge/pkg/codec"
)

// Options controls staging behavior.
type Options struct {
	OutputDir string
	Strict    bool // fail assets on truncated texture data instead of staging partials
	Mipmaps   bool // generate a mip chain for staged rasters
	Workers   int  // parallel texture decode workers, minimum 1
}

// Stager writes decoded assets into the output directory. It is an
// explicit value rather than package state so concurrent pipelines with
// different options can coexist.
type Stager struct {
	opts Options
	log  *zap.Logger
}

// New creates a Stager. A nil logger disables logging.
func New(opts Options, log *zap.Logger) *Stager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Stager{opts: opts, log: log}
}

// TextureJob is one texture to decode and stage.
type TextureJob struct {
	Name   string // output-relative name without extension
	Format codec.TextureFormat
	Width  int
	Height int
	Data   []byte
}

// TextureResult reports the outcome of one TextureJob.
type TextureResult struct {
	Name string
	Path string
	Err  error
}

// StageTexture decodes one texture and writes its raster payload.
// Returns the staged file path.
//
// In lenient mode a truncated texture is staged partially with a warning;
// in strict mode it fails. Every other decode error always fails.
func (s *Stager) StageTexture(name string, format codec.TextureFormat, width, height int, data []byte) (string, error) {
	raster, err := codec.DecodeTexture(format, width, height, data)
	if err != nil {
		if s.opts.Strict || !errors.Is(err, codec.ErrTruncatedTextureData) {
			return "", fmt.Errorf("decoding %s: %w", name, err)
		}
		s.log.Warn("staging partial raster",
			zap.String("asset", name),
			zap.Error(err))
	}

	levels := []*codec.RasterImage{raster}
	if s.opts.Mipmaps {
		levels = mipChain(raster)
	}

	path := filepath.Join(s.opts.OutputDir, name+rasterExt)
	if err := writeRasterFile(path, levels); err != nil {
		return "", fmt.Errorf("staging %s: %w", name, err)
	}

	s.log.Info("staged texture",
		zap.String("asset", name),
		zap.Stringer("format", format),
		zap.Int("width", width),
		zap.Int("height", height),
		zap.Int("mips", len(levels)))
	return path, nil
}

// StageTextures runs the jobs across the configured worker pool. Results
// are returned in job order regardless of completion order, so a batch
// report is deterministic for identical inputs.
func (s *Stager) StageTextures(jobs []TextureJob) []TextureResult {
	workers := s.opts.Workers
	if workers < 1 {
		workers = 1
	}

	results := make([]TextureResult, len(jobs))
	indexes := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				job := jobs[i]
				path, err := s.StageTexture(job.Name, job.Format, job.Width, job.Height, job.Data)
				results[i] = TextureResult{Name: job.Name, Path: path, Err: err}
			}
		}()
	}

	for i := range jobs {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	return results
}

// StageHeightmap decodes raw heightmap bytes and rewrites them in the
// canonical big-endian form. Heightmap parse errors are hard failures.
func (s *Stager) StageHeightmap(name string, raw []byte) (string, error) {
	grid, err := codec.DecodeHeightmap(raw)
	if err != nil {
		return "", fmt.Errorf("decoding %s: %w", name, err)
	}

	data, err := codec.EncodeHeightmap(grid)
	if err != nil {
		return "", fmt.Errorf("re-encoding %s: %w", name, err)
	}

	path := filepath.Join(s.opts.OutputDir, name+".hm")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("staging %s: %w", name, err)
	}

	s.log.Info("staged heightmap",
		zap.String("asset", name),
		zap.Uint16("width", grid.Width),
		zap.Uint16("height", grid.Height),
		zap.Bool("compressed", grid.Compressed))
	return path, nil
}

// StageMesh writes a mesh into the output directory as MSH0.
func (s *Stager) StageMesh(name string, m *codec.MeshBuffer) (string, error) {
	path := filepath.Join(s.opts.OutputDir, name+".msh")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", err
	}
	if err := codec.WriteMeshFile(path, m); err != nil {
		return "", fmt.Errorf("staging %s: %w", name, err)
	}

	s.log.Info("staged mesh",
		zap.String("asset", name),
		zap.Uint32("version", m.Version),
		zap.Int("vertices", m.VertexCount),
		zap.Int("indices", m.IndexCount))
	return path, nil
}

// UpgradeMeshes rewrites every .msh file under dir that carries normals
// and uvs as v4 with tangents. Files that cannot be upgraded (no uvs,
// or already tangent-bearing) are skipped, not failed. Returns the
// number of files rewritten.
func (s *Stager) UpgradeMeshes(dir string) (int, error) {
	upgraded := 0

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".msh" {
			return nil
		}

		before, readErr := codec.ReadMeshFile(path)
		if readErr != nil {
			return fmt.Errorf("reading %s: %w", path, readErr)
		}
		already := before.Version >= 4 && before.Flags.Has(codec.FlagTangents)

		if upErr := codec.UpgradeMeshFile(path); upErr != nil {
			if errors.Is(upErr, codec.ErrMeshNotUpgradable) {
				s.log.Debug("skipping mesh without normals+uvs", zap.String("path", path))
				return nil
			}
			return upErr
		}
		if !already {
			upgraded++
			s.log.Info("upgraded mesh", zap.String("path", path))
		}
		return nil
	})

	return upgraded, err
}
