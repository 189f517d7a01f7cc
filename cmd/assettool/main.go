// assettool is a CLI utility for inspecting and converting staged game
// assets: MSH0 meshes, heightmaps and block-compressed textures.
package main

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/assetforge/internal/config"
	"github.com/Faultbox/assetforge/internal/logger"
	"github.com/Faultbox/assetforge/internal/stage"
	"github.com/Faultbox/assetforge/pkg/codec"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "mesh":
		cmdMesh(args)
	case "hm", "heightmap":
		cmdHeightmap(args)
	case "tex", "texture":
		cmdTexture(args)
	case "stage":
		cmdStage(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`assettool - game asset codec utility

Usage:
  assettool <command> [options]

Commands:
  mesh info <file.msh>                    Show mesh header and attributes
  mesh upgrade <file.msh>                 Rewrite as v4 with tangents
  hm info <file>                          Show heightmap header
  hm convert <file> <output>              Rewrite in canonical big-endian form
  tex decode -f <fmt> -w <n> -h <n> <file> <output>
                                          Decode a texture to a staged raster
  stage [-in dir] [-out dir] [-strict]    Run the staging pipeline

Examples:
  assettool mesh info models/crate.msh
  assettool hm convert maps/field.hm maps/field.canonical.hm
  assettool tex decode -f dxt5 -w 256 -h 256 wall.bin wall.rglz
  assettool stage -in ./dump -out ./staged -workers 8`)
}

func cmdMesh(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: assettool mesh <info|upgrade> <file.msh>")
		os.Exit(1)
	}

	switch args[0] {
	case "info":
		meshInfo(args[1])
	case "upgrade":
		meshUpgrade(args[1])
	default:
		fmt.Fprintf(os.Stderr, "Unknown mesh subcommand: %s\n", args[0])
		os.Exit(1)
	}
}

func meshInfo(path string) {
	m, err := codec.ReadMeshFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	attrs := []string{"positions"}
	if m.Flags.Has(codec.FlagNormals) {
		attrs = append(attrs, "normals")
	}
	if m.Flags.Has(codec.FlagUVs) {
		attrs = append(attrs, "uvs")
	}
	if m.Flags.Has(codec.FlagTangents) {
		attrs = append(attrs, "tangents")
	}

	fmt.Printf("Mesh:       %s\n", path)
	fmt.Printf("Version:    %d\n", m.Version)
	fmt.Printf("Vertices:   %d\n", m.VertexCount)
	fmt.Printf("Indices:    %d (%d triangles)\n", m.IndexCount, m.IndexCount/3)
	fmt.Printf("Attributes: %s\n", strings.Join(attrs, ", "))
}

func meshUpgrade(path string) {
	if err := codec.UpgradeMeshFile(path); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Upgraded: %s\n", path)
}

func cmdHeightmap(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: assettool hm <info|convert> <file> [output]")
		os.Exit(1)
	}

	grid, err := codec.DecodeHeightmapFile(args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	switch args[0] {
	case "info":
		mode := "full planes"
		if grid.Compressed {
			mode = "row runs"
		}
		fmt.Printf("Heightmap: %s\n", args[1])
		fmt.Printf("Grid:      %dx%d\n", grid.Width, grid.Height)
		fmt.Printf("Mode:      %s\n", mode)
		fmt.Printf("Bounds:    min %v max %v\n", grid.BBoxMin, grid.BBoxMax)
	case "convert":
		if len(args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: assettool hm convert <file> <output>")
			os.Exit(1)
		}
		data, err := codec.EncodeHeightmap(grid)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(args[2], data, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Converted: %s (%d bytes)\n", args[2], len(data))
	default:
		fmt.Fprintf(os.Stderr, "Unknown hm subcommand: %s\n", args[0])
		os.Exit(1)
	}
}

// textureFormats maps CLI names to formats.
var textureFormats = map[string]codec.TextureFormat{
	"dxt1":     codec.TexDXT1,
	"dxt3":     codec.TexDXT3,
	"dxt5":     codec.TexDXT5,
	"argb8888": codec.TexA8R8G8B8,
	"xrgb8888": codec.TexX8R8G8B8,
	"rgb888":   codec.TexR8G8B8,
}

func cmdTexture(args []string) {
	if len(args) < 1 || args[0] != "decode" {
		fmt.Fprintln(os.Stderr, "Usage: assettool tex decode -f <format> -w <width> -h <height> <file> <output>")
		os.Exit(1)
	}

	// Raw texture dumps carry no header, so format and dimensions come
	// from the caller.
	var (
		formatName string
		width      int
		height     int
	)
	rest := []string{}
	a := args[1:]
	for i := 0; i < len(a); i++ {
		switch a[i] {
		case "-f":
			i++
			if i < len(a) {
				formatName = a[i]
			}
		case "-w":
			i++
			if i < len(a) {
				fmt.Sscanf(a[i], "%d", &width)
			}
		case "-h":
			i++
			if i < len(a) {
				fmt.Sscanf(a[i], "%d", &height)
			}
		default:
			rest = append(rest, a[i])
		}
	}

	format, ok := textureFormats[strings.ToLower(formatName)]
	if !ok || width <= 0 || height <= 0 || len(rest) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: assettool tex decode -f <format> -w <width> -h <height> <file> <output>")
		fmt.Fprintf(os.Stderr, "Formats: dxt1, dxt3, dxt5, argb8888, xrgb8888, rgb888\n")
		os.Exit(1)
	}

	data, err := os.ReadFile(rest[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	outDir, name := splitOutput(rest[1])
	s := stage.New(stage.Options{OutputDir: outDir}, nil)
	path, err := s.StageTexture(name, format, width, height, data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Decoded: %s (%dx%d %s)\n", path, width, height, format)
}

// splitOutput splits an output path into the stager's directory and the
// asset name, dropping the extension the stager re-applies.
func splitOutput(out string) (dir, name string) {
	dir = "."
	name = out
	if i := strings.LastIndexByte(out, '/'); i >= 0 {
		dir, name = out[:i], out[i+1:]
	}
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	return dir, name
}

// cmdStage runs the full pipeline: decode every recognized raw asset
// under the input directory and write staged files to the output.
func cmdStage(args []string) {
	config.ParseFlags(args)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	log := logger.Named("stage")
	s := stage.New(stage.Options{
		OutputDir: cfg.Pipeline.OutputDir,
		Strict:    cfg.Textures.Strict,
		Mipmaps:   cfg.Textures.Mipmaps,
		Workers:   cfg.Pipeline.Workers,
	}, log)

	stats, err := stage.Run(s, cfg.Pipeline.InputDir, cfg.Meshes.UpgradeTangents)
	if err != nil {
		logger.Error("pipeline failed", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("pipeline finished",
		zap.Int("heightmaps", stats.Heightmaps),
		zap.Int("meshes", stats.Meshes),
		zap.Int("upgraded", stats.Upgraded),
		zap.Int("failed", stats.Failed))
	if stats.Failed > 0 {
		os.Exit(1)
	}
}
