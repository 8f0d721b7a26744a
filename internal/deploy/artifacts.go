package deploy

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/AlexZinkM/linera-client/internal/model"
)

const (
	contractSuffix = "_contract.wasm"
	serviceSuffix  = "_service.wasm"
)

// releaseDir is where cargo puts wasm builds inside a project.
var releaseDir = filepath.Join("target", "wasm32-unknown-unknown", "release")

var wasmMagic = []byte{0x00, 'a', 's', 'm'}

// Artifacts holds the bytecode of an application.
type Artifacts struct {
	ContractPath string
	ServicePath  string
	Contract     []byte
	Service      []byte
}

// LoadArtifacts finds and reads the contract and service bytecode of the
// project at projectPath. Both must be present and be WASM modules.
func LoadArtifacts(ctx context.Context, projectPath string) (*Artifacts, error) {
	info, err := os.Stat(projectPath)
	if err != nil {
		return nil, fmt.Errorf("%w: project path %s: %w", model.ErrMissingArtifact, projectPath, err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("%w: project path %s is not a directory", model.ErrMissingArtifact, projectPath)
	}
	dirs := []string{projectPath, filepath.Join(projectPath, releaseDir)}

	contractPath, err := findArtifact(dirs, contractSuffix)
	if err != nil {
		return nil, err
	}
	servicePath, err := findArtifact(dirs, serviceSuffix)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	contract, err := readWasm(contractPath)
	if err != nil {
		return nil, err
	}
	service, err := readWasm(servicePath)
	if err != nil {
		return nil, err
	}

	return &Artifacts{
		ContractPath: contractPath,
		ServicePath:  servicePath,
		Contract:     contract,
		Service:      service,
	}, nil
}

// findArtifact returns the first file ending in suffix, searching dirs in order.
func findArtifact(dirs []string, suffix string) (string, error) {
	for _, dir := range dirs {
		matches, err := filepath.Glob(filepath.Join(dir, "*"+suffix))
		if err != nil {
			return "", fmt.Errorf("failed to search %s: %w", dir, err)
		}
		sort.Strings(matches)
		for _, m := range matches {
			if fi, err := os.Stat(m); err == nil && fi.Mode().IsRegular() {
				return m, nil
			}
		}
	}
	return "", fmt.Errorf("%w: no *%s found in %v", model.ErrMissingArtifact, suffix, dirs)
}

func readWasm(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrMissingArtifact, err)
	}
	if !bytes.HasPrefix(data, wasmMagic) {
		return nil, fmt.Errorf("%w: %s is not a wasm module", model.ErrMissingArtifact, path)
	}
	return data, nil
}
