package artifacts

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// StandardInput is a solc standard JSON input, the format block explorers
// accept for multi-file sources.
type StandardInput struct {
	Language string                `json:"language"`
	Sources  map[string]SourceFile `json:"sources"`
	Settings InputSettings         `json:"settings"`
}

// SourceFile is one entry of StandardInput.Sources.
type SourceFile struct {
	Content string `json:"content"`
}

// InputSettings are the compiler settings of a StandardInput.
type InputSettings struct {
	Optimizer       OptimizerConfig                `json:"optimizer"`
	EVMVersion      string                         `json:"evmVersion,omitempty"`
	OutputSelection map[string]map[string][]string `json:"outputSelection"`
}

// StandardInput assembles the standard JSON input that recompiles the named
// contract. Every file listed in the artifact's allSourcePaths must be found
// as the source of some artifact under the store directory; brownie writes
// imported packages under dependencies/.
//
// remappings ("@chainlink=smartcontractkit/chainlink-brownie-contracts@1.1.1")
// turn installed package paths back into the import paths used in the source.
// The returned key names the contract's own file inside Sources.
func (s *Store) StandardInput(name string, remappings []string) (*StandardInput, string, error) {
	art, err := s.Load(name)
	if err != nil {
		return nil, "", err
	}
	if art.SourcePath == "" || art.Source == "" {
		return nil, "", fmt.Errorf("%w: %s has no embedded source", ErrNoSource, name)
	}

	index, err := s.sourceIndex()
	if err != nil {
		return nil, "", err
	}
	index[art.SourcePath] = art.Source

	paths := []string{art.SourcePath}
	for _, p := range art.AllSourcePaths {
		paths = append(paths, p)
	}

	sources := make(map[string]SourceFile, len(paths))
	var missing []string
	for _, p := range paths {
		content, ok := index[p]
		if !ok {
			missing = append(missing, p)
			continue
		}
		sources[ImportPath(p, remappings)] = SourceFile{Content: content}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, "", fmt.Errorf("%w: %s imports %s", ErrNoSource, name, strings.Join(missing, ", "))
	}

	input := &StandardInput{
		Language: "Solidity",
		Sources:  sources,
		Settings: InputSettings{
			OutputSelection: map[string]map[string][]string{
				"*": {"*": {"evm.bytecode", "evm.deployedBytecode", "abi"}},
			},
		},
	}
	if art.Compiler != nil {
		input.Settings.Optimizer = art.Compiler.Optimizer
		input.Settings.EVMVersion = art.Compiler.EVMVersion
	}
	return input, ImportPath(art.SourcePath, remappings), nil
}

// sourceIndex maps sourcePath to source for every artifact under the store.
func (s *Store) sourceIndex() (map[string]string, error) {
	index := make(map[string]string)
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		var head struct {
			SourcePath string `json:"sourcePath"`
			Source     string `json:"source"`
		}
		// Not every JSON file in a build directory is an artifact.
		if json.Unmarshal(data, &head) != nil || head.SourcePath == "" || head.Source == "" {
			return nil
		}
		index[head.SourcePath] = head.Source
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("index sources in %s: %w", s.dir, err)
	}
	return index, nil
}

// ImportPath rewrites an installed package path to the import path the
// remapping exposes. Paths no remapping matches are returned unchanged.
func ImportPath(path string, remappings []string) string {
	for _, r := range remappings {
		prefix, target, ok := strings.Cut(r, "=")
		if !ok || target == "" {
			continue
		}
		target = strings.TrimSuffix(target, "/")
		if i := strings.Index(path, target+"/"); i >= 0 {
			return strings.TrimSuffix(prefix, "/") + path[i+len(target):]
		}
	}
	return path
}
