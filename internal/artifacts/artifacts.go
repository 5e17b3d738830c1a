// Package artifacts loads compiled Solidity contracts (ABI and bytecode)
// from a project's build output.
package artifacts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Sentinel errors - Artifacts
var (
	ErrNotFound      = errors.New("artifacts: contract artifact not found")
	ErrEmptyBytecode = errors.New("artifacts: empty bytecode")
	ErrNoConstructor = errors.New("artifacts: contract has no constructor")
	ErrNoSource      = errors.New("artifacts: source not found")
)

// ContractArtifact represents a compiled Solidity contract with ABI and bytecode.
type ContractArtifact struct {
	ABI              json.RawMessage `json:"abi"`
	Bytecode         Bytecode        `json:"bytecode"`
	DeployedBytecode Bytecode        `json:"deployedBytecode,omitempty"`
	ContractName     string          `json:"contractName,omitempty"`
	SourcePath       string          `json:"sourcePath,omitempty"`
	// AllSourcePaths lists every file the compiler read, keyed by source id.
	AllSourcePaths map[string]string `json:"allSourcePaths,omitempty"`
	Source           string          `json:"source,omitempty"`
	Compiler         *CompilerInfo   `json:"compiler,omitempty"`
}

// CompilerInfo carries the compiler settings recorded in the build output.
type CompilerInfo struct {
	Version    string          `json:"version"`
	Optimizer  OptimizerConfig `json:"optimizer"`
	EVMVersion string          `json:"evm_version,omitempty"`
}

// OptimizerConfig mirrors the solc optimizer settings.
type OptimizerConfig struct {
	Enabled bool `json:"enabled"`
	Runs    int  `json:"runs"`
}

// Bytecode contains the contract bytecode.
// It handles both formats:
// - Simple string: "0x608060..." (brownie, Hardhat)
// - Object with "object" field: {"object": "0x608060..."} (Foundry)
type Bytecode struct {
	hex string
}

// NewBytecode wraps a hex string.
func NewBytecode(hex string) Bytecode {
	return Bytecode{hex: hex}
}

// UnmarshalJSON handles both string and object bytecode formats.
func (b *Bytecode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		b.hex = s
		return nil
	}

	var obj struct {
		Object string `json:"object"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		b.hex = obj.Object
		return nil
	}

	return fmt.Errorf("bytecode must be a string or object with 'object' field")
}

// MarshalJSON marshals the bytecode as a string.
func (b Bytecode) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.hex)
}

// String returns the bytecode hex string.
func (b Bytecode) String() string {
	return b.hex
}

// Bytes decodes the bytecode. Brownie leaves library placeholders
// ("__Name__") unlinked; those are reported rather than silently zeroed.
func (b Bytecode) Bytes() ([]byte, error) {
	h := b.hex
	if h == "" || h == "0x" {
		return nil, ErrEmptyBytecode
	}
	if strings.Contains(h, "__") {
		return nil, fmt.Errorf("bytecode has unlinked library references")
	}
	if !strings.HasPrefix(h, "0x") {
		h = "0x" + h
	}
	return hexutil.Decode(h)
}

// ParsedABI returns the parsed ABI.
func (a *ContractArtifact) ParsedABI() (abi.ABI, error) {
	return abi.JSON(bytes.NewReader(a.ABI))
}

// EncodeConstructorArgs encodes constructor arguments using the contract's ABI.
// Returns the encoded args (without bytecode prefix) ready to append to bytecode.
func (a *ContractArtifact) EncodeConstructorArgs(args ...interface{}) ([]byte, error) {
	if len(args) == 0 {
		return nil, nil
	}

	parsed, err := a.ParsedABI()
	if err != nil {
		return nil, fmt.Errorf("parse ABI: %w", err)
	}
	if parsed.Constructor.Inputs == nil {
		return nil, ErrNoConstructor
	}

	packed, err := parsed.Constructor.Inputs.Pack(args...)
	if err != nil {
		return nil, fmt.Errorf("pack constructor args: %w", err)
	}
	return packed, nil
}

// Store resolves artifacts by contract name inside a build directory.
type Store struct {
	dir   string
	cache map[string]*ContractArtifact
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir, cache: make(map[string]*ContractArtifact)}
}

// Dir returns the root directory of the store.
func (s *Store) Dir() string {
	return s.dir
}

// candidates lists the layouts probed for a contract name: brownie
// (build/contracts/Name.json), brownie dependencies, and Foundry
// (out/Name.sol/Name.json).
func (s *Store) candidates(name string) []string {
	return []string{
		filepath.Join(s.dir, name+".json"),
		filepath.Join(s.dir, "dependencies", name+".json"),
		filepath.Join(s.dir, name+".sol", name+".json"),
	}
}

// Load returns the artifact for the contract name.
func (s *Store) Load(name string) (*ContractArtifact, error) {
	if a, ok := s.cache[name]; ok {
		return a, nil
	}

	for _, path := range s.candidates(name) {
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		var artifact ContractArtifact
		if err := json.Unmarshal(data, &artifact); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if artifact.ContractName == "" {
			artifact.ContractName = name
		}
		s.cache[name] = &artifact
		return &artifact, nil
	}

	return nil, fmt.Errorf("%w: %s in %s", ErrNotFound, name, s.dir)
}

// LoadAll loads every named artifact and reports all missing ones at once.
func (s *Store) LoadAll(names ...string) (map[string]*ContractArtifact, error) {
	loaded := make(map[string]*ContractArtifact, len(names))
	var missing []string
	for _, name := range names {
		a, err := s.Load(name)
		if errors.Is(err, ErrNotFound) {
			missing = append(missing, name)
			continue
		}
		if err != nil {
			return nil, err
		}
		loaded[name] = a
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %v in %s", ErrNotFound, missing, s.dir)
	}
	return loaded, nil
}
