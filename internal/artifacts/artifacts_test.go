package artifacts

import (
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testABI = `[
	{"type":"constructor","inputs":[{"name":"_link","type":"address"},{"name":"_fee","type":"uint256"}],"stateMutability":"nonpayable"},
	{"type":"function","name":"recentWinner","inputs":[],"outputs":[{"name":"","type":"address"}],"stateMutability":"view"}
]`

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

func TestBytecodeUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		json string
		want string
	}{
		{"brownie string", `"0x6001"`, "0x6001"},
		{"foundry object", `{"object":"0x6001","sourceMap":""}`, "0x6001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b Bytecode
			require.NoError(t, json.Unmarshal([]byte(tt.json), &b))
			assert.Equal(t, tt.want, b.String())
		})
	}

	var b Bytecode
	assert.Error(t, json.Unmarshal([]byte(`42`), &b))
}

func TestBytecodeBytes(t *testing.T) {
	got, err := NewBytecode("0x6001").Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x60, 0x01}, got)

	got, err = NewBytecode("6001").Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x60, 0x01}, got, "prefix is optional")

	_, err = NewBytecode("").Bytes()
	assert.ErrorIs(t, err, ErrEmptyBytecode)

	_, err = NewBytecode("0x").Bytes()
	assert.ErrorIs(t, err, ErrEmptyBytecode)

	_, err = NewBytecode("0x6001__SafeMath__6001").Bytes()
	assert.Error(t, err)
}

func TestStoreLoadLayouts(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Lottery.json"),
		`{"contractName":"Lottery","abi":`+testABI+`,"bytecode":"0x6001","source":"contract Lottery {}",
		  "compiler":{"version":"0.6.6+commit.6c089d02","optimizer":{"enabled":true,"runs":200},"evm_version":"istanbul"}}`)
	writeFile(t, filepath.Join(dir, "dependencies", "LinkToken.json"),
		`{"abi":[],"bytecode":"0x6002"}`)
	writeFile(t, filepath.Join(dir, "VRFCoordinatorMock.sol", "VRFCoordinatorMock.json"),
		`{"abi":[],"bytecode":{"object":"0x6003"}}`)

	s := NewStore(dir)
	assert.Equal(t, dir, s.Dir())

	lottery, err := s.Load("Lottery")
	require.NoError(t, err)
	assert.Equal(t, "Lottery", lottery.ContractName)
	require.NotNil(t, lottery.Compiler)
	assert.Equal(t, "0.6.6+commit.6c089d02", lottery.Compiler.Version)
	assert.Equal(t, 200, lottery.Compiler.Optimizer.Runs)

	link, err := s.Load("LinkToken")
	require.NoError(t, err)
	assert.Equal(t, "LinkToken", link.ContractName, "name falls back to the requested one")
	assert.Equal(t, "0x6002", link.Bytecode.String())

	vrf, err := s.Load("VRFCoordinatorMock")
	require.NoError(t, err)
	assert.Equal(t, "0x6003", vrf.Bytecode.String())

	again, err := s.Load("Lottery")
	require.NoError(t, err)
	assert.Same(t, lottery, again, "second load is served from cache")
}

func TestStoreLoadErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Broken.json"), `{"abi":`)
	s := NewStore(dir)

	_, err := s.Load("Missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Load("Broken")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestStoreLoadAll(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "LinkToken.json"), `{"abi":[],"bytecode":"0x6002"}`)
	s := NewStore(dir)

	_, err := s.LoadAll("LinkToken", "MockV3Aggregator", "Lottery")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "MockV3Aggregator")
	assert.Contains(t, err.Error(), "Lottery")

	loaded, err := s.LoadAll("LinkToken")
	require.NoError(t, err)
	assert.Len(t, loaded, 1)
}

func TestEncodeConstructorArgs(t *testing.T) {
	a := &ContractArtifact{ContractName: "Lottery", ABI: json.RawMessage(testABI)}

	packed, err := a.EncodeConstructorArgs(common.HexToAddress("0x01"), big.NewInt(7))
	require.NoError(t, err)
	require.Len(t, packed, 64)
	assert.Equal(t, byte(0x01), packed[31])
	assert.Equal(t, byte(0x07), packed[63])

	empty, err := a.EncodeConstructorArgs()
	require.NoError(t, err)
	assert.Nil(t, empty)

	_, err = a.EncodeConstructorArgs(common.HexToAddress("0x01"))
	assert.Error(t, err, "argument count mismatch")

	noCtor := &ContractArtifact{ABI: json.RawMessage(`[]`)}
	_, err = noCtor.EncodeConstructorArgs(big.NewInt(1))
	assert.ErrorIs(t, err, ErrNoConstructor)
}

func TestImportPath(t *testing.T) {
	remaps := []string{"@chainlink=smartcontractkit/chainlink-brownie-contracts@1.1.1"}

	assert.Equal(t, "@chainlink/contracts/src/v0.6/VRFConsumerBase.sol",
		ImportPath("/home/dev/.brownie/packages/smartcontractkit/chainlink-brownie-contracts@1.1.1/contracts/src/v0.6/VRFConsumerBase.sol", remaps))
	assert.Equal(t, "contracts/Lottery.sol", ImportPath("contracts/Lottery.sol", remaps))
	assert.Equal(t, "contracts/Lottery.sol", ImportPath("contracts/Lottery.sol", []string{"broken"}))
}

func TestStandardInput(t *testing.T) {
	const pkg = "/home/dev/.brownie/packages/smartcontractkit/chainlink-brownie-contracts@1.1.1/contracts/src/v0.6/"
	remaps := []string{"@chainlink=smartcontractkit/chainlink-brownie-contracts@1.1.1"}

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Lottery.json"), `{
		"contractName": "Lottery",
		"abi": [],
		"bytecode": "0x6001",
		"sourcePath": "contracts/Lottery.sol",
		"source": "import \"@chainlink/contracts/src/v0.6/VRFConsumerBase.sol\";",
		"allSourcePaths": {"0": "contracts/Lottery.sol", "1": "`+pkg+`VRFConsumerBase.sol", "2": "`+pkg+`interfaces/LinkTokenInterface.sol"},
		"compiler": {"version": "0.6.6+commit.6c089d02", "optimizer": {"enabled": true, "runs": 200}, "evm_version": "istanbul"}
	}`)
	writeFile(t, filepath.Join(dir, "dependencies", "smartcontractkit", "chainlink-brownie-contracts@1.1.1", "VRFConsumerBase.json"),
		`{"contractName": "VRFConsumerBase", "sourcePath": "`+pkg+`VRFConsumerBase.sol", "source": "contract VRFConsumerBase {}"}`)
	writeFile(t, filepath.Join(dir, "interfaces", "LinkTokenInterface.json"),
		`{"contractName": "LinkTokenInterface", "sourcePath": "`+pkg+`interfaces/LinkTokenInterface.sol", "source": "interface LinkTokenInterface {}"}`)
	writeFile(t, filepath.Join(dir, "map.json"), `{"not": "an artifact"}`)

	input, key, err := NewStore(dir).StandardInput("Lottery", remaps)
	require.NoError(t, err)

	assert.Equal(t, "contracts/Lottery.sol", key)
	assert.Equal(t, "Solidity", input.Language)
	assert.Len(t, input.Sources, 3)
	assert.Equal(t, `import "@chainlink/contracts/src/v0.6/VRFConsumerBase.sol";`, input.Sources["contracts/Lottery.sol"].Content)
	assert.Equal(t, "contract VRFConsumerBase {}", input.Sources["@chainlink/contracts/src/v0.6/VRFConsumerBase.sol"].Content)
	assert.Equal(t, "interface LinkTokenInterface {}", input.Sources["@chainlink/contracts/src/v0.6/interfaces/LinkTokenInterface.sol"].Content)
	assert.Equal(t, OptimizerConfig{Enabled: true, Runs: 200}, input.Settings.Optimizer)
	assert.Equal(t, "istanbul", input.Settings.EVMVersion)

	t.Run("missing import", func(t *testing.T) {
		require.NoError(t, os.Remove(filepath.Join(dir, "interfaces", "LinkTokenInterface.json")))
		_, _, err := NewStore(dir).StandardInput("Lottery", remaps)
		assert.ErrorIs(t, err, ErrNoSource)
		assert.Contains(t, err.Error(), "LinkTokenInterface.sol")
	})

	t.Run("no embedded source", func(t *testing.T) {
		writeFile(t, filepath.Join(dir, "Flat.json"), `{"contractName": "Flat", "abi": [], "bytecode": "0x6001"}`)
		_, _, err := NewStore(dir).StandardInput("Flat", remaps)
		assert.ErrorIs(t, err, ErrNoSource)
	})
}
