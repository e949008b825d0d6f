package solidity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"
)

// OptimizerRuns is the fixed optimizer setting for every compilation.
const OptimizerRuns = 200

// CompilationUnit is the immutable result of one successful compile.
type CompilationUnit struct {
	ABI               json.RawMessage
	Bytecode          string // exactly one 0x prefix
	CompilerVersion   string // full solc version, e.g. v0.8.20+commit.a1b79430
	StandardJSONInput []byte
	Sources           SourceMap
}

// CompileError carries the compiler's first error-severity diagnostic.
type CompileError struct {
	Message string
}

func (e *CompileError) Error() string { return e.Message }

// Invoker runs the Solidity compiler. Abstracted so tests can supply
// canned compiler output.
type Invoker interface {
	Run(ctx context.Context, standardJSON []byte) ([]byte, error)
	Version(ctx context.Context) (string, error)
}

// SolcBinary invokes a solc executable with --standard-json.
type SolcBinary struct {
	Path    string
	Timeout time.Duration
}

// Run feeds standard-json-input to solc and returns its output.
func (s *SolcBinary) Run(ctx context.Context, standardJSON []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.Path, "--standard-json")
	cmd.Stdin = bytes.NewReader(standardJSON)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("running solc: %w (%s)", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

var solcVersionRe = regexp.MustCompile(`Version:\s*([0-9]+\.[0-9]+\.[0-9]+\+commit\.[0-9a-f]+)`)

// Version returns the full solc version string, prefixed with "v" the
// way explorer APIs expect it.
func (s *SolcBinary) Version(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, s.Path, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("running solc --version: %w", err)
	}

	m := solcVersionRe.FindSubmatch(out)
	if m == nil {
		return "", fmt.Errorf("unrecognized solc version output: %q", strings.TrimSpace(string(out)))
	}
	return "v" + string(m[1]), nil
}

// Compiler wraps solc standard-json compilation.
type Compiler struct {
	invoker Invoker

	once    sync.Once
	version string
	verErr  error
}

// NewCompiler creates a compiler around the given invoker.
func NewCompiler(invoker Invoker) *Compiler {
	return &Compiler{invoker: invoker}
}

type standardInput struct {
	Language string    `json:"language"`
	Sources  SourceMap `json:"sources"`
	Settings settings  `json:"settings"`
}

type settings struct {
	Optimizer       optimizer                      `json:"optimizer"`
	OutputSelection map[string]map[string][]string `json:"outputSelection"`
}

type optimizer struct {
	Enabled bool `json:"enabled"`
	Runs    int  `json:"runs"`
}

type standardOutput struct {
	Errors    []diagnostic                            `json:"errors"`
	Contracts map[string]map[string]contractArtifacts `json:"contracts"`
}

type diagnostic struct {
	Severity         string `json:"severity"`
	FormattedMessage string `json:"formattedMessage"`
	Message          string `json:"message"`
}

type contractArtifacts struct {
	ABI json.RawMessage `json:"abi"`
	EVM struct {
		Bytecode struct {
			Object string `json:"object"`
		} `json:"bytecode"`
	} `json:"evm"`
}

// Compile compiles contractName from source plus any flattened
// imports. Deterministic given identical inputs; no network calls.
func (c *Compiler) Compile(ctx context.Context, contractName, source string, sources SourceMap) (*CompilationUnit, error) {
	fileName := ContractFileName(contractName)

	all := make(SourceMap, len(sources)+1)
	for k, v := range sources {
		all[k] = v
	}
	all[fileName] = SourceFile{Content: source}

	input := standardInput{
		Language: "Solidity",
		Sources:  all,
		Settings: settings{
			Optimizer: optimizer{Enabled: true, Runs: OptimizerRuns},
			OutputSelection: map[string]map[string][]string{
				"*": {"*": {"*"}},
			},
		},
	}

	inputJSON, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("encoding compiler input: %w", err)
	}

	outputJSON, err := c.invoker.Run(ctx, inputJSON)
	if err != nil {
		return nil, err
	}

	var output standardOutput
	if err := json.Unmarshal(outputJSON, &output); err != nil {
		return nil, fmt.Errorf("decoding compiler output: %w", err)
	}

	// Warnings are ignored; the first error-severity diagnostic fails
	// the compilation.
	for _, d := range output.Errors {
		if d.Severity == "error" {
			msg := d.FormattedMessage
			if msg == "" {
				msg = d.Message
			}
			return nil, &CompileError{Message: msg}
		}
	}

	artifact, ok := output.Contracts[fileName][contractName]
	if !ok {
		return nil, fmt.Errorf("contract %s not found in compiler output for %s", contractName, fileName)
	}

	version, err := c.compilerVersion(ctx)
	if err != nil {
		return nil, err
	}

	return &CompilationUnit{
		ABI:               artifact.ABI,
		Bytecode:          NormalizeBytecode(artifact.EVM.Bytecode.Object),
		CompilerVersion:   version,
		StandardJSONInput: inputJSON,
		Sources:           all,
	}, nil
}

func (c *Compiler) compilerVersion(ctx context.Context) (string, error) {
	c.once.Do(func() {
		c.version, c.verErr = c.invoker.Version(ctx)
	})
	return c.version, c.verErr
}

// NormalizeBytecode returns the bytecode with exactly one 0x prefix.
func NormalizeBytecode(bytecode string) string {
	for strings.HasPrefix(bytecode, "0x") {
		bytecode = bytecode[2:]
	}
	return "0x" + bytecode
}

var unsafeFileChars = strings.NewReplacer("/", "", "\\", "", ":", "", " ", "")

// ContractFileName derives the canonical virtual .sol file name for a
// contract, stripping path-unsafe characters.
func ContractFileName(contractName string) string {
	name := unsafeFileChars.Replace(contractName)
	name = strings.TrimSuffix(name, ".sol")
	return name + ".sol"
}
