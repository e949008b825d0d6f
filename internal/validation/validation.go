// Package validation provides input validation for solforge.
package validation

import (
	"errors"
	"regexp"
	"strings"

	"golang.org/x/mod/semver"
)

// Contract names follow Solidity identifier rules.
var contractNameRegex = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// Full solc versions look like v0.8.24+commit.e11b9ed9.
var solcVersionRegex = regexp.MustCompile(`^v?(\d+\.\d+\.\d+)\+commit\.[0-9a-f]+$`)

// ValidateContractName validates a Solidity contract name.
func ValidateContractName(name string) error {
	if name == "" {
		return errors.New("contract name cannot be empty")
	}
	if len(name) > 128 {
		return errors.New("contract name too long (max 128 chars)")
	}
	if !contractNameRegex.MatchString(name) {
		return errors.New("invalid contract name: must be a Solidity identifier")
	}
	return nil
}

// ValidateSourcePath validates a virtual source file path. Paths are
// relative and may not escape upward.
func ValidateSourcePath(path string) error {
	if path == "" {
		return errors.New("source path cannot be empty")
	}
	if strings.HasPrefix(path, "/") {
		return errors.New("source path must be relative")
	}
	for _, segment := range strings.Split(path, "/") {
		if segment == ".." {
			return errors.New("source path may not contain ..")
		}
	}
	return nil
}

// ValidateCompilerVersion accepts either a bare release like 0.8.24 or
// a full solc version like v0.8.24+commit.e11b9ed9.
func ValidateCompilerVersion(v string) error {
	if v == "" {
		return errors.New("compiler version cannot be empty")
	}
	if m := solcVersionRegex.FindStringSubmatch(v); m != nil {
		v = m[1]
	}
	normalized := "v" + strings.TrimPrefix(v, "v")
	if !semver.IsValid(normalized) {
		return errors.New("invalid compiler version: must be in format X.Y.Z")
	}
	if strings.Count(strings.SplitN(strings.TrimPrefix(normalized, "v"), "-", 2)[0], ".") < 2 {
		return errors.New("invalid compiler version: must be in format X.Y.Z (major.minor.patch)")
	}
	return nil
}

// ValidateAddress validates an Ethereum address.
func ValidateAddress(addr string) error {
	if len(addr) != 42 {
		return errors.New("invalid address length: must be 42 characters (0x + 40 hex)")
	}
	if !strings.HasPrefix(addr, "0x") {
		return errors.New("invalid address: must start with 0x")
	}
	// Check hex characters
	for _, c := range addr[2:] {
		isDigit := c >= '0' && c <= '9'
		isLowerHex := c >= 'a' && c <= 'f'
		isUpperHex := c >= 'A' && c <= 'F'
		if !isDigit && !isLowerHex && !isUpperHex {
			return errors.New("invalid address: contains non-hex characters")
		}
	}
	return nil
}

// ValidateChainID validates a chain ID.
func ValidateChainID(chainID int64) error {
	if chainID <= 0 {
		return errors.New("chain ID must be positive")
	}
	return nil
}
