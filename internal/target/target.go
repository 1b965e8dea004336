// Package target describes the machine the compiler is generating code
// for, as far as the constant evaluator needs to know: pointer width and
// byte order. The evaluator must reproduce the target's memory layout
// exactly, so every layout-sensitive component takes a *Spec.
//
// Targets are described in a small YAML file shipped with the compiler:
//
//	name: vela64
//	pointer_size: 8
//	byte_order: little
package target

import (
	"encoding/binary"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Spec is one target machine description.
type Spec struct {
	// Name identifies the target (e.g. "vela64").
	Name string `yaml:"name"`

	// PointerSize is the width of a pointer in bytes (4 or 8).
	PointerSize uint64 `yaml:"pointer_size"`

	// ByteOrder is "little" or "big".
	ByteOrder string `yaml:"byte_order"`
}

// Default returns the native development target: 64-bit little-endian.
func Default() *Spec {
	return &Spec{Name: "vela64", PointerSize: 8, ByteOrder: "little"}
}

// Parse decodes and validates a YAML target description.
func Parse(data []byte) (*Spec, error) {
	var s Spec
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing target spec: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Load reads a target description from a file.
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading target spec: %w", err)
	}
	return Parse(data)
}

// Validate checks the spec for values the evaluator cannot model.
func (s *Spec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("target spec: name is required")
	}
	if s.PointerSize != 4 && s.PointerSize != 8 {
		return fmt.Errorf("target %s: pointer_size must be 4 or 8, got %d", s.Name, s.PointerSize)
	}
	switch s.ByteOrder {
	case "little", "big":
	default:
		return fmt.Errorf("target %s: byte_order must be \"little\" or \"big\", got %q", s.Name, s.ByteOrder)
	}
	return nil
}

// Order returns the binary byte order for scalar encoding.
func (s *Spec) Order() binary.ByteOrder {
	if s.ByteOrder == "big" {
		return binary.BigEndian
	}
	return binary.LittleEndian
}
