package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/szpipe/errs"
	"github.com/arloliu/szpipe/format"
)

// Parse decodes a YAML document into a validated Context. Fields missing
// from the document keep their defaults; unknown fields are rejected.
//
//	shape: {x: 512, y: 512, z: 64}
//	error_bound: 1e-3
//	bound_mode: rel
//	predictor: spline3
//	sparse: csr
//	codec: huffman64
//	fallback_compression: lz4
func Parse(data []byte) (*Context, error) {
	ctx := Default(format.Shape{})

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(ctx); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", errs.ErrInvalidConfig, err)
	}

	if err := ctx.Validate(); err != nil {
		return nil, err
	}

	return ctx, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Context, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return Parse(data)
}

// Marshal encodes ctx as YAML.
func Marshal(ctx *Context) ([]byte, error) {
	return yaml.Marshal(ctx)
}
