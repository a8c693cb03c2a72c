// Package transform hosts data transforms over dataset sources. It provides
// the filter transform, which keeps the rows satisfying a condition document,
// and a Registry that dispatches transforms by type and chains them.
package transform

import (
	"context"
	"errors"

	"github.com/asaidimu/go-sift/core/dataset"
)

// TypePrefix namespaces the built-in transform types.
const TypePrefix = "sift:"

var (
	// ErrNilSource is returned when a transform is invoked without a source.
	ErrNilSource = errors.New("transform source is required")
	// ErrUnknownTransform is returned for an unregistered transform type.
	ErrUnknownTransform = errors.New("unknown transform type")
)

// Params are the inputs of a single transform invocation.
type Params struct {
	Source dataset.Source
	// Config is the transform specific configuration. It must be plain data
	// (maps, slices, scalars) or a typed value the transform understands.
	Config any
}

// Result is the output of a transform: header rows first, then data rows.
type Result struct {
	Data []dataset.RawRow
}

// Transform is a data transform dispatched by type.
type Transform interface {
	// Type returns the transform's type tag, e.g. "sift:filter".
	Type() string
	Transform(ctx context.Context, params Params) (*Result, error)
}

// Option selects and configures one step of a transform chain.
type Option struct {
	Type   string `json:"type" yaml:"type"`
	Config any    `json:"config,omitempty" yaml:"config,omitempty"`
}
