package transform

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/asaidimu/go-sift/core/condition"
	"github.com/asaidimu/go-sift/core/dataset"
)

// FilterType is the type tag of the filter transform.
const FilterType = TypePrefix + "filter"

// Error codes raised while binding dimensions.
const (
	ErrCodeMissingDimension = "MISSING_DIMENSION"
	ErrCodeUnknownDimension = "UNKNOWN_DIMENSION"
)

// FilterOptions configures a FilterTransform.
type FilterOptions struct {
	// Operators extends the condition operator table.
	Operators map[condition.Op]condition.OperatorFunc
	Logger    *zap.Logger
}

// DefaultFilterOptions returns options with the built-in operators and a no-op logger.
func DefaultFilterOptions() *FilterOptions {
	return &FilterOptions{
		Operators: map[condition.Op]condition.OperatorFunc{},
		Logger:    zap.NewNop(),
	}
}

// FilterTransform keeps the data rows for which a condition holds. Header
// rows are always kept.
//
// The condition is compiled before any row is read. A condition that does not
// compile fails the whole call: an empty or failed result is preferable to
// silently returning the unfiltered dataset.
type FilterTransform struct {
	operators map[condition.Op]condition.OperatorFunc
	logger    *zap.Logger
}

var _ Transform = (*FilterTransform)(nil)

// NewFilterTransform creates a filter transform.
func NewFilterTransform(opts *FilterOptions) *FilterTransform {
	if opts == nil {
		opts = DefaultFilterOptions()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FilterTransform{
		operators: opts.Operators,
		logger:    logger,
	}
}

func (f *FilterTransform) Type() string {
	return FilterType
}

// Transform filters params.Source with the condition document in params.Config.
//
// It returns a *condition.ConfigurationError when the condition is malformed or
// references an unknown dimension; errors from reading row values are
// returned unchanged.
func (f *FilterTransform) Transform(ctx context.Context, params Params) (*Result, error) {
	source := params.Source
	if source == nil {
		return nil, ErrNilSource
	}

	cond, err := condition.Compile[dimensionRef, dataset.RawRow](
		params.Config,
		map[string]bool{condition.DimensionAttr: true},
		&dimensionStrategy{source: source},
		&condition.Options{Operators: f.operators, Logger: f.logger},
	)
	if err != nil {
		f.logger.Debug("Filter condition rejected", zap.Error(err))
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	headerCount := source.HeaderCount()
	data := make([]dataset.RawRow, 0, headerCount)
	for i := 0; i < headerCount; i++ {
		data = append(data, source.RawHeaderItem(i))
	}

	count := source.Count()
	for i := 0; i < count; i++ {
		row := source.RawDataItem(i)
		ok, err := cond.EvaluateContext(ctx, row)
		if err != nil {
			return nil, err
		}
		if ok {
			data = append(data, row)
		}
	}

	f.logger.Debug("Filtered rows",
		zap.Int("header", headerCount),
		zap.Int("scanned", count),
		zap.Int("kept", len(data)-headerCount),
	)
	return &Result{Data: data}, nil
}

// dimensionRef is the compiled payload of a relational leaf.
type dimensionRef struct {
	dimIdx int
}

// dimensionStrategy binds relational leaves to source dimensions.
type dimensionStrategy struct {
	source dataset.Source
}

func (s *dimensionStrategy) PrepareGetValue(leaf condition.Leaf) (dimensionRef, error) {
	if !leaf.Has(condition.DimensionAttr) {
		return dimensionRef{}, condition.NewConfigurationError(ErrCodeMissingDimension, leaf,
			"Relation condition must have prop \"dimension\" specified.",
			"\nIllegal condition:", leaf)
	}

	dim := leaf.Get(condition.DimensionAttr)
	info, ok := s.source.DimensionInfo(dim)
	if !ok {
		all := s.source.DimensionInfoAll()
		names := dataset.DimensionNames(all)
		err := condition.NewConfigurationError(ErrCodeUnknownDimension, leaf,
			fmt.Sprintf("Can not find dimension info via: \"%v\".\n", dim),
			"Existing dimensions:", names, ".\n",
			"Illegal condition:", leaf, ".\n")
		err.Dimensions = names
		return dimensionRef{}, err
	}
	return dimensionRef{dimIdx: info.Index}, nil
}

func (s *dimensionStrategy) GetValue(row dataset.RawRow, ref dimensionRef) (any, error) {
	return s.source.RetrieveItemValue(row, ref.dimIdx)
}
