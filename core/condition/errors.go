package condition

import (
	"errors"

	"github.com/asaidimu/go-sift/utils"
)

// ErrConfiguration is matched by every *ConfigurationError through errors.Is.
var ErrConfiguration = errors.New("invalid condition configuration")

// Error codes carried by ConfigurationError.
const (
	ErrCodeMalformedCondition = "MALFORMED_CONDITION"
	ErrCodeUnknownOperator    = "UNKNOWN_OPERATOR"
	ErrCodeInvalidLiteral     = "INVALID_LITERAL"
	ErrCodeUnknownParser      = "UNKNOWN_PARSER"
	ErrCodePrepareFailed      = "PREPARE_FAILED"
)

// ConfigurationError reports a condition document that cannot be compiled.
// It is always raised before any row is evaluated.
type ConfigurationError struct {
	Code    string
	Message string
	// Leaf is the offending node, in document form when available.
	Leaf any
	// Dimensions lists the valid value-getter targets when the failure is an
	// unresolved reference.
	Dimensions []string
	Err        error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrConfiguration) hold for every ConfigurationError.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// NewConfigurationError builds a ConfigurationError whose message is the
// printable concatenation of msg.
func NewConfigurationError(code string, leaf any, msg ...any) *ConfigurationError {
	return &ConfigurationError{
		Code:    code,
		Message: utils.MakePrintable(msg...),
		Leaf:    leaf,
	}
}

func malformed(node any, msg ...any) *ConfigurationError {
	args := append(msg, "\nIllegal condition:", node)
	return NewConfigurationError(ErrCodeMalformedCondition, node, args...)
}
