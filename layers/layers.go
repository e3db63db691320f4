// Package layers holds the configuration surface of the external occupancy
// network: closed enumerations for the activation, normalization and
// downsampling variants and the per-block parameter expansion helper. All
// validation happens at configuration-parse time, before any compute
// resource is allocated. This is pure configuration - the network itself is
// an external collaborator.
package layers

import (
	"fmt"
)

// ActivationType enumerates the supported activation functions.
type ActivationType int

const (
	ReLU ActivationType = iota
	LeakyReLU
	ELU
	PReLU
	SELU
	Sigmoid
	Identity
)

func (at ActivationType) String() string {
	switch at {
	case ReLU:
		return "relu"
	case LeakyReLU:
		return "leaky relu"
	case ELU:
		return "elu"
	case PReLU:
		return "prelu"
	case SELU:
		return "selu"
	case Sigmoid:
		return "sigmoid"
	case Identity:
		return "identity"
	default:
		return fmt.Sprintf("unknown(%d)", int(at))
	}
}

// ParseActivation resolves an activation name to its variant. Unknown names
// fail immediately; the enumeration is closed.
func ParseActivation(name string) (ActivationType, error) {
	switch name {
	case "relu":
		return ReLU, nil
	case "leaky relu":
		return LeakyReLU, nil
	case "elu":
		return ELU, nil
	case "prelu":
		return PReLU, nil
	case "selu":
		return SELU, nil
	case "sigmoid":
		return Sigmoid, nil
	case "identity":
		return Identity, nil
	default:
		return 0, fmt.Errorf("activation %q is not available", name)
	}
}

// NormalizationType enumerates the supported normalization operations.
type NormalizationType int

const (
	BatchNorm NormalizationType = iota
	InstanceNorm
	ConditionalBatchNorm
	NoNorm
)

func (nt NormalizationType) String() string {
	switch nt {
	case BatchNorm:
		return "batchnorm"
	case InstanceNorm:
		return "instancenorm"
	case ConditionalBatchNorm:
		return "cbatchnorm"
	case NoNorm:
		return "none"
	default:
		return fmt.Sprintf("unknown(%d)", int(nt))
	}
}

// ParseNormalization resolves a normalization name for 1D feature blocks.
func ParseNormalization(name string) (NormalizationType, error) {
	switch name {
	case "batchnorm":
		return BatchNorm, nil
	case "instancenorm":
		return InstanceNorm, nil
	case "cbatchnorm":
		return ConditionalBatchNorm, nil
	case "none":
		return NoNorm, nil
	default:
		return 0, fmt.Errorf("normalization %q is not available", name)
	}
}

// ParseNormalization3D resolves a normalization name for the volumetric
// encoder blocks, which support a narrower set than the 1D decoder.
func ParseNormalization3D(name string) (NormalizationType, error) {
	switch name {
	case "batchnorm":
		return BatchNorm, nil
	case "instancenorm":
		return InstanceNorm, nil
	default:
		return 0, fmt.Errorf("normalization %q is not available", name)
	}
}

// DownsamplingType enumerates the supported 3D downsampling operations.
type DownsamplingType int

const (
	MaxPool DownsamplingType = iota
	AveragePool
	Convolution
	NoDownsampling
)

func (dt DownsamplingType) String() string {
	switch dt {
	case MaxPool:
		return "maxpool"
	case AveragePool:
		return "averagepool"
	case Convolution:
		return "convolution"
	case NoDownsampling:
		return "none"
	default:
		return fmt.Sprintf("unknown(%d)", int(dt))
	}
}

// ParseDownsampling resolves a downsampling name to its variant.
func ParseDownsampling(name string) (DownsamplingType, error) {
	switch name {
	case "maxpool":
		return MaxPool, nil
	case "averagepool":
		return AveragePool, nil
	case "convolution":
		return Convolution, nil
	case "none":
		return NoDownsampling, nil
	default:
		return 0, fmt.Errorf("downsampling %q is not available", name)
	}
}

// ExpandPerBlock turns a per-block parameter list into one entry per network
// block. A single value is broadcast to every block; an explicit list must
// match the block count exactly - it is never truncated or padded.
func ExpandPerBlock[T any](values []T, blocks int, name string) ([]T, error) {
	if blocks <= 0 {
		return nil, fmt.Errorf("block count for %s must be positive, got %d", name, blocks)
	}

	switch len(values) {
	case blocks:
		return values, nil
	case 1:
		expanded := make([]T, blocks)
		for i := range expanded {
			expanded[i] = values[0]
		}
		return expanded, nil
	default:
		return nil, fmt.Errorf("length of %s list is %d but the network has %d blocks", name, len(values), blocks)
	}
}
