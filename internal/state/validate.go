package state

import (
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrUnknownPath is returned for paths that address no state node.
	ErrUnknownPath = errors.New("unknown state path")
	// ErrTypeMismatch is returned when a value cannot be stored at a path.
	ErrTypeMismatch = errors.New("value type does not match path")
	// ErrInvalid is wrapped by every validation failure.
	ErrInvalid = errors.New("invalid value")
)

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// validator checks an already type-coerced value.
type validator func(v any) error

var validators = map[Path]validator{
	PathMode: func(v any) error {
		if !v.(Mode).Known() {
			return fmt.Errorf("%w: mode %q", ErrInvalid, v)
		}
		return nil
	},
	PathFilterVolume: oneOf(VolumeAll, VolumeSmall, VolumeMedium, VolumeLarge),
	PathFilterCategory: func(any) error {
		return nil
	},

	PathClusterSizeMetric:  oneOf(MetricCount, MetricWeight),
	PathClusterColorMetric: oneOf(MetricCount, MetricWeight),
	PathClusterRadius:      between(10, 200),
	PathClusterMaxZoom:     between(0, 22),
	PathClusterOpacity:     between(0, 1),

	PathHeatmapMetric:    oneOf(MetricUniform, MetricVolume),
	PathHeatmapIntensity: between(0.1, 5),
	PathHeatmapRadius:    between(5, 100),
	PathHeatmapOpacity:   between(0, 1),

	PathMarkersIcon: func(v any) error {
		if v.(string) == "" {
			return fmt.Errorf("%w: empty icon", ErrInvalid)
		}
		return nil
	},
	PathMarkersBaseSize: between(0.1, 3),

	PathColorsPrimary:   color,
	PathColorsSecondary: color,
}

func oneOf[T ~string](allowed ...T) validator {
	return func(v any) error {
		s, _ := toString(v)
		for _, a := range allowed {
			if string(a) == s {
				return nil
			}
		}
		return fmt.Errorf("%w: %q not in %v", ErrInvalid, s, allowed)
	}
}

func between(lo, hi float64) validator {
	return func(v any) error {
		f, ok := toFloat(v)
		if !ok {
			return fmt.Errorf("%w: %v is not a number", ErrInvalid, v)
		}
		if f < lo || f > hi {
			return fmt.Errorf("%w: %v outside [%v, %v]", ErrInvalid, v, lo, hi)
		}
		return nil
	}
}

func color(v any) error {
	if !hexColor.MatchString(v.(string)) {
		return fmt.Errorf("%w: color %q", ErrInvalid, v)
	}
	return nil
}

// Validate checks v against the predicate registered for p without touching
// any store. Paths without a predicate pass; compound paths validate each of
// their leaves.
func Validate(p Path, v any) error {
	acc, ok := accessors[p]
	if !ok {
		if p == Wildcard {
			return fmt.Errorf("%w: %q", ErrUnknownPath, p)
		}
		return nil
	}
	var scratch State
	if !acc.set(&scratch, v) {
		return fmt.Errorf("%w: %s = %T", ErrTypeMismatch, p, v)
	}
	if kids := p.Children(); len(kids) > 0 {
		for _, child := range kids {
			if err := validateLeaf(child, accessors[child].get(&scratch)); err != nil {
				return err
			}
		}
		return nil
	}
	return validateLeaf(p, acc.get(&scratch))
}

func validateLeaf(p Path, v any) error {
	check, ok := validators[p]
	if !ok {
		return nil
	}
	if err := check(v); err != nil {
		return fmt.Errorf("%s: %w", p, err)
	}
	return nil
}
