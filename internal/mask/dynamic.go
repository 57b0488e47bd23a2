package mask

// DynamicState tags whether a dynamic mask was computed.
type DynamicState int

const (
	// Disabled means no detector ran. It is not the same as an all-false mask.
	Disabled DynamicState = iota
	// Computed means at least one detector ran and Mask holds their union.
	Computed
)

func (s DynamicState) String() string {
	switch s {
	case Computed:
		return "computed"
	default:
		return "disabled"
	}
}

// Dynamic is the per-image detector result. The zero value is Disabled.
type Dynamic struct {
	state DynamicState
	mask  Mask
}

// DisabledDynamic returns the Disabled state.
func DisabledDynamic() Dynamic {
	return Dynamic{}
}

// ComputedDynamic wraps a detector union.
func ComputedDynamic(m Mask) Dynamic {
	return Dynamic{state: Computed, mask: m}
}

// State returns the tag.
func (d Dynamic) State() DynamicState {
	return d.state
}

// Enabled reports whether the mask was computed.
func (d Dynamic) Enabled() bool {
	return d.state == Computed
}

// Mask returns the computed mask and true, or an empty Mask and false when Disabled.
func (d Dynamic) Mask() (Mask, bool) {
	if d.state != Computed {
		return Mask{}, false
	}
	return d.mask, true
}

// ApplyTo returns base OR'd with the dynamic mask. A Disabled state returns
// a copy of base untouched.
func (d Dynamic) ApplyTo(base Mask) (Mask, error) {
	m, ok := d.Mask()
	if !ok {
		return base.Clone(), nil
	}
	return Union(base, m)
}
