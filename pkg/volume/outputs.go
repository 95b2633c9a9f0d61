package volume

// Outputs is an ordered mapping from output layer name to volume. Names
// iterate in insertion order so that per-output processing is
// deterministic.
type Outputs struct {
	names []string
	vols  map[string]*Volume
}

// NewOutputs returns an empty mapping.
func NewOutputs() *Outputs {
	return &Outputs{vols: make(map[string]*Volume)}
}

// Set adds or replaces a named volume. Replacing keeps the original
// position.
func (o *Outputs) Set(name string, v *Volume) {
	if _, ok := o.vols[name]; !ok {
		o.names = append(o.names, name)
	}
	o.vols[name] = v
}

// Get returns the named volume.
func (o *Outputs) Get(name string) (*Volume, bool) {
	v, ok := o.vols[name]
	return v, ok
}

// Names returns the names in insertion order.
func (o *Outputs) Names() []string {
	out := make([]string, len(o.names))
	copy(out, o.names)
	return out
}

// Len returns the number of named volumes.
func (o *Outputs) Len() int {
	return len(o.names)
}

// Each calls fn for every volume in insertion order, stopping at the
// first error.
func (o *Outputs) Each(fn func(name string, v *Volume) error) error {
	for _, name := range o.names {
		if err := fn(name, o.vols[name]); err != nil {
			return err
		}
	}
	return nil
}
