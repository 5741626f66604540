package detector

import "context"

type contextKey struct{}

// NewContext returns a copy of ctx carrying d.
func NewContext(ctx context.Context, d *Detector) context.Context {
	return context.WithValue(ctx, contextKey{}, d)
}

// FromContext returns the detector carried by ctx, or nil. The nil result is
// usable: every Detector method is a no-op on a nil receiver.
func FromContext(ctx context.Context) *Detector {
	if ctx == nil {
		return nil
	}
	d, _ := ctx.Value(contextKey{}).(*Detector)
	return d
}

// Start opens a unit of work and binds it to the returned context.
func Start(ctx context.Context, opts ...Option) (context.Context, *Detector) {
	d := New(opts...)
	return NewContext(ctx, d), d
}

// End checkpoints the unit of work bound to ctx, returns its notices and
// resets it.
func End(ctx context.Context) []Notice {
	d := FromContext(ctx)
	if d == nil {
		return nil
	}
	d.Checkpoint()
	notices := d.Notices()
	d.Reset()
	return notices
}
