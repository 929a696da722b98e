package tickettailor

import "github.com/neomorfeo/boxsync/internal/domain"

var _ domain.SourceFactory = (*Factory)(nil)

// Factory builds clients bound to tenant credentials.
type Factory struct {
	opts     Options
	breakers *Breakers
}

// NewFactory returns a factory. A nil breakers disables circuit breaking.
func NewFactory(opts Options, breakers *Breakers) *Factory {
	return &Factory{opts: opts, breakers: breakers}
}

// ForKey implements domain.SourceFactory.
func (f *Factory) ForKey(name, apiKey string) domain.EventSource {
	var src domain.EventSource = New(apiKey, f.opts)
	if f.breakers != nil {
		src = f.breakers.Wrap(name, src)
	}
	return src
}
