package prometheus

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// registerOrExisting registers c, or returns the collector already
// registered under the same descriptor. Several backends share one registry.
func registerOrExisting[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

