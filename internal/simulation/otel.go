package simulation

import (
	"context"

	"github.com/cxd309/vehicle-emulator/internal/driver"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/cxd309/vehicle-emulator/internal/simulation"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

type instruments struct {
	ticks metric.Int64Counter
	speed metric.Float64Histogram
}

func newInstruments(m metric.Meter) (*instruments, error) {
	var (
		ins instruments
		err error
	)
	ins.ticks, err = m.Int64Counter(
		"vemu.ticks",
		metric.WithDescription("Total vehicle ticks simulated"),
	)
	if err != nil {
		return nil, err
	}
	ins.speed, err = m.Float64Histogram(
		"vemu.speed",
		metric.WithDescription("Vehicle speed after each tick"),
		metric.WithUnit("m/s"),
	)
	if err != nil {
		return nil, err
	}
	return &ins, nil
}

func (ins *instruments) record(ctx context.Context, kind driver.Kind, speed float64) {
	attrs := metric.WithAttributes(attribute.String("driver", string(kind)))
	ins.ticks.Add(ctx, 1, attrs)
	ins.speed.Record(ctx, speed, attrs)
}

// WithMeter records tick metrics on m instead of the global meter provider.
func WithMeter(m metric.Meter) Option {
	return func(s *Simulation) {
		if m == nil {
			return
		}
		if ins, err := newInstruments(m); err == nil {
			s.metrics = ins
		} else {
			s.logger.Warn("Falling back to the global meter", zap.Error(err))
		}
	}
}
