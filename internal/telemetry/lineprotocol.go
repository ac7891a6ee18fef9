package telemetry

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/cxd309/vehicle-emulator/internal/config"
	"github.com/cxd309/vehicle-emulator/internal/vehicle"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"go.uber.org/zap"
)

// DefaultMeasurement is the InfluxDB measurement records are written under.
const DefaultMeasurement = "vehicle"

// LineProtocol writes records as InfluxDB points, either straight to a
// server through the blocking write API or as line protocol to a writer
// (typically a gzip backup file).
type LineProtocol struct {
	mu          sync.Mutex
	measurement string
	epoch       time.Time // wall-clock instant of simulation time zero

	client influxdb2.Client
	api    influxdb2_api.WriteAPIBlocking

	out    io.Writer
	closer []io.Closer

	logger *zap.Logger
}

// NewLineProtocolWriter writes uncompressed line protocol to w.
func NewLineProtocolWriter(w io.Writer, measurement string, epoch time.Time) *LineProtocol {
	if measurement == "" {
		measurement = DefaultMeasurement
	}
	return &LineProtocol{measurement: measurement, epoch: epoch, out: w, logger: zap.NewNop()}
}

// NewBackupFile appends gzip-compressed line protocol to the file at path.
func NewBackupFile(path, measurement string, epoch time.Time) (*LineProtocol, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("error creating backup file: %w", err)
	}
	zw := gzip.NewWriter(file)
	lp := NewLineProtocolWriter(zw, measurement, epoch)
	lp.closer = []io.Closer{zw, file}
	return lp, nil
}

// NewInflux connects to the server described by cfg. When the server does
// not answer a ping and cfg.BackupPath is set, points go to the backup file
// instead.
func NewInflux(ctx context.Context, cfg config.InfluxConfig, epoch time.Time, logger *zap.Logger) (*LineProtocol, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled {
		return nil, errors.New("influx.enabled is false")
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetFlushInterval(1000))

	running, err := client.Ping(ctx)
	if err == nil && !running {
		err = errors.New("server not ready")
	}
	if err != nil {
		client.Close()
		if cfg.BackupPath == "" {
			return nil, fmt.Errorf("influx at %s unreachable: %w", cfg.URL, err)
		}
		logger.Warn("InfluxDB unreachable, writing to backup file",
			zap.String("url", cfg.URL),
			zap.String("backupPath", cfg.BackupPath),
			zap.Error(err))
		lp, err := NewBackupFile(cfg.BackupPath, cfg.Measurement, epoch)
		if err != nil {
			return nil, err
		}
		lp.logger = logger
		return lp, nil
	}

	measurement := cfg.Measurement
	if measurement == "" {
		measurement = DefaultMeasurement
	}
	logger.Info("InfluxDB client initialized",
		zap.String("url", cfg.URL),
		zap.String("org", cfg.Org),
		zap.String("bucket", cfg.Bucket))
	return &LineProtocol{
		measurement: measurement,
		epoch:       epoch,
		client:      client,
		api:         client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		logger:      logger,
	}, nil
}

// Point converts a record into an InfluxDB point.
func (lp *LineProtocol) Point(r Record) *influxdb2_write.Point {
	p := influxdb2_write.NewPointWithMeasurement(lp.measurement).
		AddTag("run_id", r.RunID).
		AddField("x", r.Position.X()).
		AddField("y", r.Position.Y()).
		AddField("z", r.Position.Z()).
		AddField("heading", r.Heading).
		AddField("speed", r.Speed).
		AddField("engine_rpm", r.EngineRPM).
		AddField("engine_torque", r.EngineTorque).
		AddField("steering_angle", r.Steering).
		SetTime(lp.epoch.Add(time.Duration(r.Time * float64(time.Second))))
	if r.Phase != "" {
		p.AddTag("phase", r.Phase)
	}
	if r.CorneringRadius != nil {
		p.AddField("cornering_radius", *r.CorneringRadius)
	}
	for _, pos := range vehicle.WheelPositions {
		if f, ok := r.Wheels[pos]; ok {
			p.AddField("normal_"+string(pos), f.Normal)
		}
	}
	return p.SortTags()
}

// Write implements Sink.
func (lp *LineProtocol) Write(ctx context.Context, r Record) error {
	p := lp.Point(r)
	if lp.api != nil {
		if err := lp.api.WritePoint(ctx, p); err != nil {
			return fmt.Errorf("writing point to InfluxDB: %w", err)
		}
		return nil
	}

	lp.mu.Lock()
	defer lp.mu.Unlock()
	line := influxdb2_write.PointToLineProtocol(p, time.Nanosecond)
	if _, err := io.WriteString(lp.out, line); err != nil {
		return fmt.Errorf("error writing line protocol: %w", err)
	}
	return nil
}

// Flush implements Sink.
func (lp *LineProtocol) Flush(context.Context) error {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	if f, ok := lp.out.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// Close releases the client or backup file.
func (lp *LineProtocol) Close() error {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	if lp.client != nil {
		lp.client.Close()
	}
	var errs []error
	for _, c := range lp.closer {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
