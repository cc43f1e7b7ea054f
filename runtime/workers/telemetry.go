package workers

import (
	"chat-relay/observability"
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// Sampler refreshes gauges owned by another component, it runs on every telemetry tick.
type Sampler func()

// TelemetryWorker samples the relay process and the runtime gauges at a fixed interval.
type TelemetryWorker struct {
	log            *slog.Logger
	metrics        *observability.Metrics
	metricInterval time.Duration
	samplers       []Sampler
}

func NewTelemetryWorker(log *slog.Logger, metrics *observability.Metrics,
	metricInterval time.Duration, samplers ...Sampler) *TelemetryWorker {
	return &TelemetryWorker{
		log:            log,
		metrics:        metrics,
		metricInterval: metricInterval,
		samplers:       samplers,
	}
}

func (w *TelemetryWorker) Run(ctx context.Context) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()

	w.sample(p)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.sample(p)
		}
	}
}

func (w *TelemetryWorker) sample(p *process.Process) {
	for _, sample := range w.samplers {
		sample()
	}
	rss, cpu, err := selfStats(p)
	if err != nil {
		w.log.Warn("Failed to collect self stats", "error", err)
		return
	}
	w.metrics.ProcessRSS.Set(float64(rss))
	w.metrics.ProcessCPU.Set(cpu)
}

// selfStats retrieves resident memory and CPU usage of the given process.
func selfStats(p *process.Process) (uint64, float64, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	cpu, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	return memInfo.RSS, cpu, nil
}
