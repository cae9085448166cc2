// Package nodestats samples local host resource counters (CPU, memory,
// network, disk) once per collection tick, alongside the backend metrics.
// Network throughput is derived as a counter delta against the previous
// sample; everything else is an instantaneous read.
package nodestats

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/net"
	"go.uber.org/zap"

	"github.com/albertoperdomo2/llm-d-bench/internal/telemetry"
)

// rootPath is the filesystem whose usage is reported.
const rootPath = "/"

// Names lists every node metric in emission order. The CSV schema derives
// its node columns from this order via the first collected record.
func Names() []string {
	return []string{
		"node_cpu_percent",
		"node_cpu_count",
		"node_memory_total_bytes",
		"node_memory_available_bytes",
		"node_memory_used_bytes",
		"node_memory_percent",
		"node_network_transmit_bytes_per_sec",
		"node_network_receive_bytes_per_sec",
		"node_network_transmit_bytes_total",
		"node_network_receive_bytes_total",
		"node_network_packets_sent_total",
		"node_network_packets_recv_total",
		"node_disk_read_bytes_total",
		"node_disk_write_bytes_total",
		"node_disk_read_count_total",
		"node_disk_write_count_total",
		"node_disk_total_bytes",
		"node_disk_used_bytes",
		"node_disk_free_bytes",
		"node_disk_percent",
	}
}

// Sampler reads host counters and keeps the previous network snapshot for
// throughput deltas. Not safe for concurrent use; the session loop is the
// only caller.
type Sampler struct {
	logger *zap.Logger
	now    func() time.Time

	prevNet     *net.IOCountersStat
	prevNetTime time.Time
}

// NewSampler returns a sampler with no delta history, so the first sample
// of a session reports zero network throughput.
func NewSampler(logger *zap.Logger) *Sampler {
	return &Sampler{logger: logger, now: time.Now}
}

// Sample reads all host counters and returns them in Names() order. Any
// read error discards the whole sample: it is logged at error level and an
// empty contribution is returned, leaving the tick otherwise intact. The
// delta history only advances on a successful sample.
func (s *Sampler) Sample(ctx context.Context) []telemetry.NodeSample {
	samples, err := s.collect(ctx)
	if err != nil {
		s.logger.Error("node metrics sampling failed", zap.Error(err))
		return nil
	}
	return samples
}

func (s *Sampler) collect(ctx context.Context) ([]telemetry.NodeSample, error) {
	samples := make([]telemetry.NodeSample, 0, len(Names()))
	add := func(name string, v float64) {
		samples = append(samples, telemetry.NodeSample{Name: name, Value: telemetry.Some(v)})
	}

	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return nil, fmt.Errorf("cpu percent: %w", err)
	}
	if len(percents) == 0 {
		return nil, fmt.Errorf("cpu percent: empty result")
	}
	cores, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("cpu count: %w", err)
	}
	add("node_cpu_percent", percents[0])
	add("node_cpu_count", float64(cores))

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("virtual memory: %w", err)
	}
	add("node_memory_total_bytes", float64(vm.Total))
	add("node_memory_available_bytes", float64(vm.Available))
	add("node_memory_used_bytes", float64(vm.Used))
	add("node_memory_percent", vm.UsedPercent)

	counters, err := net.IOCountersWithContext(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("network counters: %w", err)
	}
	if len(counters) == 0 {
		return nil, fmt.Errorf("network counters: empty result")
	}
	cur := counters[0]
	sampledAt := s.now()

	var txRate, rxRate float64
	if s.prevNet != nil {
		elapsed := sampledAt.Sub(s.prevNetTime).Seconds()
		txRate = rate(cur.BytesSent, s.prevNet.BytesSent, elapsed)
		rxRate = rate(cur.BytesRecv, s.prevNet.BytesRecv, elapsed)
	}
	add("node_network_transmit_bytes_per_sec", txRate)
	add("node_network_receive_bytes_per_sec", rxRate)
	add("node_network_transmit_bytes_total", float64(cur.BytesSent))
	add("node_network_receive_bytes_total", float64(cur.BytesRecv))
	add("node_network_packets_sent_total", float64(cur.PacketsSent))
	add("node_network_packets_recv_total", float64(cur.PacketsRecv))

	diskIO, err := disk.IOCountersWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("disk io counters: %w", err)
	}
	var readBytes, writeBytes, readCount, writeCount uint64
	for _, d := range diskIO {
		readBytes += d.ReadBytes
		writeBytes += d.WriteBytes
		readCount += d.ReadCount
		writeCount += d.WriteCount
	}
	add("node_disk_read_bytes_total", float64(readBytes))
	add("node_disk_write_bytes_total", float64(writeBytes))
	add("node_disk_read_count_total", float64(readCount))
	add("node_disk_write_count_total", float64(writeCount))

	usage, err := disk.UsageWithContext(ctx, rootPath)
	if err != nil {
		return nil, fmt.Errorf("disk usage: %w", err)
	}
	add("node_disk_total_bytes", float64(usage.Total))
	add("node_disk_used_bytes", float64(usage.Used))
	add("node_disk_free_bytes", float64(usage.Free))
	add("node_disk_percent", usage.UsedPercent)

	s.prevNet = &cur
	s.prevNetTime = sampledAt
	return samples, nil
}

// rate converts a counter delta into a per-second rate. Zero elapsed time
// and counter resets (current below previous) both yield 0 rather than a
// division blowup or a uint64 underflow.
func rate(current, previous uint64, elapsed float64) float64 {
	if elapsed <= 0 || current < previous {
		return 0
	}
	return float64(current-previous) / elapsed
}
