// Package engine runs the per-packet pipeline: identity resolution, event
// persistence, server-stats deltas, and handler fan-out, in a fixed stage
// order. ShardPool provides the per-server ordering guarantee by
// hash-partitioning tasks onto a fixed set of worker lanes.
package engine

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"

	"github.com/hlstats/daemon/internal/metrics"
	"go.uber.org/zap"
)

// Task is one unit of pipeline work, always dispatched to the lane owning
// its serverID so that all tasks for one server observe a single total
// order.
type Task struct {
	ServerID int64
	Run      func(ctx context.Context)
}

// ShardPool partitions tasks across a fixed number of lanes by hash of
// serverID. Each lane processes its queue strictly serially.
type ShardPool struct {
	lanes  []chan Task
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.SugaredLogger
}

// NewShardPool constructs a pool with laneCount lanes, each buffered to
// queueSize pending tasks.
func NewShardPool(laneCount, queueSize int, logger *zap.SugaredLogger) *ShardPool {
	if laneCount <= 0 {
		laneCount = 1
	}
	if queueSize <= 0 {
		queueSize = 1024
	}
	p := &ShardPool{
		lanes:  make([]chan Task, laneCount),
		logger: logger,
	}
	for i := range p.lanes {
		p.lanes[i] = make(chan Task, queueSize)
	}
	return p
}

// Start launches one goroutine per lane.
func (p *ShardPool) Start(ctx context.Context) {
	p.ctx, p.cancel = context.WithCancel(ctx)
	for i, lane := range p.lanes {
		p.wg.Add(1)
		go p.run(i, lane)
	}
}

func (p *ShardPool) run(idx int, lane chan Task) {
	defer p.wg.Done()
	shardLabel := laneLabel(idx)
	for {
		select {
		case task, ok := <-lane:
			if !ok {
				return
			}
			metrics.QueueDepth.WithLabelValues(shardLabel).Set(float64(len(lane)))
			p.runTask(task)
		case <-p.ctx.Done():
			p.drain(lane)
			return
		}
	}
}

func (p *ShardPool) runTask(task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Errorw("pipeline task panicked", "serverId", task.ServerID, "panic", r)
		}
	}()
	task.Run(p.ctx)
}

// drain processes whatever is already queued on a lane before returning,
// bounded by the caller's shutdown deadline via ctx cancellation having
// already fired on p.ctx — the Run closures themselves check ctx.
func (p *ShardPool) drain(lane chan Task) {
	for {
		select {
		case task, ok := <-lane:
			if !ok {
				return
			}
			p.runTask(task)
		default:
			return
		}
	}
}

// Submit enqueues task onto the lane owned by task.ServerID. It blocks if
// that lane's queue is full, applying backpressure to the caller.
func (p *ShardPool) Submit(task Task) {
	lane := p.lanes[laneFor(task.ServerID, len(p.lanes))]
	select {
	case lane <- task:
	case <-p.ctx.Done():
		p.logger.Warnw("dropped task on shutdown", "serverId", task.ServerID)
	}
}

// Stop closes all lanes and waits for in-flight and already-queued tasks to
// finish. If ctx expires first, whatever is still pending is abandoned and
// logged; the stuck lane goroutines are left to die with the process.
func (p *ShardPool) Stop(ctx context.Context) {
	p.cancel()
	for _, lane := range p.lanes {
		close(lane)
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		pending := 0
		for _, lane := range p.lanes {
			pending += len(lane)
		}
		p.logger.Warnw("shutdown deadline reached, abandoning pending pipeline tasks",
			"pendingTasks", pending, "err", ctx.Err())
	}
}

func laneFor(serverID int64, laneCount int) int {
	h := fnv.New32a()
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(serverID >> (8 * i))
	}
	h.Write(buf[:])
	return int(h.Sum32()) % laneCount
}

func laneLabel(idx int) string {
	return strconv.Itoa(idx)
}
