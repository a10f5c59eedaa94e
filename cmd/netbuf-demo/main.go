package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mnunberg/netbuf"
	"github.com/mnunberg/netbuf/internal/logging"
	"github.com/mnunberg/netbuf/transport"
)

func main() {
	var (
		count   = flag.Int("n", 64, "number of packets to generate")
		size    = flag.Int("size", 32, "bytes per packet")
		verbose = flag.Bool("v", false, "verbose output")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	mgr := netbuf.New(nil)
	defer mgr.Cleanup()

	sink := transport.NewMemSink()
	defer sink.Close()

	logger.Info("generating packets", "count", *count, "size", *size)

	for i := 0; i < *count; i++ {
		span, ok := mgr.Reserve(*size)
		if !ok {
			logger.Error("reserve failed", "iteration", i)
			os.Exit(1)
		}
		buf := span.Bytes()
		for j := range buf {
			buf[j] = byte(i + j)
		}
		mgr.EnqueueSpan(span)
	}

	logger.Info("flushing", "pending_iovs", mgr.IOVCount())

	iovs := make([]netbuf.IOV, 16)
	for mgr.IOVCount() > 0 {
		n := mgr.StartFlush(iovs)
		if n == 0 {
			break
		}
		bufs := make([][]byte, 0, len(iovs))
		for _, iov := range iovs {
			if iov.Base == nil {
				break
			}
			bufs = append(bufs, iov.Base)
		}
		written, err := sink.WriteV(bufs)
		if err != nil {
			logger.Error("writev failed", "error", err)
			os.Exit(1)
		}
		mgr.EndFlush(written)
	}

	snap := mgr.Metrics().Snapshot()
	fmt.Printf("reserved=%d ops, coalesced=%d/%d enqueues, bytes_written=%d\n",
		snap.ReserveOps, snap.CoalesceHits, snap.EnqueueOps, len(sink.Bytes()))
}
