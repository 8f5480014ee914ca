// bench-simulation measures heap memory at stream boundaries during a
// simulation run and optionally writes CPU and heap profiles.
//
// Usage:
//
//	go run ./scripts/bench-simulation --stream-length 1000000 --streams 5 \
//	  --precision 14 --profile-dir docs/profiles/simulation
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"

	"github.com/Sumatoshi-tech/hllsim/internal/simulation"
	"github.com/Sumatoshi-tech/hllsim/pkg/safeconv"
)

type heapSnapshot struct {
	label     string
	heapInUse uint64
	heapSys   uint64
	numGC     uint32
}

type profiler struct {
	dir       string
	snapshots []heapSnapshot
}

func (p *profiler) snapshot(label string) {
	runtime.GC()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	p.snapshots = append(p.snapshots, heapSnapshot{
		label:     label,
		heapInUse: m.HeapInuse,
		heapSys:   m.HeapSys,
		numGC:     m.NumGC,
	})

	log.Printf("  [heap] %-30s inuse=%6.1f MB  sys=%6.1f MB", label, float64(m.HeapInuse)/1e6, float64(m.HeapSys)/1e6)
}

func (p *profiler) writeHeapProfile(name string) {
	if p.dir == "" {
		return
	}

	runtime.GC()

	path := filepath.Join(p.dir, name)

	f, err := os.Create(path)
	if err != nil {
		log.Printf("warning: create heap profile %s: %v", path, err)

		return
	}
	defer f.Close()

	err = pprof.WriteHeapProfile(f)
	if err != nil {
		log.Printf("warning: write heap profile %s: %v", path, err)
	}
}

func main() {
	streamLength := flag.Int("stream-length", 1_000_000, "Tokens per stream")
	streams := flag.Int("streams", 5, "Number of streams")
	precision := flag.Int("precision", 14, "Precision bits")
	partitions := flag.Int("partitions", 20, "Checkpoints per stream")
	seed := flag.Uint64("seed", 42, "Base seed")
	profileDir := flag.String("profile-dir", "", "Directory to write profiles (empty disables)")
	cpuProfile := flag.Bool("cpu-profile", false, "Write CPU profile to profile-dir/cpu.prof")

	flag.Parse()

	if *profileDir != "" {
		err := os.MkdirAll(*profileDir, 0o755)
		if err != nil {
			log.Fatalf("mkdir profile-dir: %v", err)
		}
	}

	if *cpuProfile && *profileDir != "" {
		cpuPath := filepath.Join(*profileDir, "cpu.prof")

		cpuFile, err := os.Create(cpuPath)
		if err != nil {
			log.Fatalf("create cpu profile: %v", err)
		}
		defer cpuFile.Close()

		err = pprof.StartCPUProfile(cpuFile)
		if err != nil {
			log.Fatalf("start cpu profile: %v", err)
		}
		defer pprof.StopCPUProfile()

		log.Printf("CPU profiling enabled -> %s", cpuPath)
	}

	params := simulation.Params{
		StreamLength: *streamLength,
		Streams:      *streams,
		Partitions:   *partitions,
		Seed:         *seed,
		Precision:    safeconv.MustIntToUint8(*precision),
	}

	prof := &profiler{dir: *profileDir}
	last := simulation.BuildSchedule(params.StreamLength, params.Partitions).Last()

	// The last checkpoint of a stream is its boundary.
	sink := simulation.RecordSinkFunc(func(rec simulation.Record) error {
		if rec.Processed == last {
			prof.snapshot(fmt.Sprintf("stream_%d_end", rec.Stream))
		}

		return nil
	})

	runner, err := simulation.NewRunner(params, sink)
	if err != nil {
		log.Fatalf("create runner: %v", err)
	}

	prof.snapshot("before_run")
	prof.writeHeapProfile("heap_before_run.prof")

	res, err := runner.Run(context.Background())
	if err != nil {
		log.Fatalf("run: %v", err)
	}

	prof.snapshot("after_run")
	prof.writeHeapProfile("heap_after_run.prof")

	fmt.Println()
	fmt.Println("=== Heap Memory Timeline ===")
	fmt.Printf("%-32s %10s %10s %6s\n", "Phase", "InUse(MB)", "Sys(MB)", "GCs")

	for _, s := range prof.snapshots {
		fmt.Printf("%-32s %10.1f %10.1f %6d\n", s.label, float64(s.heapInUse)/1e6, float64(s.heapSys)/1e6, s.numGC)
	}

	fmt.Println()
	fmt.Printf("tokens=%d elapsed=%s rate=%.0f tokens/s\n",
		res.Tokens, res.Elapsed, float64(res.Tokens)/max(res.Elapsed.Seconds(), 1e-9))
}
