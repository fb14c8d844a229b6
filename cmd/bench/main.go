// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package main provides benchmarking tools for the decentralized epoch
// manager.
//
// This command-line tool performs benchmarks that evaluate Enter/Exit
// throughput, GlobalTailEpoch reduction cost, and registration churn
// under different worker counts, all at the default epoch length.
//
// # Benchmark Categories
//
// The benchmark suite includes:
//   - Single-threaded Enter/Exit (baseline latency)
//   - Concurrent Enter/Exit (scalability under contention)
//   - GlobalTailEpoch reduction cost as the worker count grows
//   - Registration/deregistration churn
//
// # Usage
//
// Run all benchmarks:
//
//	go run cmd/bench/main.go
//
// # Dangers and Warnings
//
//   - **Resource Consumption**: high worker counts consume significant CPU.
//   - **Garbage Collection**: Go's GC may impact latency measurements.
//
// # See Also
//
// For interactive testing, see the REPL tool.
package main

import (
	"fmt"
	"sync"
	"time"

	epoch "github.com/lym953/dem/internal/concurrency/epoch"
)

func main() {
	fmt.Println("Decentralized Epoch Manager Benchmarks")
	fmt.Println("=======================================")

	benchmarkSingleThreaded()
	benchmarkConcurrentEnterExit()
	benchmarkGlobalTailEpoch()
	benchmarkRegistrationChurn()
}

func printMetrics(m *epoch.Manager) {
	stats := m.GetMetrics()
	fmt.Printf("   metrics: enters=%d retries=%d exits=%d ticks=%d enter_p99=%v\n",
		stats.Enters, stats.EnterRetries, stats.Exits, stats.Ticks, stats.EnterLatency.P99)
}

func benchmarkSingleThreaded() {
	fmt.Println("\n1. Single-threaded Enter/Exit")
	m := epoch.NewManagerWithEpochLength(epoch.DefaultEpochLength)
	defer m.Close()
	m.RegisterThread(1)
	defer m.DeregisterThread(1)

	const ops = 1_000_000
	start := time.Now()
	for i := 0; i < ops; i++ {
		cid := m.Enter(1)
		m.Exit(1, cid)
	}
	duration := time.Since(start)
	fmt.Printf("   Enter/Exit: %d ops in %v (%.0f ops/sec)\n", ops, duration, float64(ops)/duration.Seconds())
	time.Sleep(10 * time.Millisecond)
	printMetrics(m)
}

func benchmarkConcurrentEnterExit() {
	fmt.Println("\n2. Concurrent Enter/Exit")
	m := epoch.NewManagerWithEpochLength(epoch.DefaultEpochLength)
	defer m.Close()
	m.StartEpoch()
	defer m.StopEpoch()

	for _, workers := range []int{1, 2, 4, 8, 16, 32} {
		const opsPerWorker = 100_000
		var wg sync.WaitGroup
		start := time.Now()

		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func(tid uint64) {
				defer wg.Done()
				m.RegisterThread(tid)
				defer m.DeregisterThread(tid)
				for i := 0; i < opsPerWorker; i++ {
					cid := m.Enter(tid)
					m.Exit(tid, cid)
				}
			}(uint64(w))
		}

		wg.Wait()
		duration := time.Since(start)
		totalOps := workers * opsPerWorker
		fmt.Printf("   %d workers: %d ops in %v (%.0f ops/sec)\n",
			workers, totalOps, duration, float64(totalOps)/duration.Seconds())
	}
	time.Sleep(10 * time.Millisecond)
	printMetrics(m)
}

func benchmarkGlobalTailEpoch() {
	fmt.Println("\n3. GlobalTailEpoch reduction cost")
	for _, workers := range []int{1, 10, 100, 1000} {
		m := epoch.NewManagerWithEpochLength(epoch.DefaultEpochLength)
		defer m.Close()
		for tid := 0; tid < workers; tid++ {
			m.RegisterThread(uint64(tid))
			cid := m.Enter(uint64(tid))
			m.Exit(uint64(tid), cid)
		}

		const calls = 1000
		start := time.Now()
		for i := 0; i < calls; i++ {
			m.GlobalTailEpoch()
		}
		duration := time.Since(start)
		fmt.Printf("   %d registered workers: %d calls in %v (%.2f us/call)\n",
			workers, calls, duration, float64(duration.Microseconds())/float64(calls))

		for tid := 0; tid < workers; tid++ {
			m.DeregisterThread(uint64(tid))
		}
	}
}

func benchmarkRegistrationChurn() {
	fmt.Println("\n4. Registration/deregistration churn")
	m := epoch.NewManager()
	defer m.Close()

	for _, workers := range []int{1, 8, 32, 128} {
		const cyclesPerWorker = 1000
		var wg sync.WaitGroup
		start := time.Now()

		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func(tid uint64) {
				defer wg.Done()
				for i := 0; i < cyclesPerWorker; i++ {
					m.RegisterThread(tid)
					cid := m.Enter(tid)
					m.Exit(tid, cid)
					m.DeregisterThread(tid)
				}
			}(uint64(w))
		}

		wg.Wait()
		duration := time.Since(start)
		totalCycles := workers * cyclesPerWorker
		fmt.Printf("   %d workers: %d register/enter/exit/deregister cycles in %v (%.0f cycles/sec)\n",
			workers, totalCycles, duration, float64(totalCycles)/duration.Seconds())
	}
	time.Sleep(10 * time.Millisecond)
	printMetrics(m)
}
