package cmd

import (
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"medigateway/core/bench"
	"medigateway/core/config"
	"medigateway/core/idgen"
	"medigateway/core/ledger"
	"medigateway/core/logging"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a mixed read/write benchmark round",
	Example: `  medibench run --iterations 100 --write-ratio 0.3
  medibench run --iterations 500 --workers 4 --seed 42`,
	Run: func(cmd *cobra.Command, args []string) {
		iterations, _ := cmd.Flags().GetInt("iterations")
		workers, _ := cmd.Flags().GetInt("workers")
		writeRatio, _ := cmd.Flags().GetFloat64("write-ratio")
		seed, _ := cmd.Flags().GetInt64("seed")

		if err := runBenchmark(iterations, workers, writeRatio, seed); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().IntP("iterations", "n", 100, "Total operations to issue")
	runCmd.Flags().IntP("workers", "w", 1, "Concurrent workers")
	runCmd.Flags().Float64P("write-ratio", "r", 0.3, "Probability of a write per operation, in [0,1]")
	runCmd.Flags().Int64("seed", 0, "Random seed; 0 uses the current time")
}

func runBenchmark(iterations, workers int, writeRatio float64, seed int64) error {
	if iterations <= 0 || workers <= 0 {
		return fmt.Errorf("iterations and workers must be positive")
	}
	if writeRatio < 0 || writeRatio > 1 {
		return fmt.Errorf("write-ratio must be in [0,1]")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logging.New(cfg.LogLevel, cfg.Env)

	connector := &ledger.FabricConnector{
		CCPPath:       cfg.CCPPath,
		WalletPath:    cfg.WalletPath,
		IdentityLabel: cfg.IdentityLabel,
		Channel:       cfg.Channel,
		ContractID:    cfg.ContractID,
		Timeout:       time.Duration(cfg.LedgerTimeout),
		Log:           log,
	}
	sess, err := connector.Connect()
	if err != nil {
		return err
	}
	defer sess.Close()

	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	sim := bench.NewSimulator(bench.Config{
		WriteRatio: writeRatio,
		Channel:    cfg.Channel,
		ContractID: cfg.ContractID,
	}, sess.Contract(), rand.New(rand.NewSource(seed)), idgen.NewSeededTimeRandom("BENCH", seed))

	fmt.Printf("Running %d operations across %d worker(s), write ratio %.2f, seed %d\n",
		iterations, workers, writeRatio, seed)

	start := time.Now()
	var wg sync.WaitGroup
	ops := make(chan struct{}, iterations)
	for i := 0; i < iterations; i++ {
		ops <- struct{}{}
	}
	close(ops)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range ops {
				if err := sim.Run(); err != nil {
					log.Warn("benchmark operation failed", "error", err)
				}
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	stats := sim.Stats()
	fmt.Printf("Done in %s\n", elapsed.Round(time.Millisecond))
	fmt.Printf("Writes: %d\nReads: %d\nFailures: %d\n", stats.Writes, stats.Reads, stats.Failures)
	if elapsed > 0 {
		fmt.Printf("Throughput: %.1f ops/sec\n", float64(stats.Writes+stats.Reads)/elapsed.Seconds())
	}
	return nil
}
