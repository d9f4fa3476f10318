package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/defistate/amm-core-go/calculator/tickmath"
	"github.com/defistate/amm-core-go/cmd/simulator/config"
	"github.com/defistate/amm-core-go/engine"
	"github.com/defistate/amm-core-go/examples/router"
	"github.com/defistate/amm-core-go/poolmanager"
)

// --- VISUAL CONSTANTS ---
const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Cyan   = "\033[36m"
	Gray   = "\033[37m"
)

// header prints a styled section header
func header(title string) {
	fmt.Println("\n" + Bold + Cyan + ":: " + title + " ::" + Reset)
}

type swapResult struct {
	spec  config.SwapSpec
	delta engine.BalanceDelta
}

type quoteResult struct {
	spec      config.QuoteSpec
	path      []router.Hop
	amountOut *big.Int
}

// scenarioResult carries everything the report prints for one scenario.
type scenarioResult struct {
	scenario config.Scenario
	poolIDs  map[string]engine.PoolID
	views    *poolmanager.View
	swaps    []swapResult
	quote    *quoteResult
	elapsed  time.Duration
}

func main() {
	// --- 1. SETUP LOGGING (To File) ---
	logFile, err := os.OpenFile("simulator.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		panic(fmt.Sprintf("Failed to open log file: %v", err))
	}
	defer logFile.Close()

	rootLogger := slog.New(slog.NewJSONHandler(logFile, nil))

	closeApp := func() {
		fmt.Println("\n" + Red + "Fatal error occurred. Check simulator.log for details." + Reset)
		os.Exit(1)
	}

	// --- 2. CONFIG & CONTEXT ---
	prometheusRegistry := prometheus.DefaultRegisterer
	cfg, err := loadConfig()
	if err != nil {
		rootLogger.Error("Failed to load configuration", "error", err)
		closeApp()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	actor := cfg.ActorAddress()
	fmt.Println(Green + "Starting AMM Simulator..." + Reset)
	fmt.Printf("Running %d scenario(s) as %s. Logs are being written to 'simulator.log'.\n",
		len(cfg.Scenarios), actor.Hex())

	// --- 3. RUN SCENARIOS ---
	// Each scenario gets its own manager and a scenario-labeled view of the
	// process registry, so they can run concurrently without sharing state.
	started := time.Now()
	results := make([]*scenarioResult, len(cfg.Scenarios))

	g, gctx := errgroup.WithContext(ctx)
	for i, sc := range cfg.Scenarios {
		g.Go(func() error {
			registry := prometheus.WrapRegistererWith(
				prometheus.Labels{"scenario": sc.Name}, prometheusRegistry)
			logger := rootLogger.With("scenario", sc.Name)

			res, err := runScenario(gctx, logger, registry, actor, sc)
			if err != nil {
				return fmt.Errorf("scenario %q: %w", sc.Name, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		rootLogger.Error("Simulation failed", "error", err)
		closeApp()
	}

	// --- 4. REPORT ---
	printReport(results, time.Since(started))
}

// runScenario sets up one manager, applies the scenario's pools, positions
// and swaps in order, then resolves the optional quote.
func runScenario(ctx context.Context, logger *slog.Logger, registry prometheus.Registerer, actor common.Address, sc config.Scenario) (*scenarioResult, error) {
	started := time.Now()

	manager, err := poolmanager.New(&poolmanager.Config{
		Logger:   logger.With("component", "pool-manager"),
		Registry: registry,
	})
	if err != nil {
		return nil, err
	}

	res := &scenarioResult{
		scenario: sc,
		poolIDs:  make(map[string]engine.PoolID, len(sc.Pools)),
	}
	keys := make(map[string]engine.PoolKey, len(sc.Pools))

	sqrtPrice := new(big.Int)
	for i := range sc.Pools {
		spec := &sc.Pools[i]
		key := spec.Key()

		id, err := manager.RegisterPool(poolmanager.PoolConfig{
			Key:          key,
			ProtocolFee0: spec.ProtocolFee0,
			ProtocolFee1: spec.ProtocolFee1,
		})
		if err != nil {
			return nil, fmt.Errorf("register pool %q: %w", spec.Name, err)
		}

		if err := tickmath.GetSqrtRatioAtTick(sqrtPrice, spec.InitialTick); err != nil {
			return nil, fmt.Errorf("initialize pool %q: %w", spec.Name, err)
		}
		if _, err := manager.InitializePool(id, sqrtPrice); err != nil {
			return nil, fmt.Errorf("initialize pool %q: %w", spec.Name, err)
		}

		res.poolIDs[spec.Name] = id
		keys[spec.Name] = key
	}

	for i := range sc.Positions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pos := &sc.Positions[i]
		id := res.poolIDs[pos.Pool]
		key := keys[pos.Pool]

		err := manager.Execute(actor, func(u *poolmanager.UnitOfWork) error {
			_, _, err := u.ModifyLiquidity(id, engine.ModifyLiquidityParams{
				Owner:          pos.OwnerAddress(),
				TickLower:      pos.TickLower,
				TickUpper:      pos.TickUpper,
				LiquidityDelta: pos.LiquidityAmount(),
			})
			if err != nil {
				return err
			}
			return reconcile(u, key.Currency0, key.Currency1)
		})
		if err != nil {
			return nil, fmt.Errorf("position %d on pool %q: %w", i, pos.Pool, err)
		}
	}

	for i := range sc.Swaps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sw := &sc.Swaps[i]
		id := res.poolIDs[sw.Pool]
		key := keys[sw.Pool]

		var delta engine.BalanceDelta
		err := manager.Execute(actor, func(u *poolmanager.UnitOfWork) error {
			var err error
			delta, err = u.Swap(id, engine.SwapParams{
				ZeroForOne:        sw.ZeroForOne,
				AmountSpecified:   sw.Amount(),
				SqrtPriceLimitX96: sw.PriceLimit(),
			})
			if err != nil {
				return err
			}
			return reconcile(u, key.Currency0, key.Currency1)
		})
		if err != nil {
			return nil, fmt.Errorf("swap %d on pool %q: %w", i, sw.Pool, err)
		}

		res.swaps = append(res.swaps, swapResult{spec: *sw, delta: delta})
		logger.Info("swap executed",
			"pool", sw.Pool,
			"zeroForOne", sw.ZeroForOne,
			"amount0", delta.Amount0,
			"amount1", delta.Amount1,
		)
	}

	if q := sc.Quote; q != nil {
		rt, err := router.NewRouter(manager, actor)
		if err != nil {
			return nil, fmt.Errorf("quote: %w", err)
		}
		path, amountOut, err := rt.FindBestPath(
			common.HexToAddress(q.CurrencyIn),
			common.HexToAddress(q.CurrencyOut),
			q.Amount(),
			q.MaxHops,
		)
		if err != nil {
			return nil, fmt.Errorf("quote: %w", err)
		}
		res.quote = &quoteResult{spec: *q, path: path, amountOut: amountOut}
	}

	res.views = manager.View()
	res.elapsed = time.Since(started)
	logger.Info("scenario complete",
		"pools", len(sc.Pools), "swaps", len(res.swaps), "elapsed", res.elapsed)
	return res, nil
}

// reconcile zeroes the actor's open balances in the given currencies: what
// the actor owes is settled, what the actor is owed is taken.
func reconcile(u *poolmanager.UnitOfWork, currencies ...common.Address) error {
	for _, c := range currencies {
		bal := u.Balance(c)
		switch {
		case bal.Sign() < 0:
			if err := u.Settle(c, new(big.Int).Neg(bal)); err != nil {
				return err
			}
		case bal.Sign() > 0:
			if err := u.Take(c, bal); err != nil {
				return err
			}
		}
	}
	return nil
}

// --- REPORT ---

func printReport(results []*scenarioResult, elapsed time.Duration) {
	header("SIMULATION SUMMARY")

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 4, ' ', 0)
	fmt.Fprintln(w, "SCENARIO\tPOOLS\tSWAPS\tQUOTE\tELAPSED\t")
	fmt.Fprintln(w, "--------\t-----\t-----\t-----\t-------\t")
	for _, res := range results {
		quote := "-"
		if res.quote != nil {
			quote = fmt.Sprintf("%d hop(s)", len(res.quote.path))
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\t\n",
			res.scenario.Name, len(res.scenario.Pools), len(res.swaps), quote,
			res.elapsed.Round(time.Microsecond))
	}
	w.Flush()
	fmt.Printf("\n%sTotal wall time: %s%s\n", Gray, elapsed.Round(time.Millisecond), Reset)

	for _, res := range results {
		printScenario(res)
	}
}

func printScenario(res *scenarioResult) {
	header(strings.ToUpper(fmt.Sprintf("SCENARIO %s", res.scenario.Name)))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 4, ' ', 0)
	fmt.Fprintln(w, "POOL\tTICK\tSQRT PRICE (X96)\tLIQUIDITY\tFEE GROWTH 0 (X128)\tFEE GROWTH 1 (X128)\t")
	fmt.Fprintln(w, "----\t----\t----------------\t---------\t-------------------\t-------------------\t")
	for i := range res.scenario.Pools {
		spec := &res.scenario.Pools[i]
		pv, ok := res.views.Pool(res.poolIDs[spec.Name])
		if !ok {
			continue
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\t\n",
			spec.Name, pv.Tick, pv.SqrtPriceX96, pv.Liquidity,
			pv.FeeGrowthGlobal0X128, pv.FeeGrowthGlobal1X128)
	}
	w.Flush()

	if len(res.swaps) > 0 {
		fmt.Println("")
		w = tabwriter.NewWriter(os.Stdout, 0, 0, 4, ' ', 0)
		fmt.Fprintln(w, "SWAP\tPOOL\tDIRECTION\tSPECIFIED\tAMOUNT0\tAMOUNT1\t")
		fmt.Fprintln(w, "----\t----\t---------\t---------\t-------\t-------\t")
		for i, sw := range res.swaps {
			direction := "1 -> 0"
			if sw.spec.ZeroForOne {
				direction = "0 -> 1"
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t\n",
				i+1, sw.spec.Pool, direction, sw.spec.AmountSpecified,
				sw.delta.Amount0, sw.delta.Amount1)
		}
		w.Flush()
	}

	if res.quote != nil {
		printQuote(res.quote)
	}
}

func printQuote(q *quoteResult) {
	fmt.Printf("\n%sBest route for %s:%s %s -> %s\n",
		Bold, q.spec.AmountIn, Reset, q.spec.CurrencyIn, q.spec.CurrencyOut)
	if q.path == nil {
		fmt.Println(Yellow + "No route connects the two currencies." + Reset)
		return
	}

	for i, hop := range q.path {
		fmt.Printf(" [ Step %d ]\n", i+1)
		fmt.Printf("  %s%s%s\n", Cyan, hop.CurrencyIn.Hex(), Reset)
		fmt.Printf("    %s|%s\n", Gray, Reset)
		fmt.Printf("    %s+---[ pool %s ]--->%s  %s%s%s\n",
			Gray, shortID(hop.Pool), Reset, Cyan, hop.CurrencyOut.Hex(), Reset)
	}
	fmt.Printf("%sEst. output:%s %s\n", Bold, Reset, q.amountOut)
}

// shortID truncates a pool ID for display.
func shortID(id engine.PoolID) string {
	s := id.String()
	if len(s) > 12 {
		return s[:12] + "..."
	}
	return s
}

func loadConfig() (*config.SimulatorConfig, error) {
	configPath := flag.String("config", "config.yaml", "Path to the configuration file.")
	flag.Parse()
	log.Printf("Loading configuration from: %s", *configPath)
	return config.LoadConfig(*configPath)
}
