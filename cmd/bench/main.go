// Command bench runs a synthetic GetOrAdd workload against the cache
// and exposes optional pprof/Prometheus endpoints.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/IvanBrykalov/rankcache/cache"
	pmet "github.com/IvanBrykalov/rankcache/metrics/prom"
)

type workKey struct {
	id uint64
}

func main() {
	var (
		capacity     = flag.Int("cap", 100_000, "cache maxCapacity (entries)")
		ageThreshold = flag.Float64("age_threshold", 0.25, "age-shield share of the population eligible for ranked eviction")
		descending   = flag.Bool("descending", false, "evict highest-ranked candidates first instead of lowest")

		workers  = flag.Int("workers", 2*runtime.GOMAXPROCS(0), "number of worker goroutines")
		duration = flag.Duration("duration", 10*time.Second, "benchmark duration")

		keys = flag.Int("keys", 1_000_000, "keyspace size")
		seed = flag.Int64("seed", time.Now().UnixNano(), "random seed")

		pprofAddr   = flag.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
		metricsAddr = flag.String("http", ":8080", "serve Prometheus metrics at addr")
	)
	flag.Parse()

	if *pprofAddr != "" {
		go func() {
			log.Printf("pprof: serving at %s", *pprofAddr)
			log.Println(http.ListenAndServe(*pprofAddr, nil))
		}()
	}

	metrics := pmet.New(nil, "rankcache", "bench", nil)
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Printf("metrics: serving at %s", *metricsAddr)
		log.Println(http.ListenAndServe(*metricsAddr, nil))
	}()

	f, err := cache.NewFactory[workKey](
		func(s *cache.Stats) int64 { return s.HitCount() },
		*capacity,
		*ageThreshold,
		*descending,
	)
	if err != nil {
		log.Fatal(err)
	}

	c, err := cache.New[workKey, string](f, func(k *workKey) (string, error) {
		return "v:" + strconv.FormatUint(k.id, 10), nil
	}, cache.WithMetrics[workKey, string](metrics))
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = c.Dispose() }()

	// Keys must stay reachable for GetOrAdd to find the same entry
	// twice, since the cache holds them only weakly: pre-allocate the
	// keyspace once and have every worker reuse these pointers.
	keyPool := make([]*workKey, *keys)
	for i := range keyPool {
		keyPool[i] = &workKey{id: uint64(i)}
	}

	workersN := *workers
	if workersN <= 0 {
		workersN = 1
	}
	seedBase := *seed

	var ops uint64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(workersN)
	for w := 0; w < workersN; w++ {
		go func(id int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seedBase + int64(id)*9973))

			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				k := keyPool[r.Intn(len(keyPool))]
				if _, err := c.GetOrAdd(k); err != nil {
					log.Fatal(err)
				}
				atomic.AddUint64(&ops, 1)
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	opsN := atomic.LoadUint64(&ops)
	snap := c.Stats()
	n, _ := c.Count()
	fmt.Printf("cap=%d age_threshold=%.2f descending=%v workers=%d keys=%d dur=%v seed=%d\n",
		*capacity, *ageThreshold, *descending, workersN, *keys, elapsed, seedBase)
	fmt.Printf("ops=%d (%.0f ops/s)  hits=%d  misses=%d  evictions=%d  hit-rate=%.2f%%\n",
		opsN, float64(opsN)/elapsed.Seconds(), snap.Hits, snap.Misses, snap.Evictions, snap.HitRate()*100)
	fmt.Printf("Count()=%d\n", n)
}
