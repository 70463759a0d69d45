// Command seeder writes a synthetic arXiv metadata file for local runs of
// the ingestion pipeline.
//
//	seeder -n 10000 -out ./data/synthetic.json
//
// Records are spread over a range of years, a share of them have empty
// title and abstract, and a few ids repeat, so every cleaner path is hit.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"math/rand/v2"
	"os"
	"strings"
	"time"
)

var (
	count     = flag.Int("n", 1000, "number of records to write")
	out       = flag.String("out", "", "output file (default stdout)")
	firstYear = flag.Int("from", 1995, "first publication year")
	lastYear  = flag.Int("to", 2024, "last publication year")
	seed      = flag.Uint64("seed", 1, "random seed")
	emptyRate = flag.Float64("empty", 0.01, "share of records with empty title and abstract")
	dupRate   = flag.Float64("dup", 0.005, "share of records that repeat an earlier id")
)

var subjects = []string{
	"graph neural networks", "dark matter halos", "quantum error correction",
	"protein folding", "topological insulators", "reinforcement learning",
	"gravitational waves", "diphoton production", "sparse matrix factorization",
	"exoplanet atmospheres", "transformer language models", "lattice QCD",
}

var templates = []string{
	"On %s in the strong coupling regime",
	"A survey of %s",
	"Scalable methods for %s",
	"Revisiting %s with new data",
	"Bounds and algorithms for %s",
}

var findings = []string{
	"We present a new approach to %s and evaluate it on public benchmarks.",
	"Observations of %s are compared with numerical simulations.",
	"We derive tight bounds for %s and show they are achievable.",
	"Recent results on %s are reviewed, and open problems are listed.",
}

var surnames = []string{"Balazs", "Berger", "Streinu", "Theran", "Pan", "Callan", "Noether", "Okafor", "Ito", "Schmidt"}

type version struct {
	Version string `json:"version"`
	Created string `json:"created"`
}

type record struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Abstract   string    `json:"abstract"`
	Authors    string    `json:"authors"`
	Versions   []version `json:"versions"`
	Categories string    `json:"categories"`
}

func init() {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
	flag.Parse()
}

// records yields n synthetic records.
func records(rng *rand.Rand, n, from, to int) iter.Seq[record] {
	return func(yield func(record) bool) {
		var ids []string
		for i := range n {
			year := from + rng.IntN(to-from+1)
			created := time.Date(year, time.Month(1+rng.IntN(12)), 1+rng.IntN(28),
				rng.IntN(24), rng.IntN(60), rng.IntN(60), 0, time.UTC)

			rec := record{
				ID:         fmt.Sprintf("%02d%02d.%05d", year%100, created.Month(), i),
				Versions:   []version{{Version: "v1", Created: created.Format(time.RFC1123)}},
				Categories: "cs.LG",
			}
			if len(ids) > 0 && rng.Float64() < *dupRate {
				rec.ID = ids[rng.IntN(len(ids))]
			}
			ids = append(ids, rec.ID)

			if rng.Float64() >= *emptyRate {
				subject := subjects[rng.IntN(len(subjects))]
				rec.Title = fmt.Sprintf(templates[rng.IntN(len(templates))], subject)
				rec.Abstract = fmt.Sprintf(findings[rng.IntN(len(findings))], subject)
				rec.Authors = authors(rng)
			}
			if !yield(rec) {
				return
			}
		}
	}
}

func authors(rng *rand.Rand) string {
	n := 1 + rng.IntN(4)
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("%c. %s", 'A'+rune(rng.IntN(26)), surnames[rng.IntN(len(surnames))])
	}
	if n == 1 {
		return names[0]
	}
	return strings.Join(names[:n-1], ", ") + " and " + names[n-1]
}

func write(w io.Writer, source iter.Seq[record]) (int, error) {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	written := 0
	for rec := range source {
		if err := enc.Encode(rec); err != nil {
			return written, err
		}
		written++
	}
	return written, bw.Flush()
}

func main() {
	if *count < 0 || *firstYear > *lastYear {
		slog.Error("invalid flags", "n", *count, "from", *firstYear, "to", *lastYear)
		os.Exit(2)
	}

	var w io.Writer = os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			panic(err)
		}
		defer f.Close()
		w = f
	}

	rng := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
	written, err := write(w, records(rng, *count, *firstYear, *lastYear))
	if err != nil {
		panic(err)
	}
	slog.Info("wrote synthetic records", "count", written, "out", *out)
}
