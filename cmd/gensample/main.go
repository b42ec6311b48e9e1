// Command gensample writes synthetic Fingrid-style frequency data for local
// runs: 10 Hz readings around 50 Hz with occasional excursions outside the
// nominal band. By default it writes monthly YYYY-MM.zip archives into the raw
// directory, where the fetch stage treats them as already downloaded.
//
// Usage:
//
//	go run ./cmd/gensample -from 2024-01-01 -days 14 -out data/raw
//	go run ./cmd/gensample -from 2024-01-01 -days 2 -plain -out data/extracted_csv
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/couchcryptid/grid-frequency-etl/internal/domain"
)

const sampleLayout = "2006-01-02 15:04:05.000"

// walk is a mean-reverting random walk around 50 Hz.
type walk struct {
	rng       *rand.Rand
	value     float64
	excursion int
	target    float64
}

func (w *walk) next() float64 {
	if w.excursion == 0 && w.rng.Float64() < 2e-6 {
		// Excursions last 50 to 1199 readings.
		w.excursion = 50 + w.rng.IntN(1150)
		w.target = 49.85
		if w.rng.IntN(2) == 0 {
			w.target = 50.15
		}
	}
	mean := 50.0
	if w.excursion > 0 {
		mean = w.target
		w.excursion--
	}
	w.value += 0.05*(mean-w.value) + w.rng.NormFloat64()*0.002
	return math.Round(w.value*1000) / 1000
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	from := flag.String("from", "2024-01-01", "first day, YYYY-MM-DD")
	days := flag.Int("days", 7, "number of days")
	hz := flag.Int("hz", 10, "readings per second")
	seed := flag.Uint64("seed", 1, "random seed")
	out := flag.String("out", "data/raw", "output directory")
	plain := flag.Bool("plain", false, "write daily CSV files instead of monthly zip archives")
	flag.Parse()

	start, err := time.Parse(domain.DailyLayout, *from)
	if err != nil {
		return fmt.Errorf("invalid -from: %w", err)
	}
	if *days <= 0 || *hz <= 0 {
		flag.Usage()
		return fmt.Errorf("-days and -hz must be positive")
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		return err
	}

	w := &walk{rng: rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15)), value: 50}

	byMonth := make(map[domain.Month][]time.Time)
	var months []domain.Month
	for d := 0; d < *days; d++ {
		day := start.AddDate(0, 0, d)
		m := domain.MonthOf(day)
		if _, ok := byMonth[m]; !ok {
			months = append(months, m)
		}
		byMonth[m] = append(byMonth[m], day)
	}

	for _, m := range months {
		if *plain {
			for _, day := range byMonth[m] {
				path := filepath.Join(*out, day.Format(domain.DailyLayout)+".csv")
				if err := writeFile(path, func(dst io.Writer) error { return writeDay(dst, day, *hz, w) }); err != nil {
					return err
				}
				log.Printf("%s written", path)
			}
			continue
		}

		path := filepath.Join(*out, m.Tag()+".zip")
		err := writeFile(path, func(dst io.Writer) error { return writeArchive(dst, byMonth[m], *hz, w) })
		if err != nil {
			return err
		}
		log.Printf("%s written (%d days)", path, len(byMonth[m]))
	}
	return nil
}

func writeFile(path string, fill func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	if err := fill(bw); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeArchive(dst io.Writer, days []time.Time, hz int, w *walk) error {
	zw := zip.NewWriter(dst)
	for _, day := range days {
		name := fmt.Sprintf("%s/fingrid_taajuus_%s.csv", day.Format("2006-01"), day.Format(domain.DailyLayout))
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: day})
		if err != nil {
			return err
		}
		if err := writeDay(fw, day, hz, w); err != nil {
			return err
		}
	}
	return zw.Close()
}

// writeDay writes one day of readings in local wall-clock time.
func writeDay(dst io.Writer, day time.Time, hz int, w *walk) error {
	if _, err := io.WriteString(dst, "Time,Value\n"); err != nil {
		return err
	}
	step := time.Second / time.Duration(hz)
	end := day.AddDate(0, 0, 1)
	buf := make([]byte, 0, 64)
	for ts := day; ts.Before(end); ts = ts.Add(step) {
		buf = ts.AppendFormat(buf[:0], sampleLayout)
		buf = append(buf, ',')
		buf = fmt.Appendf(buf, "%.3f\n", w.next())
		if _, err := dst.Write(buf); err != nil {
			return err
		}
	}
	return nil
}
