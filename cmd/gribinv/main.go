// Command gribinv prints one inventory line per GRIB2 message: index, byte
// offset, parameter category and number, short name, level, type of level
// and packing template.
//
// Usage:
//
//	go run ./cmd/gribinv [-stats] file.grib2 [more.grib2 ...]
//
// With -stats it also decodes each field and prints min, max and mean of
// the unmasked values.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"

	"github.com/sellinios/aethra/internal/grib2"
)

func main() {
	stats := flag.Bool("stats", false, "decode values and print min/max/mean")
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	failed := false
	for _, path := range flag.Args() {
		if flag.NArg() > 1 {
			fmt.Printf("== %s\n", path)
		}
		if err := inventoryFile(os.Stdout, path, *stats); err != nil {
			log.Printf("%s: %v", path, err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func inventoryFile(w io.Writer, path string, stats bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return inventory(w, f, stats)
}

// inventory writes one line per message. Messages that fail to parse are
// listed with the error and do not stop the listing.
func inventory(w io.Writer, r io.Reader, stats bool) error {
	sc := grib2.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		msg := sc.Message()
		field, err := msg.Parse()
		if err != nil {
			fmt.Fprintf(w, "%d:%d:error=%v\n", n, msg.Offset, err)
			continue
		}
		p := field.Product
		fmt.Fprintf(w, "%d:%d:cat=%d:num=%d:%s:%d:%s:packing=5.%d",
			n, msg.Offset, p.Category, p.Number, p.ShortName(), p.Level(), p.TypeOfLevel(), field.Packing.Template)
		if stats {
			fmt.Fprint(w, ":", summarize(field))
		}
		fmt.Fprintln(w)
	}
	return sc.Err()
}

func summarize(f *grib2.Field) string {
	values, err := f.Values()
	if err != nil {
		return "error=" + err.Error()
	}
	lo, hi, sum, count := math.Inf(1), math.Inf(-1), 0.0, 0
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		lo, hi = math.Min(lo, v), math.Max(hi, v)
		sum += v
		count++
	}
	if count == 0 {
		return "all masked"
	}
	return fmt.Sprintf("min=%g:max=%g:mean=%g:masked=%d", lo, hi, sum/float64(count), len(values)-count)
}
