// Command tubesense-rules checks a rule pack and classifies NDJSON payloads against it
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"tubesense/internal/core/rulepack"
	"tubesense/internal/platform/net/http/bind"
	"tubesense/internal/services/api/classify/domain"
	"tubesense/internal/services/api/classify/service"
)

func must(err error) {
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadPack(path string) (*rulepack.Pack, error) {
	if path == "" {
		return rulepack.Load()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return rulepack.Parse(data)
}

// classify reads one domain.Input per line from in and writes one verdict per
// line to out. Invalid lines are reported on stderr and counted
func classify(ctx context.Context, pack *rulepack.Pack, in io.Reader, out io.Writer) (ok, bad int, err error) {
	svc := service.New(pack)
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64*1024), 4<<20)
	enc := json.NewEncoder(out)
	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var payload domain.Input
		if err := json.Unmarshal(raw, &payload); err != nil {
			bad++
			_, _ = fmt.Fprintf(os.Stderr, "line %d: %v\n", line, err)
			continue
		}
		if err := bind.Validate(payload); err != nil {
			bad++
			_, _ = fmt.Fprintf(os.Stderr, "line %d: %v\n", line, err)
			continue
		}
		v, err := svc.Classify(ctx, payload)
		if err != nil {
			return ok, bad, err
		}
		if err := enc.Encode(v); err != nil {
			return ok, bad, err
		}
		ok++
	}
	return ok, bad, sc.Err()
}

func main() {
	var (
		fPack     = flag.String("pack", "", "rules.json to check; empty uses the embedded pack")
		fClassify = flag.Bool("classify", false, "classify NDJSON payloads from stdin")
		fDump     = flag.Bool("dump", false, "write the embedded rules.json to stdout")
		verbose   = flag.Bool("v", false, "list the category table")
	)
	flag.Parse()

	if *fDump {
		_, err := os.Stdout.Write(rulepack.Embedded())
		must(err)
		return
	}

	pack, err := loadPack(*fPack)
	must(err)

	if *fClassify {
		ok, bad, err := classify(context.Background(), pack, os.Stdin, os.Stdout)
		must(err)
		_, _ = fmt.Fprintf(os.Stderr, "classified %d, rejected %d with %s\n", ok, bad, pack.Ref())
		if bad > 0 {
			os.Exit(2)
		}
		return
	}

	cats := pack.Categories()
	_, _ = fmt.Fprintf(os.Stderr, "%s ok: checksum=%s categories=%d positive=%d negative=%d\n",
		pack.Ref(), pack.Checksum, len(cats), len(pack.Positive()), len(pack.Negative()))
	if *verbose {
		for _, c := range cats {
			_, _ = fmt.Fprintf(os.Stderr, "  %3d %-8s %s\n", c.ID, c.Class, c.Label)
		}
	}
}
