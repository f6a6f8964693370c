// Command gendata writes a synthetic Apple Health style export.xml fixture,
// alternating heart-rate and step-count records across a configurable
// number of minutes, for exercising the streaming ingester against a
// large file without requiring a real export.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"math"
	"os"
	"time"
)

func main() {
	outPath := flag.String("out", "large_export.xml", "output XML file path")
	count := flag.Int("count", 100_000, "number of <Record> elements to generate")
	flag.Parse()

	if err := generate(*outPath, *count); err != nil {
		fmt.Fprintf(os.Stderr, "gendata: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %d records to %s\n", *count, *outPath)
}

func generate(outPath string, count int) error {
	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	defer w.Flush()

	fmt.Fprintln(w, `<?xml version="1.0" encoding="UTF-8"?>`)
	fmt.Fprintln(w, `<HealthData locale="en_US">`)
	fmt.Fprintln(w, ` <ExportDate value="2024-01-01 12:00:00 -0500"/>`)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < count; i++ {
		ts := start.Add(time.Duration(i) * time.Minute)
		tsStr := ts.Format("2006-01-02 15:04:05 -0700")

		if i%2 == 0 {
			hr := 60.0 + math.Sin(float64(i)*0.1)*20.0 + 20.0
			fmt.Fprintf(w,
				" <Record type=\"HKQuantityTypeIdentifierHeartRate\" sourceName=\"Generator\" unit=\"count/min\" creationDate=\"%[1]s\" startDate=\"%[1]s\" endDate=\"%[1]s\" value=\"%.1f\" />\n",
				tsStr, hr,
			)
		} else {
			fmt.Fprintf(w,
				" <Record type=\"HKQuantityTypeIdentifierStepCount\" sourceName=\"Generator\" unit=\"count\" creationDate=\"%[1]s\" startDate=\"%[1]s\" endDate=\"%[1]s\" value=\"15\"/>\n",
				tsStr,
			)
		}
	}

	fmt.Fprintln(w, `</HealthData>`)
	return nil
}
