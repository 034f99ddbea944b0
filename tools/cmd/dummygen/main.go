// momo-gateway/tools/cmd/dummygen/main.go
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"
)

func main() {
	n := flag.Int("n", 100, "jumlah baris data (tanpa header)")
	out := flag.String("out", "tests/data/dummy_payouts.csv", "path output CSV")
	flag.Parse()

	rand.Seed(time.Now().UnixNano())

	if err := os.MkdirAll("tests/data", 0o755); err != nil {
		log.Fatal(err)
	}
	f, err := os.Create(*out)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	_ = w.Write([]string{"recipient_id", "amount", "currency", "phone", "note"})
	for i := 0; i < *n; i++ {
		row := []string{
			fmt.Sprintf("EMP-%06d", i+1),
			fmt.Sprintf("%.2f", 10+rand.Float64()*1000),
			[]string{"EUR", "UGX", "GHS", "XAF"}[rand.Intn(4)],
			fmt.Sprintf("2567%08d", rand.Intn(100000000)),
			fmt.Sprintf("payroll run %s", time.Now().Format("2006-01")),
		}
		if err := w.Write(row); err != nil {
			log.Fatal(err)
		}
	}
	log.Printf("generated %s (%d rows + header)", *out, *n)
}
