// momo-gateway/tests/integration/load_from_csv_test.go
package integration

import (
	"encoding/csv"
	"os"
	"testing"

	"github.com/example/momo-gateway/internal/momo"
)

func TestLoadPayoutsFromCSV(t *testing.T) {
	f, err := os.Open("../data/dummy_payouts.csv")
	if err != nil { t.Skip("generate csv first via dummygen") }
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil { t.Fatal(err) }
	if len(records) < 2 {
		t.Fatalf("expected >1 rows, got %d", len(records))
	}

	for _, rec := range records[1:] {
		item := momo.PayoutInstruction{
			RecipientID: rec[0], Amount: rec[1], Currency: rec[2], Phone: rec[3], Note: rec[4],
		}
		if err := momo.ValidateMSISDN(item.Phone); err != nil {
			t.Fatalf("dummygen produced invalid phone %q: %v", item.Phone, err)
		}
	}
}
