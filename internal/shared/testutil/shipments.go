package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// ShipmentHeader is the header row of the shipment table
const ShipmentHeader = "date,center_name,food,fashion,digital,furniture,beauty,sports,books,baby,pet,living,etc"

// ShipmentItems lists the item columns of ShipmentHeader in order
var ShipmentItems = []string{"food", "fashion", "digital", "furniture", "beauty", "sports", "books", "baby", "pet", "living", "etc"}

// ShipmentVolume is the volume WriteShipments records for a center index,
// item index and day offset. Weekend volumes are halved.
func ShipmentVolume(center, item, day int, date time.Time) int {
	v := 40 + 15*center + 5*item + (day*7+item*3)%11
	if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
		v /= 2
	}
	return v
}

// WriteShipments writes a UTF-8 shipment table of days consecutive days from
// start for each center into dir and returns its path. Dates use the
// compact YYYYMMDD form of the source data.
func WriteShipments(t *testing.T, dir string, start time.Time, days int, centers []string) string {
	t.Helper()

	lines := make([]string, 0, 1+days*len(centers))
	lines = append(lines, ShipmentHeader)
	for day := 0; day < days; day++ {
		d := start.AddDate(0, 0, day)
		for ci, center := range centers {
			cols := make([]string, 0, 2+len(ShipmentItems))
			cols = append(cols, d.Format("20060102"), center)
			for item := range ShipmentItems {
				cols = append(cols, fmt.Sprint(ShipmentVolume(ci, item, day, d)))
			}
			lines = append(lines, strings.Join(cols, ","))
		}
	}

	path := filepath.Join(dir, "shipments.csv")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write shipments fixture: %v", err)
	}
	return path
}
