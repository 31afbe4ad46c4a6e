package exporter

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/kosonkh7/SOPO-Dashboard/internal/shipment"
)

// formatFloat formats a float64 value for CSV output with exactly 2 decimal places
func formatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ""
	}
	return fmt.Sprintf("%.2f", f)
}

// formatCell renders one table cell as CSV text
func formatCell(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return formatFloat(x)
	case *float64:
		if x == nil {
			return ""
		}
		return formatFloat(*x)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(shipment.DayLayout)
	default:
		return fmt.Sprint(x)
	}
}
