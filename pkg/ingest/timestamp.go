package ingest

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// dayFirstLayouts are tried in order. Day and month layouts use the
// non-padded verbs so both "3/1/2025" and "03/01/2025" parse; year-first
// ISO forms are unambiguous and come after the day-first ones.
var dayFirstLayouts = []string{
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2/1/2006 3:04:05 PM",
	"2/1/2006 3:04 PM",
	"2-1-2006 15:04:05",
	"2-1-2006 15:04",
	"2.1.2006 15:04:05",
	"2.1.2006 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006/01/02 15:04:05",
	"2/1/2006",
	"2-1-2006",
	"2.1.2006",
	"2006-01-02",
	"2/1/06 15:04:05",
	"2/1/06 15:04",
	"2/1/06",
}

// maxExcelSerial is 9999-12-31, the last date Excel can represent.
const maxExcelSerial = 2958465

// TimeParser turns export cells into timestamps. Unparsable cells yield nil.
type TimeParser struct {
	loc *time.Location
}

// NewTimeParser returns a parser interpreting wall-clock values in loc
// (UTC when nil).
func NewTimeParser(loc *time.Location) *TimeParser {
	if loc == nil {
		loc = time.UTC
	}

	return &TimeParser{loc: loc}
}

// Parse parses a day-first timestamp or an Excel date serial.
func (p *TimeParser) Parse(value string, date1904 bool) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}

	if serial, err := strconv.ParseFloat(value, 64); err == nil {
		return p.fromSerial(serial, date1904)
	}

	for _, layout := range dayFirstLayouts {
		if t, err := time.ParseInLocation(layout, value, p.loc); err == nil {
			t = t.In(p.loc)

			return &t
		}
	}

	return nil
}

// fromSerial converts an Excel serial date. Sub-second noise from the
// floating point representation is rounded away.
func (p *TimeParser) fromSerial(serial float64, date1904 bool) *time.Time {
	if math.IsNaN(serial) || serial <= 0 || serial > maxExcelSerial {
		return nil
	}

	t, err := excelize.ExcelDateToTime(serial, date1904)
	if err != nil {
		return nil
	}

	t = t.Round(time.Second)
	t = time.Date(t.Year(), t.Month(), t.Day(),
		t.Hour(), t.Minute(), t.Second(), 0, p.loc)

	return &t
}
