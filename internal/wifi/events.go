// Package wifi measures WiFi related transaction errors per automation
// operator and breaks high error operators down by hour.
package wifi

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/torosent/stationpivot/internal/record"
)

// DefaultTimestampLayout parses the Date and Hour columns joined by a space.
const DefaultTimestampLayout = "01/02/2006 15:04:05"

// DefaultThresholdPercent is the error rate above which an operator is high.
const DefaultThresholdPercent = 9.0

// DefaultOperators are the automation lines tracked when none are configured.
var DefaultOperators = []string{
	"STN251_RED(id:10089)",
	"STN252_RED(id:10090)",
	"STN351_GRN(id:10380)",
	"STN352_GRN(id:10381)",
}

// ErrorKind is one of the tracked WiFi error messages.
type ErrorKind int

const (
	ClosedSocket ErrorKind = iota
	ConnectError
	LostWifi
)

// Kinds lists every tracked error in column order.
var Kinds = []ErrorKind{ClosedSocket, ConnectError, LostWifi}

var kindMessages = [...]string{
	ClosedSocket: "Device closed the socket",
	ConnectError: "DUT connection error",
	LostWifi:     "DUT lost WIFI connection",
}

var kindShort = [...]string{
	ClosedSocket: "Closed socket",
	ConnectError: "Connect Error",
	LostWifi:     "Lost Wifi",
}

// Message returns the error_message text of k.
func (k ErrorKind) Message() string {
	if k < 0 || int(k) >= len(kindMessages) {
		return ""
	}
	return kindMessages[k]
}

// Short returns the compact column label of k.
func (k ErrorKind) Short() string {
	if k < 0 || int(k) >= len(kindShort) {
		return fmt.Sprintf("error(%d)", int(k))
	}
	return kindShort[k]
}

func (k ErrorKind) String() string { return k.Short() }

func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.Short()), nil
}

// ClassifyMessage maps an error_message to a tracked kind.
func ClassifyMessage(msg string) (ErrorKind, bool) {
	msg = strings.TrimSpace(msg)
	for _, k := range Kinds {
		if msg == k.Message() {
			return k, true
		}
	}
	return 0, false
}

// Event is one timestamped transaction.
type Event struct {
	Time     time.Time
	Operator string
	Message  string
}

// Diagnostics counts rows that could not become events.
type Diagnostics struct {
	Rows          int           `json:"rows" yaml:"rows"`
	BadTimestamps int           `json:"bad_timestamps" yaml:"bad_timestamps"`
	OutOfRange    int           `json:"out_of_range" yaml:"out_of_range"`
	Skipped       []record.Skip `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

const maxSkipDetails = 100

// MaxSpan bounds how far an event may lie from the median timestamp. It
// keeps a single mistyped date from stretching the hourly range.
const MaxSpan = 366 * 24 * time.Hour

// Events parses the Date and Hour columns of rows with layout. Rows whose
// timestamp is missing or malformed, or further than MaxSpan from the
// median timestamp, are skipped and counted.
func Events(rows []record.Row, layout string) ([]Event, Diagnostics) {
	if layout == "" {
		layout = DefaultTimestampLayout
	}
	diag := Diagnostics{Rows: len(rows)}
	events := make([]Event, 0, len(rows))
	lines := make([]int, 0, len(rows))
	for i, row := range rows {
		date, hour := row.Value(record.ColumnDate), row.Value(record.ColumnHour)
		ts, err := time.Parse(layout, date+" "+hour)
		if date == "" || hour == "" || err != nil {
			diag.BadTimestamps++
			if len(diag.Skipped) < maxSkipDetails {
				diag.Skipped = append(diag.Skipped, record.Skip{
					Row:    i + 1,
					Reason: fmt.Sprintf("bad timestamp %q", strings.TrimSpace(date+" "+hour)),
				})
			}
			continue
		}
		events = append(events, Event{
			Time:     ts,
			Operator: row.Value(record.ColumnOperator),
			Message:  row.Value(record.ColumnErrorMessage),
		})
		lines = append(lines, i+1)
	}
	events = dropOutliers(events, lines, &diag)
	return events, diag
}

func dropOutliers(events []Event, lines []int, diag *Diagnostics) []Event {
	if len(events) == 0 {
		return events
	}
	times := make([]time.Time, len(events))
	for i, ev := range events {
		times[i] = ev.Time
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	median := times[len(times)/2]
	lo, hi := median.Add(-MaxSpan), median.Add(MaxSpan)

	kept := events[:0]
	for i, ev := range events {
		if ev.Time.Before(lo) || ev.Time.After(hi) {
			diag.OutOfRange++
			if len(diag.Skipped) < maxSkipDetails {
				diag.Skipped = append(diag.Skipped, record.Skip{
					Row:    lines[i],
					Reason: fmt.Sprintf("timestamp %s too far from %s", ev.Time.Format(time.DateTime), median.Format(time.DateTime)),
				})
			}
			continue
		}
		kept = append(kept, ev)
	}
	return kept
}
