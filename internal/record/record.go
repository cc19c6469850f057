// Package record turns raw station result rows into normalized failure records.
package record

import (
	"fmt"
	"strings"
)

// Field names a dimension a FailureRecord can be grouped on.
type Field string

const (
	FieldTestCase Field = "test_case"
	FieldModel    Field = "model"
	FieldStation  Field = "station"
	FieldOperator Field = "operator"
	FieldDeviceID Field = "device_id"
)

// Fields lists every known dimension in canonical order.
var Fields = []Field{FieldTestCase, FieldModel, FieldStation, FieldOperator, FieldDeviceID}

// Valid reports whether f is a known dimension.
func (f Field) Valid() bool {
	return f.bit() != 0
}

// ParseField resolves a user supplied dimension name.
func ParseField(s string) (Field, error) {
	f := Field(strings.ToLower(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", fmt.Errorf("unknown field %q", s)
	}
	return f, nil
}

func (f Field) bit() uint8 {
	switch f {
	case FieldTestCase:
		return 1 << 0
	case FieldModel:
		return 1 << 1
	case FieldStation:
		return 1 << 2
	case FieldOperator:
		return 1 << 3
	case FieldDeviceID:
		return 1 << 4
	default:
		return 0
	}
}

// Canonical column names of a station result export.
const (
	ColumnResultFail   = "result_FAIL"
	ColumnModel        = "Model"
	ColumnStation      = "Station ID"
	ColumnOperator     = "Operator"
	ColumnStatus       = "Overall status"
	ColumnDeviceID     = "IMEI"
	ColumnErrorMessage = "error_message"
	ColumnErrorCode    = "error_code"
	ColumnDate         = "Date"
	ColumnHour         = "Hour"
)

// Row is one raw result row keyed by canonical column name. A missing key
// means the source did not carry that column.
type Row map[string]string

// Get returns the trimmed value of column and whether the column exists.
func (r Row) Get(column string) (string, bool) {
	v, ok := r[column]
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

// Value returns the trimmed value of column, empty when absent.
func (r Row) Value(column string) string {
	v, _ := r.Get(column)
	return v
}

// FailureRecord is one failure token observed on one device at one station.
// It is immutable once built.
type FailureRecord struct {
	testCase string
	model    string
	station  string
	operator string
	deviceID string
	present  uint8
}

// New builds a record carrying the three required dimensions.
func New(testCase, model, station string) FailureRecord {
	return FailureRecord{
		testCase: testCase,
		model:    model,
		station:  station,
		present:  FieldTestCase.bit() | FieldModel.bit() | FieldStation.bit(),
	}
}

// WithOperator returns a copy of r carrying operator.
func (r FailureRecord) WithOperator(operator string) FailureRecord {
	r.operator = operator
	r.present |= FieldOperator.bit()
	return r
}

// WithDeviceID returns a copy of r carrying the device identity.
func (r FailureRecord) WithDeviceID(id string) FailureRecord {
	r.deviceID = id
	r.present |= FieldDeviceID.bit()
	return r
}

func (r FailureRecord) TestCase() string { return r.testCase }
func (r FailureRecord) Model() string    { return r.model }
func (r FailureRecord) Station() string  { return r.station }
func (r FailureRecord) Operator() string { return r.operator }
func (r FailureRecord) DeviceID() string { return r.deviceID }

// Has reports whether the record carries field f.
func (r FailureRecord) Has(f Field) bool {
	b := f.bit()
	return b != 0 && r.present&b != 0
}

// Value returns the value of field f and whether the record carries it.
func (r FailureRecord) Value(f Field) (string, bool) {
	if !r.Has(f) {
		return "", false
	}
	switch f {
	case FieldTestCase:
		return r.testCase, true
	case FieldModel:
		return r.model, true
	case FieldStation:
		return r.station, true
	case FieldOperator:
		return r.operator, true
	case FieldDeviceID:
		return r.deviceID, true
	}
	return "", false
}

func (r FailureRecord) String() string {
	return fmt.Sprintf("%s/%s@%s", r.testCase, r.model, r.station)
}
