package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidReport = errors.New("invalid report")

// ValidationError names the report field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalidReport, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidReport }

// Number is a numeric reading kept as its JSON literal, so published values
// are exactly what the device sent.
type Number string

func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || !(b[0] == '-' || (b[0] >= '0' && b[0] <= '9')) || !json.Valid(b) {
		return fmt.Errorf("expected a number, got %s", b)
	}
	*n = Number(b)
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if n == "" {
		return []byte("null"), nil
	}
	return []byte(n), nil
}

func (n Number) Float64() (float64, error) {
	return strconv.ParseFloat(string(n), 64)
}

func (n Number) String() string { return string(n) }

// Report is the subset of the iSpindel "Generic HTTP" payload the gateway
// republishes. Optional readings are nil when absent or null.
type Report struct {
	Name        string
	Temperature *Number
	Battery     *Number
	Gravity     *Number
	Angle       *Number
	RSSI        *Number
}

// DecodeReport parses and validates a request body. Keys are matched
// exactly as the device sends them. All failures wrap ErrInvalidReport.
func DecodeReport(body []byte, rejectZeroTemperature bool) (Report, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return Report{}, fmt.Errorf("%w: body is not a JSON object", ErrInvalidReport)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return Report{}, fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}

	var r Report
	if raw, ok := fields["name"]; ok {
		var name *string
		if err := json.Unmarshal(raw, &name); err != nil {
			return Report{}, fmt.Errorf("%w: name: %v", ErrInvalidReport, err)
		}
		if name != nil {
			r.Name = *name
		}
	}
	for key, dst := range map[string]**Number{
		"temperature": &r.Temperature,
		"battery":     &r.Battery,
		"gravity":     &r.Gravity,
		"angle":       &r.Angle,
		"RSSI":        &r.RSSI,
	} {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return Report{}, fmt.Errorf("%w: %s: %v", ErrInvalidReport, key, err)
		}
	}

	if err := r.Validate(rejectZeroTemperature); err != nil {
		return Report{}, err
	}
	return r, nil
}

func (r Report) Validate(rejectZeroTemperature bool) error {
	if strings.TrimSpace(r.Name) == "" {
		return &ValidationError{Field: "name", Reason: "missing"}
	}
	if r.Temperature == nil {
		return &ValidationError{Field: "temperature", Reason: "missing"}
	}
	if rejectZeroTemperature {
		if f, err := r.Temperature.Float64(); err == nil && f == 0 {
			return &ValidationError{Field: "temperature", Reason: "zero"}
		}
	}
	return nil
}
