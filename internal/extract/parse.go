package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// trailingComma matches a comma followed only by whitespace before a
// closing brace or bracket.
var trailingComma = regexp.MustCompile(`,\s*([}\]])`)

// Parse decodes a raw model response into a Result. The JSON object is
// isolated from any surrounding prose first. When strict decoding fails a
// single repair pass (single quotes to double quotes, trailing commas
// dropped) is applied and decoding is retried once.
func Parse(raw string) (Result, error) {
	if strings.TrimSpace(raw) == "" {
		return Result{}, fmt.Errorf("empty response")
	}
	payload, ok := isolate(raw)
	if !ok {
		return Result{}, fmt.Errorf("no JSON object in response")
	}

	var res Result
	strictErr := json.Unmarshal([]byte(payload), &res)
	if strictErr == nil {
		return res, nil
	}

	res = Result{}
	if err := json.Unmarshal([]byte(repair(payload)), &res); err != nil {
		return Result{}, fmt.Errorf("invalid JSON after repair: %w", strictErr)
	}
	return res, nil
}

// isolate returns the text between the first '{' and the last '}'
// inclusive. ok is false when there is no such span.
func isolate(s string) (payload string, ok bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return "", false
	}
	return s[start : end+1], true
}

func repair(s string) string {
	s = strings.ReplaceAll(s, "'", `"`)
	return trailingComma.ReplaceAllString(s, "$1")
}

// Age is the patient age in whole years, 0 when unknown. It decodes from a
// JSON integer, a float (truncated), a numeric string or null. Any other
// value decodes to 0 rather than failing the whole result.
type Age int

// UnmarshalJSON implements json.Unmarshaler.
func (a *Age) UnmarshalJSON(data []byte) error {
	*a = 0
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	text := string(data)
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		text = strings.TrimSpace(s)
	}

	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f > 200 {
		return nil
	}
	*a = Age(int(f))
	return nil
}

// String returns the age in years, or "" when unknown.
func (a Age) String() string {
	if a <= 0 {
		return ""
	}
	return strconv.Itoa(int(a))
}
