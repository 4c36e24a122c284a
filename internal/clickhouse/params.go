package clickhouse

import (
	"strconv"
	"strings"
	"time"
)

// dateTimeLayout is what toDateTime(?, 'UTC') expects on the server side.
const dateTimeLayout = "2006-01-02 15:04:05"

type paramKind int

const (
	paramDateTime paramKind = iota
	paramUInt64
	paramInt32
	paramString
)

// Param is a typed query parameter. Parameters are bound positionally so
// user-supplied filter values never end up in the literal query text.
type Param struct {
	kind paramKind
	t    time.Time
	u    uint64
	i    int32
	s    string
}

func DateTimeParam(t time.Time) Param { return Param{kind: paramDateTime, t: t.UTC()} }
func UInt64Param(v uint64) Param      { return Param{kind: paramUInt64, u: v} }
func Int32Param(v int32) Param        { return Param{kind: paramInt32, i: v} }
func StringParam(v string) Param      { return Param{kind: paramString, s: v} }

// Render returns the canonical textual form: datetimes as
// "2006-01-02 15:04:05" in UTC, integers in decimal, strings verbatim.
func (p Param) Render() string {
	switch p.kind {
	case paramDateTime:
		return p.t.Format(dateTimeLayout)
	case paramUInt64:
		return strconv.FormatUint(p.u, 10)
	case paramInt32:
		return strconv.FormatInt(int64(p.i), 10)
	default:
		return p.s
	}
}

// Value returns what gets bound to the driver placeholder. Datetimes bind
// their rendered form since the templates wrap the placeholder in
// toDateTime(?, 'UTC'); everything else binds natively.
func (p Param) Value() any {
	switch p.kind {
	case paramDateTime:
		return p.Render()
	case paramUInt64:
		return p.u
	case paramInt32:
		return p.i
	default:
		return p.s
	}
}

func bindValues(params []Param) []any {
	if len(params) == 0 {
		return nil
	}
	args := make([]any, 0, len(params))
	for _, p := range params {
		args = append(args, p.Value())
	}
	return args
}

// placeholders renders "?, ?, ?" for n-element membership clauses.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func stringParams(values []string) []Param {
	params := make([]Param, 0, len(values))
	for _, v := range values {
		params = append(params, StringParam(v))
	}
	return params
}
