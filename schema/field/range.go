package field

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Range is a contiguous interval of values. A nil bound is unbounded.
type Range struct {
	Lower          any
	Upper          any
	LowerInclusive bool
	UpperInclusive bool
	Empty          bool
}

// NewRange returns the half-open range [lo, hi).
func NewRange(lo, hi any) Range {
	return Range{Lower: lo, Upper: hi, LowerInclusive: true}
}

// String renders the range in the Postgres text form, e.g. [1,5).
func (r Range) String() string {
	if r.Empty {
		return "empty"
	}
	var b strings.Builder
	if r.LowerInclusive && r.Lower != nil {
		b.WriteByte('[')
	} else {
		b.WriteByte('(')
	}
	b.WriteString(rangeBound(r.Lower))
	b.WriteByte(',')
	b.WriteString(rangeBound(r.Upper))
	if r.UpperInclusive && r.Upper != nil {
		b.WriteByte(']')
	} else {
		b.WriteByte(')')
	}
	return b.String()
}

// Value implements the driver.Valuer interface.
func (r Range) Value() (driver.Value, error) {
	return r.String(), nil
}

func rangeBound(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case time.Time:
		return strconv.Quote(v.Format(timestampLayout))
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// ParseRange parses the Postgres text form of a range. Bounds are
// deserialized with elem.
func ParseRange(s string, elem *TypeInfo, loc *time.Location) (Range, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "empty") {
		return Range{Empty: true}, nil
	}
	if len(s) < 3 || !strings.ContainsRune("[(", rune(s[0])) || !strings.ContainsRune("])", rune(s[len(s)-1])) {
		return Range{}, fmt.Errorf("field: invalid range %q", s)
	}
	body := s[1 : len(s)-1]
	i := strings.IndexByte(body, ',')
	if i < 0 {
		return Range{}, fmt.Errorf("field: invalid range %q", s)
	}
	r := Range{LowerInclusive: s[0] == '[', UpperInclusive: s[len(s)-1] == ']'}
	var err error
	if r.Lower, err = parseBound(body[:i], elem, loc); err != nil {
		return Range{}, err
	}
	if r.Upper, err = parseBound(body[i+1:], elem, loc); err != nil {
		return Range{}, err
	}
	if r.Lower == nil {
		r.LowerInclusive = false
	}
	if r.Upper == nil {
		r.UpperInclusive = false
	}
	return r, nil
}

func parseBound(s string, elem *TypeInfo, loc *time.Location) (any, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if unq, err := strconv.Unquote(s); err == nil {
		s = unq
	}
	if elem == nil {
		return s, nil
	}
	return Deserialize(s, elem, loc)
}

// GeoJSON is a geometry value in GeoJSON form.
type GeoJSON struct {
	Type        string `json:"type"`
	Coordinates any    `json:"coordinates"`
}

// Point returns a GeoJSON point.
func Point(x, y float64) GeoJSON {
	return GeoJSON{Type: "Point", Coordinates: []any{x, y}}
}

// Text returns the GeoJSON text of g.
func (g GeoJSON) Text() (string, error) {
	if g.Type == "" {
		return "", errors.New("field: geometry without type")
	}
	b, err := json.Marshal(g)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
