package value

import (
	"strconv"
	"strings"
	"time"
)

// Time is a point in time. Set accepts RFC3339 or Unix seconds, String
// always writes RFC3339 in UTC.
type Time time.Time

func NewTime(p *time.Time, val time.Time) *Time {
	*p = val

	return (*Time)(p)
}

func (u *Time) Set(val string) error {
	val = strings.TrimSpace(val)

	if sec, err := strconv.ParseInt(val, 10, 64); err == nil {
		*u = Time(time.Unix(sec, 0).UTC())
		return nil
	}

	v, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return err
	}

	*u = Time(v)

	return nil
}

func (u *Time) String() string {
	return time.Time(*u).UTC().Format(time.RFC3339)
}

func (u *Time) Validate() error {
	return nil
}

func (u *Time) IsEmpty() bool {
	return time.Time(*u).IsZero()
}
