package value

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// string

type String string

func NewString(p *string, val string) *String {
	*p = val

	return (*String)(p)
}

func (s *String) Set(val string) error {
	*s = String(val)
	return nil
}

func (s *String) String() string {
	return string(*s)
}

func (s *String) Validate() error {
	return nil
}

func (s *String) IsEmpty() bool {
	return len(string(*s)) == 0
}

// list of strings, e.g. log topics

type StringList struct {
	p         *[]string
	separator string
}

func NewStringList(p *[]string, val []string, separator string) *StringList {
	*p = val

	return &StringList{
		p:         p,
		separator: separator,
	}
}

// Set splits val by the separator. Empty elements and duplicates are dropped.
func (s *StringList) Set(val string) error {
	list := []string{}
	seen := map[string]struct{}{}

	for _, elm := range strings.Split(val, s.separator) {
		elm = strings.TrimSpace(elm)
		if len(elm) == 0 {
			continue
		}

		if _, ok := seen[elm]; ok {
			continue
		}

		seen[elm] = struct{}{}
		list = append(list, elm)
	}

	*s.p = list

	return nil
}

func (s *StringList) String() string {
	if s.IsEmpty() {
		return "(empty)"
	}

	return strings.Join(*s.p, s.separator)
}

func (s *StringList) Validate() error {
	return nil
}

func (s *StringList) IsEmpty() bool {
	return len(*s.p) == 0
}

// boolean

type Bool bool

func NewBool(p *bool, val bool) *Bool {
	*p = val

	return (*Bool)(p)
}

func (b *Bool) Set(val string) error {
	v, err := strconv.ParseBool(strings.TrimSpace(val))
	if err != nil {
		return err
	}

	*b = Bool(v)

	return nil
}

func (b *Bool) String() string {
	return strconv.FormatBool(bool(*b))
}

func (b *Bool) Validate() error {
	return nil
}

func (b *Bool) IsEmpty() bool {
	return !bool(*b)
}

// int with optional bounds

type Int struct {
	p        *int
	min, max int
	bounded  bool
}

// NewInt binds an unbounded int.
func NewInt(p *int, val int) *Int {
	*p = val

	return &Int{p: p}
}

// NewIntRange binds an int that has to be in [min, max].
func NewIntRange(p *int, val, min, max int) *Int {
	*p = val

	return &Int{
		p:       p,
		min:     min,
		max:     max,
		bounded: true,
	}
}

func (i *Int) Set(val string) error {
	v, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return err
	}

	*i.p = v

	return nil
}

func (i *Int) String() string {
	return strconv.Itoa(*i.p)
}

func (i *Int) Validate() error {
	if !i.bounded {
		return nil
	}

	if *i.p < i.min || *i.p > i.max {
		return fmt.Errorf("must be between %d and %d", i.min, i.max)
	}

	return nil
}

func (i *Int) IsEmpty() bool {
	return *i.p == 0
}

// int64

type Int64 int64

func NewInt64(p *int64, val int64) *Int64 {
	*p = val

	return (*Int64)(p)
}

func (u *Int64) Set(val string) error {
	v, err := strconv.ParseInt(strings.TrimSpace(val), 0, 64)
	if err != nil {
		return err
	}

	*u = Int64(v)

	return nil
}

func (u *Int64) String() string {
	return strconv.FormatInt(int64(*u), 10)
}

func (u *Int64) Validate() error {
	return nil
}

func (u *Int64) IsEmpty() bool {
	return int64(*u) == 0
}

// Seconds is a non-negative number of seconds. Set accepts a plain number or
// a duration like "5m". Fractions of a second are truncated.
type Seconds int64

func NewSeconds(p *int64, val int64) *Seconds {
	*p = val

	return (*Seconds)(p)
}

func (u *Seconds) Set(val string) error {
	val = strings.TrimSpace(val)

	if v, err := strconv.ParseInt(val, 10, 64); err == nil {
		*u = Seconds(v)
		return nil
	}

	d, err := time.ParseDuration(val)
	if err != nil {
		return fmt.Errorf("invalid number of seconds or duration: %s", val)
	}

	*u = Seconds(d / time.Second)

	return nil
}

func (u *Seconds) String() string {
	return strconv.FormatInt(int64(*u), 10)
}

func (u *Seconds) Validate() error {
	if int64(*u) < 0 {
		return fmt.Errorf("must be equal or greater than 0")
	}

	return nil
}

func (u *Seconds) IsEmpty() bool {
	return int64(*u) == 0
}

// Enum is a string that has to be one of the allowed values.
type Enum struct {
	p       *string
	allowed []string
}

func NewEnum(p *string, val string, allowed []string) *Enum {
	*p = val

	return &Enum{
		p:       p,
		allowed: allowed,
	}
}

func (e *Enum) Set(val string) error {
	*e.p = strings.ToLower(strings.TrimSpace(val))
	return nil
}

func (e *Enum) String() string {
	return *e.p
}

func (e *Enum) Validate() error {
	for _, a := range e.allowed {
		if *e.p == a {
			return nil
		}
	}

	return fmt.Errorf("must be one of: %s", strings.Join(e.allowed, ", "))
}

func (e *Enum) IsEmpty() bool {
	return len(*e.p) == 0
}
