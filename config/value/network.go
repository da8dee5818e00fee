package value

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
)

var portRegexp = regexp.MustCompile("^[0-9]+$")

// Address is a host:port pair. A bare port number is expanded to ":port".
// An optional address may be empty, e.g. to disable a listener.
type Address struct {
	p        *string
	required bool
}

// NewAddress binds an optional address.
func NewAddress(p *string, val string) *Address {
	*p = val

	return &Address{p: p}
}

// NewMustAddress binds an address that must not be empty.
func NewMustAddress(p *string, val string) *Address {
	*p = val

	return &Address{p: p, required: true}
}

func (s *Address) Set(val string) error {
	val = strings.TrimSpace(val)

	if portRegexp.MatchString(val) {
		val = ":" + val
	}

	*s.p = val

	return nil
}

func (s *Address) String() string {
	return *s.p
}

func (s *Address) Validate() error {
	if len(*s.p) == 0 {
		if s.required {
			return fmt.Errorf("the address must not be empty")
		}

		return nil
	}

	return validateAddress(*s.p)
}

func (s *Address) IsEmpty() bool {
	return len(*s.p) == 0
}

func validateAddress(address string) error {
	_, port, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}

	if !portRegexp.MatchString(port) {
		return fmt.Errorf("the port must be numerical")
	}

	if p, err := strconv.Atoi(port); err != nil || p > 65535 {
		return fmt.Errorf("the port must be between 0 and 65535")
	}

	return nil
}
