package detector

import (
	"fmt"
	"strconv"
	"strings"
)

// ObjectIdentity names one materialized record for the lifetime of a unit of
// work. It never points at the record itself, so tracking a row never keeps
// it alive.
type ObjectIdentity struct {
	Class string
	Key   string
}

// instanceKeyPrefix marks keys derived from an instance address rather than
// from a primary key.
const instanceKeyPrefix = "@"

// NewIdentity builds an identity from a class name and its primary key
// values. Composite keys are joined in the order given. A nil key yields the
// zero identity.
func NewIdentity(class string, keys ...any) ObjectIdentity {
	if class == "" || len(keys) == 0 {
		return ObjectIdentity{}
	}

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == nil {
			return ObjectIdentity{}
		}
		parts = append(parts, formatKey(k))
	}
	return ObjectIdentity{Class: class, Key: strings.Join(parts, ",")}
}

// InstanceIdentity is the fallback for records without a usable primary key.
func InstanceIdentity(class string, addr uintptr) ObjectIdentity {
	if class == "" || addr == 0 {
		return ObjectIdentity{}
	}
	return ObjectIdentity{Class: class, Key: instanceKeyPrefix + strconv.FormatUint(uint64(addr), 16)}
}

// IsZero reports whether the identity is unusable for bookkeeping.
func (id ObjectIdentity) IsZero() bool {
	return id.Class == "" || id.Key == ""
}

// IsInstance reports whether the identity came from InstanceIdentity.
func (id ObjectIdentity) IsInstance() bool {
	return strings.HasPrefix(id.Key, instanceKeyPrefix)
}

func (id ObjectIdentity) String() string {
	return id.Class + ":" + id.Key
}

func formatKey(k any) string {
	switch v := k.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
