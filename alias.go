package aliascache

import (
	"strconv"
	"time"
)

// ID identifies an alias record. Valid IDs are positive.
type ID int64

func (id ID) String() string { return strconv.FormatInt(int64(id), 10) }

// AliasID lets a bare ID be passed wherever a Ref is accepted.
func (id ID) AliasID() ID { return id }

// Alias maps an alternate domain to a site. Only ID is interpreted by the cache.
type Alias struct {
	ID      ID        `json:"id" msgpack:"id" cbor:"id"`
	SiteID  int64     `json:"site_id" msgpack:"site_id" cbor:"site_id"`
	Domain  string    `json:"domain" msgpack:"domain" cbor:"domain"`
	Status  string    `json:"status" msgpack:"status" cbor:"status"`
	Created time.Time `json:"created" msgpack:"created" cbor:"created"`
}

func (a Alias) AliasID() ID { return a.ID }

// Ref is either an ID or an Alias handle.
type Ref interface {
	AliasID() ID
}

// IDs returns the IDs of aliases in order.
func IDs(aliases []Alias) []ID {
	out := make([]ID, len(aliases))
	for i, a := range aliases {
		out[i] = a.ID
	}
	return out
}
