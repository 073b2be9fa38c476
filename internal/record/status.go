package record

import "sort"

// Tip is the highest known record of a chain.
type Tip struct {
	Idx Idx `json:"idx"`
	ID  ID  `json:"id"`
}

// Status maps every known chain to its tip. It is computed on demand from a
// store and never persisted.
type Status map[HostID]map[Tag]Tip

// NewStatus returns an empty status.
func NewStatus() Status {
	return Status{}
}

// Set records the tip of (host, tag).
func (s Status) Set(host HostID, tag Tag, tip Tip) {
	tags, ok := s[host]
	if !ok {
		tags = map[Tag]Tip{}
		s[host] = tags
	}
	tags[tag] = tip
}

// Get returns the tip of (host, tag) and whether the chain is known.
func (s Status) Get(host HostID, tag Tag) (Tip, bool) {
	tags, ok := s[host]
	if !ok {
		return Tip{}, false
	}
	tip, ok := tags[tag]
	return tip, ok
}

// Chains returns every chain in the status, sorted by host then tag.
func (s Status) Chains() []ChainKey {
	var keys []ChainKey
	for host, tags := range s {
		for tag := range tags {
			keys = append(keys, ChainKey{Host: host, Tag: tag})
		}
	}
	SortChains(keys)
	return keys
}

// Len returns the number of chains.
func (s Status) Len() int {
	n := 0
	for _, tags := range s {
		n += len(tags)
	}
	return n
}

// SortChains orders chain keys by host then tag.
func SortChains(keys []ChainKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Host != keys[j].Host {
			return keys[i].Host < keys[j].Host
		}
		return keys[i].Tag < keys[j].Tag
	})
}
