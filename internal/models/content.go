package models

import "sort"

// Channel is a presentation surface with its own word-count limit.
type Channel string

const (
	ChannelDesktop Channel = "desktop"
	ChannelMobile  Channel = "mobile"
)

// ChannelLimits maps each configured channel to its word limit.
// A nil limit means the channel is configured but unbounded.
type ChannelLimits map[Channel]*int

// Limit returns a pointer to n, for building ChannelLimits literals.
func Limit(n int) *int { return &n }

// Channels returns the configured channels sorted by name.
func (l ChannelLimits) Channels() []Channel {
	chans := make([]Channel, 0, len(l))
	for c := range l {
		chans = append(chans, c)
	}
	sort.Slice(chans, func(i, j int) bool { return chans[i] < chans[j] })
	return chans
}

// Clone returns a deep copy of the limits.
func (l ChannelLimits) Clone() ChannelLimits {
	if l == nil {
		return nil
	}
	out := make(ChannelLimits, len(l))
	for c, v := range l {
		if v != nil {
			out[c] = Limit(*v)
		} else {
			out[c] = nil
		}
	}
	return out
}

// ContentItem is one draft submitted to a review round. It is treated as
// immutable: a revision produces a new ContentItem.
type ContentItem struct {
	Text          string
	ChannelLimits ChannelLimits
}

// NewContentItem copies limits so later changes by the caller do not leak in.
func NewContentItem(text string, limits ChannelLimits) ContentItem {
	return ContentItem{Text: text, ChannelLimits: limits.Clone()}
}

// ChannelDefault keys the Composer's draft when no channels are configured.
const ChannelDefault Channel = "default"
