package domain

import (
	"fmt"
	"strings"
	"time"
)

// ContentKind enumerates the payloads a ticket can carry.
type ContentKind string

const (
	ContentKindVideo  ContentKind = "VIDEO"
	ContentKindLetter ContentKind = "LETTER"
)

// Valid reports whether k is a known content kind.
func (k ContentKind) Valid() bool {
	return k == ContentKindVideo || k == ContentKindLetter
}

// BindingState is the raw lifecycle state of a ticket.
type BindingState string

const (
	BindingStateUnbound     BindingState = "UNBOUND"
	BindingStateBoundLocked BindingState = "BOUND_LOCKED"
	BindingStateBoundOpen   BindingState = "BOUND_OPEN"
)

// AssetReference points at an uploaded object in the asset store.
type AssetReference struct {
	StorageKey string `json:"storage_key"`
	URL        string `json:"url"`
	FileName   string `json:"file_name,omitempty"`
	MimeType   string `json:"mime_type,omitempty"`
	SizeBytes  int64  `json:"size_bytes,omitempty"`
	Checksum   string `json:"checksum,omitempty"`
}

// Letter is a written message bound to a ticket. Theme is cosmetic.
type Letter struct {
	SenderName string          `json:"sender_name"`
	Body       string          `json:"body"`
	Theme      string          `json:"theme,omitempty"`
	Image      *AssetReference `json:"image,omitempty"`
}

// Content is the single payload bound to a ticket: exactly one of Video or Letter.
type Content struct {
	Kind   ContentKind     `json:"kind"`
	Video  *AssetReference `json:"video,omitempty"`
	Letter *Letter         `json:"letter,omitempty"`
}

// Validate checks that exactly the payload matching Kind is present.
func (c *Content) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: content required", ErrInvalidInput)
	}
	switch c.Kind {
	case ContentKindVideo:
		if c.Letter != nil {
			return fmt.Errorf("%w: video content cannot carry a letter", ErrInvalidInput)
		}
		if c.Video == nil || strings.TrimSpace(c.Video.URL) == "" {
			return fmt.Errorf("%w: video reference requires a url", ErrInvalidInput)
		}
	case ContentKindLetter:
		if c.Video != nil {
			return fmt.Errorf("%w: letter content cannot carry a video", ErrInvalidInput)
		}
		if c.Letter == nil {
			return fmt.Errorf("%w: letter body required", ErrInvalidInput)
		}
		if strings.TrimSpace(c.Letter.SenderName) == "" || strings.TrimSpace(c.Letter.Body) == "" {
			return fmt.Errorf("%w: letter requires sender_name and body", ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unknown content kind %q", ErrInvalidInput, c.Kind)
	}
	return nil
}

// Assets lists the stored objects referenced by the content.
func (c *Content) Assets() []AssetReference {
	if c == nil {
		return nil
	}
	var refs []AssetReference
	if c.Video != nil && c.Video.StorageKey != "" {
		refs = append(refs, *c.Video)
	}
	if c.Letter != nil && c.Letter.Image != nil && c.Letter.Image.StorageKey != "" {
		refs = append(refs, *c.Letter.Image)
	}
	return refs
}

// Ticket is the aggregate identified by a shareable code.
type Ticket struct {
	Code      string
	BatchID   *string
	Content   *Content
	UnlockAt  *time.Time
	Visible   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsBound reports whether content is attached.
func (t *Ticket) IsBound() bool {
	return t != nil && t.Content != nil
}

// TicketPredicate selects tickets for bulk operations and listings.
type TicketPredicate string

const (
	PredicateBound   TicketPredicate = "BOUND"
	PredicateUnbound TicketPredicate = "UNBOUND"
	PredicateAll     TicketPredicate = "ALL"
)

// ParseTicketPredicate accepts bound, unbound or all in any case.
func ParseTicketPredicate(raw string) (TicketPredicate, error) {
	switch p := TicketPredicate(strings.ToUpper(strings.TrimSpace(raw))); p {
	case PredicateBound, PredicateUnbound, PredicateAll:
		return p, nil
	default:
		return "", fmt.Errorf("%w: unknown ticket predicate %q", ErrInvalidInput, raw)
	}
}

// Matches reports whether the ticket satisfies the predicate.
func (p TicketPredicate) Matches(t *Ticket) bool {
	switch p {
	case PredicateBound:
		return t.IsBound()
	case PredicateUnbound:
		return !t.IsBound()
	case PredicateAll:
		return true
	}
	return false
}
