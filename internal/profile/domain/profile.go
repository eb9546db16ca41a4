// Package domain models the delivery profile: the identity and address
// data collected during the profile step of checkout.
package domain

import (
	"math"

	"github.com/FreddRva/posoqo-checkout/internal/document"
)

// Placeholder coordinates mean "no location chosen yet": the map opens
// centered here and these values are never persisted as a real location.
const (
	PlaceholderLat = -12.0464
	PlaceholderLng = -77.0428
)

// Profile is the canonical delivery profile. The remote record is the
// source of truth; the cached address is a fallback until it responds.
type Profile struct {
	GivenName        string        `json:"name"`
	FamilyName       string        `json:"last_name"`
	DocumentType     document.Type `json:"document_type"`
	DocumentNumber   string        `json:"document_number"`
	Phone            string        `json:"phone"`
	Address          string        `json:"address"`
	AddressReference string        `json:"address_reference"`
	StreetNumber     string        `json:"street_number"`
	Lat              *float64      `json:"lat,omitempty"`
	Lng              *float64      `json:"lng,omitempty"`
}

// Complete reports whether the identity fields are filled. Address state
// is deliberately excluded: it is tracked for display but never gates the
// step transition, since the delivery location can still be supplied as a
// plain string at order time.
func (p Profile) Complete() bool {
	return p.GivenName != "" && p.FamilyName != "" && p.DocumentNumber != "" && p.Phone != ""
}

// HasAddress reports the informational address completeness.
func (p Profile) HasAddress() bool {
	return p.Address != ""
}

// CachedAddress is the address fragment mirrored to the storefront cache
// after a confirmed save.
type CachedAddress struct {
	Address          string   `json:"address"`
	AddressReference string   `json:"address_reference"`
	StreetNumber     string   `json:"street_number"`
	Lat              *float64 `json:"lat,omitempty"`
	Lng              *float64 `json:"lng,omitempty"`
}

// Merge resolves the three-source precedence in one place: remote fields
// win, cached fields fill whatever the remote left empty, and absent data
// stays zero. Form state is layered on top by the caller as the user types.
func Merge(remote Profile, cached CachedAddress) Profile {
	out := remote
	if out.Address == "" {
		out.Address = cached.Address
	}
	if out.AddressReference == "" {
		out.AddressReference = cached.AddressReference
	}
	if out.StreetNumber == "" {
		out.StreetNumber = cached.StreetNumber
	}
	if out.Lat == nil && out.Lng == nil && cached.Lat != nil && cached.Lng != nil {
		out.Lat, out.Lng = cached.Lat, cached.Lng
	}
	return out
}

// AddressFragment extracts the cacheable address fields.
func (p Profile) AddressFragment() CachedAddress {
	return CachedAddress{
		Address:          p.Address,
		AddressReference: p.AddressReference,
		StreetNumber:     p.StreetNumber,
		Lat:              p.Lat,
		Lng:              p.Lng,
	}
}

// ChosenLocation reports whether the pair is a real user-chosen location:
// both present, both finite and not the placeholder.
func ChosenLocation(lat, lng *float64) bool {
	if lat == nil || lng == nil {
		return false
	}
	if math.IsNaN(*lat) || math.IsInf(*lat, 0) || math.IsNaN(*lng) || math.IsInf(*lng, 0) {
		return false
	}
	if *lat == PlaceholderLat && *lng == PlaceholderLng {
		return false
	}
	return true
}

// Form is the submitted profile form, the third reconciliation source.
type Form struct {
	GivenName        string        `json:"name" validate:"required"`
	FamilyName       string        `json:"last_name" validate:"required,min=2,alphaunicode"`
	DocumentType     document.Type `json:"document_type" validate:"required,oneof=NATIONAL_ID FOREIGN_ID PASSPORT"`
	DocumentNumber   string        `json:"document_number" validate:"required,min=8,max=12"`
	Phone            string        `json:"phone" validate:"required,min=6,max=20"`
	Address          string        `json:"address"`
	AddressReference string        `json:"address_reference"`
	StreetNumber     string        `json:"street_number"`
	Lat              *float64      `json:"lat,omitempty"`
	Lng              *float64      `json:"lng,omitempty"`
}

// Differs is the change detection that decides whether a save issues a
// write at all. Coordinates take part only when both sides carry a pair.
func (p Profile) Differs(f Form) bool {
	if p.GivenName != f.GivenName ||
		p.FamilyName != f.FamilyName ||
		p.DocumentType != f.DocumentType ||
		p.DocumentNumber != f.DocumentNumber ||
		p.Phone != f.Phone ||
		p.Address != f.Address ||
		p.AddressReference != f.AddressReference ||
		p.StreetNumber != f.StreetNumber {
		return true
	}
	if f.Lat != nil && f.Lng != nil && p.Lat != nil && p.Lng != nil {
		if *f.Lat != *p.Lat || *f.Lng != *p.Lng {
			return true
		}
	}
	return false
}

// Profile builds the upsert payload. Coordinates ride along only when they
// are a real chosen location.
func (f Form) Profile() Profile {
	p := Profile{
		GivenName:        f.GivenName,
		FamilyName:       f.FamilyName,
		DocumentType:     f.DocumentType,
		DocumentNumber:   document.Normalize(f.DocumentNumber),
		Phone:            f.Phone,
		Address:          f.Address,
		AddressReference: f.AddressReference,
		StreetNumber:     f.StreetNumber,
	}
	if ChosenLocation(f.Lat, f.Lng) {
		p.Lat, p.Lng = f.Lat, f.Lng
	}
	return p
}
