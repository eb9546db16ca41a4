package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FreddRva/posoqo-checkout/internal/document"
)

func ptr(f float64) *float64 { return &f }

func validForm() Form {
	return Form{
		GivenName:      "Rosa",
		FamilyName:     "Quispe",
		DocumentType:   document.TypeNationalID,
		DocumentNumber: "12345677",
		Phone:          "987654321",
	}
}

func TestComplete(t *testing.T) {
	p := Profile{GivenName: "Rosa", FamilyName: "Quispe", DocumentNumber: "12345677", Phone: "987654321"}
	assert.True(t, p.Complete())

	// address plays no part in completeness
	p.Address = ""
	assert.True(t, p.Complete())
	assert.False(t, p.HasAddress())

	p.Phone = ""
	assert.False(t, p.Complete())
}

func TestMergePrecedence(t *testing.T) {
	cached := CachedAddress{
		Address:          "Jr. Asamblea 123",
		AddressReference: "frente al parque",
		StreetNumber:     "123",
		Lat:              ptr(-13.15),
		Lng:              ptr(-74.22),
	}

	t.Run("remote wins over cache", func(t *testing.T) {
		remote := Profile{Address: "Av. Cusco 45", Lat: ptr(-13.2), Lng: ptr(-74.3)}
		got := Merge(remote, cached)
		assert.Equal(t, "Av. Cusco 45", got.Address)
		assert.Equal(t, -13.2, *got.Lat)
		// empty remote fields are filled from cache
		assert.Equal(t, "frente al parque", got.AddressReference)
	})

	t.Run("cache fills empty remote", func(t *testing.T) {
		got := Merge(Profile{}, cached)
		assert.Equal(t, "Jr. Asamblea 123", got.Address)
		assert.Equal(t, "123", got.StreetNumber)
		require.NotNil(t, got.Lat)
		assert.Equal(t, -13.15, *got.Lat)
	})

	t.Run("nothing yet stays zero", func(t *testing.T) {
		got := Merge(Profile{}, CachedAddress{})
		assert.Empty(t, got.Address)
		assert.Nil(t, got.Lat)
	})
}

func TestChosenLocation(t *testing.T) {
	assert.True(t, ChosenLocation(ptr(-13.15), ptr(-74.22)))
	assert.False(t, ChosenLocation(nil, ptr(-74.22)))
	assert.False(t, ChosenLocation(ptr(-13.15), nil))
	assert.False(t, ChosenLocation(ptr(PlaceholderLat), ptr(PlaceholderLng)))
	assert.False(t, ChosenLocation(ptr(math.NaN()), ptr(-74.22)))
	assert.False(t, ChosenLocation(ptr(-13.15), ptr(math.Inf(1))))
}

func TestDiffers(t *testing.T) {
	held := Profile{
		GivenName:      "Rosa",
		FamilyName:     "Quispe",
		DocumentType:   document.TypeNationalID,
		DocumentNumber: "12345677",
		Phone:          "987654321",
		Address:        "Jr. Asamblea 123",
		Lat:            ptr(-13.15),
		Lng:            ptr(-74.22),
	}

	same := Form{
		GivenName:      "Rosa",
		FamilyName:     "Quispe",
		DocumentType:   document.TypeNationalID,
		DocumentNumber: "12345677",
		Phone:          "987654321",
		Address:        "Jr. Asamblea 123",
		Lat:            ptr(-13.15),
		Lng:            ptr(-74.22),
	}
	assert.False(t, held.Differs(same))

	changedPhone := same
	changedPhone.Phone = "911111111"
	assert.True(t, held.Differs(changedPhone))

	movedMarker := same
	movedMarker.Lat, movedMarker.Lng = ptr(-13.16), ptr(-74.23)
	assert.True(t, held.Differs(movedMarker))

	// a form without coordinates does not count as a coordinate change
	noCoords := same
	noCoords.Lat, noCoords.Lng = nil, nil
	assert.False(t, held.Differs(noCoords))
}

func TestFormProfilePayload(t *testing.T) {
	f := validForm()
	f.DocumentNumber = "12.345.677"
	f.Lat, f.Lng = ptr(PlaceholderLat), ptr(PlaceholderLng)

	p := f.Profile()
	assert.Equal(t, "12345677", p.DocumentNumber, "payload carries the normalized number")
	assert.Nil(t, p.Lat, "placeholder coordinates are never sent")
	assert.Nil(t, p.Lng)

	f.Lat, f.Lng = ptr(-13.15), ptr(-74.22)
	p = f.Profile()
	require.NotNil(t, p.Lat)
	assert.Equal(t, -13.15, *p.Lat)
}

func TestValidateForm(t *testing.T) {
	v := NewValidator()

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, ValidateForm(v, validForm()))
	})

	t.Run("valid passport", func(t *testing.T) {
		f := validForm()
		f.DocumentType = document.TypePassport
		f.DocumentNumber = "AB12345678"
		assert.NoError(t, ValidateForm(v, f))
	})

	t.Run("short family name", func(t *testing.T) {
		f := validForm()
		f.FamilyName = "Q"
		err := ValidateForm(v, f)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		require.Len(t, verr.Fields, 1)
		assert.Equal(t, "last_name", verr.Fields[0].Field)
	})

	t.Run("family name with digits", func(t *testing.T) {
		f := validForm()
		f.FamilyName = "Quispe2"
		err := ValidateForm(v, f)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "last_name", verr.Fields[0].Field)
	})

	t.Run("bad checksum names document type", func(t *testing.T) {
		f := validForm()
		f.DocumentNumber = "12345678"
		err := ValidateForm(v, f)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		require.Len(t, verr.Fields, 1)
		assert.Equal(t, "document_number", verr.Fields[0].Field)
		assert.Contains(t, verr.Fields[0].Message, "NATIONAL_ID")
	})

	t.Run("phone too short", func(t *testing.T) {
		f := validForm()
		f.Phone = "12345"
		err := ValidateForm(v, f)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "phone", verr.Fields[0].Field)
	})

	t.Run("unknown document type", func(t *testing.T) {
		f := validForm()
		f.DocumentType = document.Type("DRIVER_LICENSE")
		err := ValidateForm(v, f)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "document_type", verr.Fields[0].Field)
	})

	t.Run("several failures reported together", func(t *testing.T) {
		f := Form{DocumentType: document.TypeNationalID, DocumentNumber: "12345677"}
		err := ValidateForm(v, f)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.GreaterOrEqual(t, len(verr.Fields), 3)
	})
}
