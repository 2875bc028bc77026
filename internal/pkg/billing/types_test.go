package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCheckoutMetadata(t *testing.T) {
	tests := []struct {
		name    string
		md      map[string]string
		want    CheckoutMetadata
		wantErr bool
	}{
		{
			name: "full envelope",
			md: map[string]string{
				"user_id":     "42",
				"juku_id":     "7",
				"school_code": "tokyo-01",
				"locale":      "ja",
				"plan":        "subscription",
			},
			want: CheckoutMetadata{
				UserID:     42,
				JukuID:     7,
				SchoolCode: "tokyo-01",
				Locale:     "ja",
				Plan:       "subscription",
			},
		},
		{
			name: "user only",
			md:   map[string]string{"user_id": "1"},
			want: CheckoutMetadata{UserID: 1},
		},
		{
			name:    "missing user_id",
			md:      map[string]string{"plan": "subscription"},
			wantErr: true,
		},
		{
			name:    "unparsable user_id",
			md:      map[string]string{"user_id": "abc"},
			wantErr: true,
		},
		{
			name:    "zero user_id",
			md:      map[string]string{"user_id": "0"},
			wantErr: true,
		},
		{
			name: "malformed juku_id is ignored",
			md:   map[string]string{"user_id": "5", "juku_id": "not-a-number"},
			want: CheckoutMetadata{UserID: 5},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeCheckoutMetadata(tc.md)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrMissingMetadata)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCheckoutMetadataEncodeRoundTrip(t *testing.T) {
	in := CheckoutMetadata{
		UserID:     42,
		JukuID:     7,
		SchoolCode: "tokyo-01",
		Locale:     "ja",
		Plan:       "subscription",
	}

	out, err := DecodeCheckoutMetadata(in.Encode())
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestCheckoutMetadataEncodeOmitsOptionalKeys(t *testing.T) {
	md := CheckoutMetadata{UserID: 1, Locale: "en", Plan: "onetime"}.Encode()

	assert.Equal(t, "1", md["user_id"])
	assert.NotContains(t, md, "juku_id")
	assert.NotContains(t, md, "school_code")
}
