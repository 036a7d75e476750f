package client

import (
	"fmt"
	"log/slog"
	"sort"
	"testing"

	"github.com/caretech-io/dicomgate/types"
)

func TestTransferSyntaxCompatible(t *testing.T) {
	tests := []struct {
		name       string
		preferred  string
		instanceTS string
		want       bool
	}{
		{
			name:       "generic to generic",
			preferred:  types.ImplicitVRLittleEndian,
			instanceTS: types.ExplicitVRLittleEndian,
			want:       true,
		},
		{
			name:       "same specific",
			preferred:  types.JPEGBaseline8Bit,
			instanceTS: types.JPEGBaseline8Bit,
			want:       true,
		},
		{
			name:       "generic to specific",
			preferred:  types.ImplicitVRLittleEndian,
			instanceTS: types.JPEGBaseline8Bit,
			want:       false,
		},
		{
			name:       "specific to generic",
			preferred:  types.JPEGBaseline8Bit,
			instanceTS: types.ExplicitVRLittleEndian,
			want:       false,
		},
		{
			name:       "different specific",
			preferred:  types.JPEGBaseline8Bit,
			instanceTS: types.JPEG2000,
			want:       false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := transferSyntaxCompatible(tt.preferred, tt.instanceTS); got != tt.want {
				t.Errorf("transferSyntaxCompatible(%s, %s) = %v, want %v", tt.preferred, tt.instanceTS, got, tt.want)
			}
		})
	}
}

func newRegistrationAssociation() *Association {
	return &Association{
		logger:            slog.Default(),
		defaultSOPClasses: append([]string(nil), defaultStorageSOPClasses...),
	}
}

func TestRegisterStorageClass_AlreadyKnown(t *testing.T) {
	assoc := newRegistrationAssociation()

	if assoc.RegisterStorageClass(types.CTImageStorage) {
		t.Error("registering a default class should not change the set")
	}
	if assoc.RegisterStorageClass(types.VerificationSOPClass) {
		t.Error("registering a reserved class should not change the set")
	}
}

func TestRegisterStorageClass_CeilingInvariant(t *testing.T) {
	assoc := newRegistrationAssociation()

	// Push far past the ceiling with synthetic storage classes; the
	// invariant must hold after every single registration.
	for i := 0; i < 80; i++ {
		uid := syntheticUID(i)
		assoc.RegisterStorageClass(uid)

		total := len(reservedSOPClasses) + len(assoc.explicitSOPClass) + len(assoc.defaultSOPClasses)
		if len(reservedSOPClasses)+len(assoc.explicitSOPClass) <= maxSOPClasses && total > maxSOPClasses {
			t.Fatalf("after %d registrations: reserved+explicit+default = %d exceeds %d", i+1, total, maxSOPClasses)
		}
	}
}

func TestRegisterStorageClass_EvictsHighestUIDFirst(t *testing.T) {
	assoc := newRegistrationAssociation()

	sorted := append([]string(nil), defaultStorageSOPClasses...)
	sort.Strings(sorted)
	highest := sorted[len(sorted)-1]

	// Fill explicit registrations until exactly one default class must go.
	needed := maxSOPClasses - len(reservedSOPClasses) - len(defaultStorageSOPClasses) + 1
	for i := 0; i < needed; i++ {
		assoc.RegisterStorageClass(syntheticUID(i))
	}

	if len(assoc.defaultSOPClasses) != len(defaultStorageSOPClasses)-1 {
		t.Fatalf("default set size = %d, want %d", len(assoc.defaultSOPClasses), len(defaultStorageSOPClasses)-1)
	}
	for _, c := range assoc.defaultSOPClasses {
		if c == highest {
			t.Fatalf("lexicographically highest default %s was not evicted first", highest)
		}
	}
}

func TestRegisterStorageClass_ClearsDefaultsPastCeiling(t *testing.T) {
	assoc := newRegistrationAssociation()

	for i := 0; i <= maxSOPClasses-len(reservedSOPClasses); i++ {
		assoc.RegisterStorageClass(syntheticUID(i))
	}

	if len(assoc.defaultSOPClasses) != 0 {
		t.Errorf("default set should be cleared when reserved+explicit exceed the ceiling, %d left", len(assoc.defaultSOPClasses))
	}
}

func syntheticUID(i int) string {
	return fmt.Sprintf("1.2.840.999.1.%03d", i)
}
