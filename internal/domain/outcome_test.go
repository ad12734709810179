package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateApprovalOutcome(t *testing.T) {
	valid := func() *ApprovalOutcome {
		return &ApprovalOutcome{
			SourceReference: "sag-2026-204",
			Municipality:    "Aalborg",
			DocumentType:    DocumentTypeBSR,
			ApprovalSpeed:   ApprovalSpeedFast,
			GoldenPatterns:  []string{"Brandsektionering pr. 600 m2 med BS-60 vægge"},
		}
	}

	t.Run("valid outcome", func(t *testing.T) {
		require.NoError(t, ValidateApprovalOutcome(valid()))
	})

	t.Run("elements alone are sufficient", func(t *testing.T) {
		o := valid()
		o.GoldenPatterns = nil
		o.SuccessfulElements = []SuccessfulElement{
			{Aspect: "redningsåbninger", Reason: "dimensioneret efter BR18 § 55", Replicable: true},
		}
		require.NoError(t, ValidateApprovalOutcome(o))
	})

	t.Run("nil outcome", func(t *testing.T) {
		err := ValidateApprovalOutcome(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot be nil")
	})

	t.Run("missing source reference", func(t *testing.T) {
		o := valid()
		o.SourceReference = ""
		err := ValidateApprovalOutcome(o)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SourceReference is required")
	})

	t.Run("no patterns and no elements", func(t *testing.T) {
		o := valid()
		o.GoldenPatterns = nil
		o.SuccessfulElements = nil
		err := ValidateApprovalOutcome(o)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "at least one pattern or element")
	})

	t.Run("invalid document type", func(t *testing.T) {
		o := valid()
		o.DocumentType = "letter"
		err := ValidateApprovalOutcome(o)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DocumentType is invalid")
	})

	t.Run("empty document type is allowed", func(t *testing.T) {
		o := valid()
		o.DocumentType = ""
		require.NoError(t, ValidateApprovalOutcome(o))
	})
}

func TestValidateRejectionOutcome(t *testing.T) {
	valid := func() *RejectionOutcome {
		return &RejectionOutcome{
			SourceReference:     "sag-2026-205",
			Municipality:        "Aalborg",
			NegativeConstraints: []string{"Fælles flugtvej gennem kælder uden selvstændig brandsektion"},
		}
	}

	t.Run("valid outcome", func(t *testing.T) {
		require.NoError(t, ValidateRejectionOutcome(valid()))
	})

	t.Run("reasons alone are sufficient", func(t *testing.T) {
		o := valid()
		o.NegativeConstraints = nil
		o.RejectionReasons = []RejectionReason{
			{SpecificIssue: "flugtvejsbredde under 1,3 m", Severity: SeverityCritical},
		}
		require.NoError(t, ValidateRejectionOutcome(o))
	})

	t.Run("nil outcome", func(t *testing.T) {
		err := ValidateRejectionOutcome(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot be nil")
	})

	t.Run("missing source reference", func(t *testing.T) {
		o := valid()
		o.SourceReference = ""
		err := ValidateRejectionOutcome(o)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SourceReference is required")
	})

	t.Run("no constraints and no reasons", func(t *testing.T) {
		o := valid()
		o.NegativeConstraints = nil
		o.RejectionReasons = nil
		err := ValidateRejectionOutcome(o)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "at least one constraint or reason")
	})

	t.Run("invalid document type", func(t *testing.T) {
		o := valid()
		o.DocumentType = "letter"
		err := ValidateRejectionOutcome(o)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DocumentType is invalid")
	})
}
