package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmacy-pos/internal/core"
)

func warningKinds(ws []core.PrescriptionWarning) []core.WarningKind {
	out := make([]core.WarningKind, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Kind)
	}
	return out
}

func TestResolvePrescription(t *testing.T) {
	t.Run("clamps to stock with a partial fulfillment warning", func(t *testing.T) {
		f := newFixture(t)
		p := f.addTablets(t, "Amoxicillin 500mg", 30)

		res, err := f.resolver.Resolve(f.ctx, &core.Prescription{
			PatientName: "Jane", PatientPhone: "0700",
			Items: []core.PrescriptionItem{{Medicine: "amoxicillin", Dosage: "2 tablets", Frequency: "three times daily", Duration: "7 days"}},
		})
		require.NoError(t, err)

		require.Len(t, res.Lines, 1)
		assert.Equal(t, p.ID, res.Lines[0].ProductID)
		assert.Equal(t, core.UnitTablet, res.Lines[0].UnitType, "smallest unit is used")
		assert.Equal(t, int64(30), res.Lines[0].Quantity)

		require.Len(t, res.Warnings, 1)
		w := res.Warnings[0]
		assert.Equal(t, core.WarningPartialFulfillment, w.Kind)
		assert.Equal(t, int64(42), w.Required)
		assert.Equal(t, int64(30), w.Fulfilled)
		assert.Equal(t, int64(30), f.stock(t, p.ID), "resolution never touches stock")
	})

	t.Run("unknown and out of stock medicines warn without blocking others", func(t *testing.T) {
		f := newFixture(t)
		f.addTablets(t, "Paracetamol 500mg", 100)
		f.addTablets(t, "Loratadine 10mg", 0)

		res, err := f.resolver.Resolve(f.ctx, &core.Prescription{
			Items: []core.PrescriptionItem{
				{Medicine: "Unobtainium", Dosage: "1", Frequency: "daily", Duration: "5 days"},
				{Medicine: "Loratadine", Dosage: "1", Frequency: "daily", Duration: "5 days"},
				{Medicine: "paracetamol 500mg tablets", Dosage: "2", Frequency: "every 6 hours", Duration: "3 days"},
			},
		})
		require.NoError(t, err)

		assert.ElementsMatch(t, []core.WarningKind{core.WarningNotFound, core.WarningOutOfStock}, warningKinds(res.Warnings))
		require.Len(t, res.Lines, 1)
		assert.Equal(t, int64(24), res.Lines[0].Quantity, "name contained in the medicine text matches")
		assert.Len(t, res.Items, 3)
	})

	t.Run("repeated product merges and shares stock", func(t *testing.T) {
		f := newFixture(t)
		f.addTablets(t, "Ibuprofen 400mg", 10)

		res, err := f.resolver.Resolve(f.ctx, &core.Prescription{
			Items: []core.PrescriptionItem{
				{Medicine: "Ibuprofen", Dosage: "1", Frequency: "twice", Duration: "3 days"},
				{Medicine: "Ibuprofen", Dosage: "1", Frequency: "twice", Duration: "3 days"},
			},
		})
		require.NoError(t, err)

		require.Len(t, res.Lines, 1)
		assert.Equal(t, int64(10), res.Lines[0].Quantity)
		assert.Equal(t, "20.00", res.Lines[0].LineTotal.StringFixed(2))
		assert.Equal(t, []core.WarningKind{core.WarningPartialFulfillment}, warningKinds(res.Warnings))
	})

	t.Run("defaulted dosage is flagged", func(t *testing.T) {
		f := newFixture(t)
		f.addTablets(t, "Cetirizine", 50)

		res, err := f.resolver.Resolve(f.ctx, &core.Prescription{
			Items: []core.PrescriptionItem{{Medicine: "Cetirizine", Frequency: "as directed"}},
		})
		require.NoError(t, err)
		assert.Equal(t, []core.WarningKind{core.WarningUncertainDosage}, warningKinds(res.Warnings))
		require.Len(t, res.Lines, 1)
		assert.Equal(t, int64(1), res.Lines[0].Quantity)
	})

	t.Run("oversized dosage text is capped and clamped to stock", func(t *testing.T) {
		f := newFixture(t)
		f.addTablets(t, "Diclofenac 50mg", 50)

		res, err := f.resolver.Resolve(f.ctx, &core.Prescription{
			Items: []core.PrescriptionItem{{Medicine: "Diclofenac", Dosage: "9999999999 tablets", Frequency: "999999999 per day", Duration: "9999999999 days"}},
		})
		require.NoError(t, err)
		assert.Equal(t, []core.WarningKind{core.WarningUncertainDosage, core.WarningPartialFulfillment}, warningKinds(res.Warnings))
		require.Len(t, res.Lines, 1)
		assert.Equal(t, int64(50), res.Lines[0].Quantity)
		assert.Equal(t, "100.00", res.Lines[0].LineTotal.StringFixed(2))
		assert.Equal(t, int64(50), res.Items[0].Fulfilled)
	})

	t.Run("a line never exceeds the per-line maximum", func(t *testing.T) {
		f := newFixture(t)
		f.addTablets(t, "Folic acid 5mg", 1_000_000)

		res, err := f.resolver.Resolve(f.ctx, &core.Prescription{
			Items: []core.PrescriptionItem{{Medicine: "Folic acid", Dosage: "100", Frequency: "24 times", Duration: "365 days"}},
		})
		require.NoError(t, err)
		require.Len(t, res.Lines, 1)
		assert.Equal(t, core.MaxLineQuantity, res.Lines[0].Quantity)
		assert.Equal(t, []core.WarningKind{core.WarningPartialFulfillment}, warningKinds(res.Warnings))
	})

	t.Run("resolve by id", func(t *testing.T) {
		f := newFixture(t)
		f.addTablets(t, "Metformin 500mg", 100)
		require.NoError(t, f.repo.SavePrescription(f.ctx, &core.Prescription{
			ID: "rx-1", PatientName: "Sam",
			Items: []core.PrescriptionItem{{Medicine: "Metformin", Dosage: "1", Frequency: "bd", Duration: "2 weeks"}},
		}))

		res, err := f.resolver.ResolveByID(f.ctx, "rx-1")
		require.NoError(t, err)
		require.Len(t, res.Lines, 1)
		assert.Equal(t, int64(28), res.Lines[0].Quantity)
		assert.Empty(t, res.Warnings)

		_, err = f.resolver.ResolveByID(f.ctx, "rx-missing")
		assert.ErrorIs(t, err, core.ErrNotFound)
	})
}
