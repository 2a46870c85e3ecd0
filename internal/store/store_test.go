package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punchamoorthee/wastebank/internal/domain"
)

// testStore runs the behaviour every Store implementation must share.
func testStore(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("member lifecycle", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		m, err := s.CreateMember(ctx, MemberFields{Code: "NSB001", Name: "Ani", Address: "Jl. Mawar"})
		require.NoError(t, err)
		assert.NotEmpty(t, m.ID)
		assert.Zero(t, m.Balance)

		_, err = s.CreateMember(ctx, MemberFields{Code: "NSB001", Name: "Dup"})
		assert.ErrorIs(t, err, ErrDuplicate)

		byCode, err := s.FindMemberByCode(ctx, "NSB001")
		require.NoError(t, err)
		require.NotNil(t, byCode)
		assert.Equal(t, m.ID, byCode.ID)

		missing, err := s.FindMemberByCode(ctx, "NSB404")
		require.NoError(t, err)
		assert.Nil(t, missing)

		require.NoError(t, s.UpdateMember(ctx, m.ID, MemberFields{Code: "NSB001", Name: "Ani Lestari"}))
		got, err := s.GetMember(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, "Ani Lestari", got.Name)
		assert.Empty(t, got.Address)

		assert.ErrorIs(t, s.UpdateMember(ctx, "00000000-0000-0000-0000-000000000000", MemberFields{Code: "X", Name: "Y"}), ErrNotFound)
	})

	t.Run("members ordered by name", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for _, f := range []MemberFields{
			{Code: "C", Name: "Citra"},
			{Code: "A", Name: "Ani"},
			{Code: "B", Name: "Budi"},
		} {
			_, err := s.CreateMember(ctx, f)
			require.NoError(t, err)
		}

		members, err := s.ListMembers(ctx)
		require.NoError(t, err)
		require.Len(t, members, 3)
		assert.Equal(t, "Ani", members[0].Name)
		assert.Equal(t, "Budi", members[1].Name)
		assert.Equal(t, "Citra", members[2].Name)
	})

	t.Run("commit applies entry and balance together", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		m, err := s.CreateMember(ctx, MemberFields{Code: "NSB001", Name: "Ani"})
		require.NoError(t, err)

		at := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
		id, err := s.Commit(ctx, Batch{
			Entry: domain.LedgerEntry{
				MemberCode:    "NSB001",
				MemberName:    "Ani",
				Timestamp:     at,
				Kind:          domain.KindDeposit,
				TotalAmount:   3000,
				TotalWeightKg: decimal.RequireFromString("2.000"),
				Items: []domain.LineItem{{
					WasteTypeID:   "plastic-a",
					WasteTypeName: "Plastic A",
					PricePerKg:    1500,
					WeightKg:      decimal.RequireFromString("2"),
					Subtotal:      decimal.RequireFromString("3000"),
				}},
				Operator: "kasir@bank.id",
			},
			Balance: BalanceUpdate{MemberID: m.ID, Expected: 0, New: 3000},
		})
		require.NoError(t, err)
		assert.NotEmpty(t, id)

		got, err := s.GetMember(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(3000), got.Balance)

		entries, err := s.ListEntries(ctx, EntryFilter{MemberCode: "NSB001"})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		e := entries[0]
		assert.Equal(t, id, e.ID)
		assert.Equal(t, domain.KindDeposit, e.Kind)
		assert.True(t, e.Timestamp.Equal(at))
		assert.True(t, e.TotalWeightKg.Equal(decimal.NewFromInt(2)))
		require.Len(t, e.Items, 1)
		assert.Equal(t, "Plastic A", e.Items[0].WasteTypeName)
		assert.True(t, e.Items[0].Subtotal.Equal(decimal.NewFromInt(3000)))
	})

	t.Run("commit rejects a moved balance", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		m, err := s.CreateMember(ctx, MemberFields{Code: "NSB001", Name: "Ani"})
		require.NoError(t, err)

		_, err = s.Commit(ctx, Batch{
			Entry:   domain.LedgerEntry{MemberCode: "NSB001", Timestamp: time.Now(), Kind: domain.KindWithdrawal, TotalAmount: -100},
			Balance: BalanceUpdate{MemberID: m.ID, Expected: 500, New: 400},
		})
		assert.ErrorIs(t, err, ErrConflict)

		entries, err := s.ListEntries(ctx, EntryFilter{})
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("entry filters", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		ani, err := s.CreateMember(ctx, MemberFields{Code: "NSB001", Name: "Ani"})
		require.NoError(t, err)
		budi, err := s.CreateMember(ctx, MemberFields{Code: "NSB002", Name: "Budi"})
		require.NoError(t, err)

		day := func(d int) time.Time { return time.Date(2026, 3, d, 10, 0, 0, 0, time.UTC) }
		post := func(m *domain.Member, at time.Time, expected, amount int64) {
			_, err := s.Commit(ctx, Batch{
				Entry:   domain.LedgerEntry{MemberCode: m.Code, MemberName: m.Name, Timestamp: at, Kind: domain.KindDeposit, TotalAmount: amount},
				Balance: BalanceUpdate{MemberID: m.ID, Expected: expected, New: expected + amount},
			})
			require.NoError(t, err)
		}
		post(ani, day(3), 0, 100)
		post(budi, day(1), 0, 200)
		post(ani, day(1), 100, 300)

		all, err := s.ListEntries(ctx, EntryFilter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.True(t, all[0].Timestamp.Equal(day(1)))
		assert.True(t, all[2].Timestamp.Equal(day(3)))

		window, err := s.ListEntries(ctx, EntryFilter{From: day(2), To: day(4)})
		require.NoError(t, err)
		require.Len(t, window, 1)
		assert.Equal(t, int64(100), window[0].TotalAmount)

		aniOnly, err := s.ListEntries(ctx, EntryFilter{MemberCode: "NSB001", To: day(2)})
		require.NoError(t, err)
		require.Len(t, aniOnly, 1)
		assert.Equal(t, int64(300), aniOnly[0].TotalAmount)
	})

	t.Run("delete member cascades to entries", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		ani, err := s.CreateMember(ctx, MemberFields{Code: "NSB001", Name: "Ani"})
		require.NoError(t, err)
		budi, err := s.CreateMember(ctx, MemberFields{Code: "NSB002", Name: "Budi"})
		require.NoError(t, err)
		for _, m := range []*domain.Member{ani, budi} {
			_, err := s.Commit(ctx, Batch{
				Entry:   domain.LedgerEntry{MemberCode: m.Code, Timestamp: time.Now(), Kind: domain.KindDeposit, TotalAmount: 10},
				Balance: BalanceUpdate{MemberID: m.ID, Expected: 0, New: 10},
			})
			require.NoError(t, err)
		}

		require.NoError(t, s.DeleteMember(ctx, ani.ID))
		assert.ErrorIs(t, s.DeleteMember(ctx, ani.ID), ErrNotFound)

		entries, err := s.ListEntries(ctx, EntryFilter{})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "NSB002", entries[0].MemberCode)
	})

	t.Run("renamed member keeps its entries", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		ani, err := s.CreateMember(ctx, MemberFields{Code: "NSB001", Name: "Ani"})
		require.NoError(t, err)
		budi, err := s.CreateMember(ctx, MemberFields{Code: "NSB002", Name: "Budi"})
		require.NoError(t, err)
		for _, m := range []*domain.Member{ani, budi} {
			_, err := s.Commit(ctx, Batch{
				Entry:   domain.LedgerEntry{MemberCode: m.Code, Timestamp: time.Now(), Kind: domain.KindDeposit, TotalAmount: 10},
				Balance: BalanceUpdate{MemberID: m.ID, Expected: 0, New: 10},
			})
			require.NoError(t, err)
		}

		assert.ErrorIs(t, s.UpdateMember(ctx, ani.ID, MemberFields{Code: "NSB002", Name: "Ani"}), ErrDuplicate)
		require.NoError(t, s.UpdateMember(ctx, ani.ID, MemberFields{Code: "NSB101", Name: "Ani"}))

		old, err := s.ListEntries(ctx, EntryFilter{MemberCode: "NSB001"})
		require.NoError(t, err)
		assert.Empty(t, old)
		moved, err := s.ListEntries(ctx, EntryFilter{MemberCode: "NSB101"})
		require.NoError(t, err)
		require.Len(t, moved, 1)
		assert.Equal(t, int64(10), moved[0].TotalAmount)

		require.NoError(t, s.DeleteMember(ctx, ani.ID))
		rest, err := s.ListEntries(ctx, EntryFilter{})
		require.NoError(t, err)
		require.Len(t, rest, 1)
		assert.Equal(t, "NSB002", rest[0].MemberCode)
	})

	t.Run("waste types", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		plastic, err := s.CreateWasteType(ctx, WasteTypeFields{Name: "Plastic A", PricePerKg: 1500})
		require.NoError(t, err)
		assert.True(t, plastic.Active)
		assert.Empty(t, plastic.PhotoURL)

		require.NoError(t, s.UpdateWasteType(ctx, plastic.ID, WasteTypeFields{
			Name:       "Plastic A",
			PricePerKg: 1800,
			PhotoURL:   "https://cdn.example.org/plastic-a.jpg",
		}))
		updated, err := s.GetWasteType(ctx, plastic.ID)
		require.NoError(t, err)
		require.NotNil(t, updated)
		assert.Equal(t, int64(1800), updated.PricePerKg)
		assert.Equal(t, "https://cdn.example.org/plastic-a.jpg", updated.PhotoURL)
		assert.ErrorIs(t, s.UpdateWasteType(ctx, "00000000-0000-0000-0000-000000000000", WasteTypeFields{Name: "x"}), ErrNotFound)
		assert.ErrorIs(t, s.UpdateWasteType(ctx, "not-a-uuid", WasteTypeFields{Name: "x"}), ErrNotFound)

		require.NoError(t, s.DeactivateWasteType(ctx, plastic.ID))
		assert.ErrorIs(t, s.DeactivateWasteType(ctx, "00000000-0000-0000-0000-000000000000"), ErrNotFound)

		list, err := s.ListWasteTypes(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)

		got, err := s.GetWasteType(ctx, plastic.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.False(t, got.Active)
	})

	t.Run("operators", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		op, err := s.CreateOperator(ctx, "kasir@bank.id", "hash")
		require.NoError(t, err)
		assert.NotEmpty(t, op.ID)

		_, err = s.CreateOperator(ctx, "kasir@bank.id", "other")
		assert.ErrorIs(t, err, ErrDuplicate)

		got, err := s.FindOperatorByEmail(ctx, "kasir@bank.id")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "hash", got.PasswordHash)

		none, err := s.FindOperatorByEmail(ctx, "nobody@bank.id")
		require.NoError(t, err)
		assert.Nil(t, none)
	})
}
