package policy

import (
	"testing"
	"time"

	"github.com/Leganyst/tour-marketplace/internal/model"
)

func refundAt(t *testing.T, before time.Duration, initiator model.ActorKind, c Circumstance) RefundQuote {
	t.Helper()
	start := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	return ComputeCancellationRefund(RefundInput{
		TourStartAt:  start,
		CancelledAt:  start.Add(-before),
		TourPrice:    100000,
		ServiceFee:   10000,
		Initiator:    initiator,
		Circumstance: c,
	})
}

func TestComputeCancellationRefund_Tiers(t *testing.T) {
	cases := []struct {
		name      string
		before    time.Duration
		initiator model.ActorKind
		want      int64
		wantFee   bool
		wantTier  RefundTier
		wantPct   int
	}{
		{"traveler 50h before", 50 * time.Hour, model.ActorTraveler, 110000, true, TierFull, 100},
		{"traveler exactly 48h", 48 * time.Hour, model.ActorTraveler, 110000, true, TierFull, 100},
		{"traveler 30h before", 30 * time.Hour, model.ActorTraveler, 50000, false, TierHalf, 50},
		{"traveler exactly 24h", 24 * time.Hour, model.ActorTraveler, 50000, false, TierHalf, 50},
		{"traveler 10h before", 10 * time.Hour, model.ActorTraveler, 0, false, TierNone, 0},
		{"traveler after start", -2 * time.Hour, model.ActorTraveler, 0, false, TierNone, 0},
		{"guide 1h before", time.Hour, model.ActorGuide, 110000, true, TierGuide, 100},
		{"admin 10h before", 10 * time.Hour, model.ActorAdmin, 0, false, TierNone, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := refundAt(t, tc.before, tc.initiator, CircumstanceNone)
			if q.RefundAmount != tc.want {
				t.Fatalf("refund = %d, want %d", q.RefundAmount, tc.want)
			}
			if q.RefundsServiceFee != tc.wantFee {
				t.Fatalf("refunds service fee = %v, want %v", q.RefundsServiceFee, tc.wantFee)
			}
			if q.Tier != tc.wantTier {
				t.Fatalf("tier = %s, want %s", q.Tier, tc.wantTier)
			}
			if q.Percent != tc.wantPct {
				t.Fatalf("percent = %d, want %d", q.Percent, tc.wantPct)
			}
		})
	}
}

func TestComputeCancellationRefund_JustUnderThresholds(t *testing.T) {
	q := refundAt(t, 48*time.Hour-time.Second, model.ActorTraveler, CircumstanceNone)
	if q.Tier != TierHalf {
		t.Fatalf("47h59m59s: tier = %s, want %s", q.Tier, TierHalf)
	}
	q = refundAt(t, 24*time.Hour-time.Second, model.ActorTraveler, CircumstanceNone)
	if q.Tier != TierNone || q.RefundAmount != 0 {
		t.Fatalf("23h59m59s: got %+v, want no refund", q)
	}
}

func TestComputeCancellationRefund_CircumstanceOverridesTiming(t *testing.T) {
	for _, c := range []Circumstance{CircumstanceSevereWeather, CircumstancePlatformOutage, CircumstanceDocumentedEmergency} {
		q := refundAt(t, time.Hour, model.ActorAdmin, c)
		if q.RefundAmount != 110000 || !q.RefundsServiceFee || q.Tier != TierCircumstance {
			t.Fatalf("%s: got %+v, want full refund", c, q)
		}
	}
}

func TestComputeCancellationRefund_HalfRoundsUp(t *testing.T) {
	start := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	q := ComputeCancellationRefund(RefundInput{
		TourStartAt: start,
		CancelledAt: start.Add(-30 * time.Hour),
		TourPrice:   1001,
		ServiceFee:  100,
		Initiator:   model.ActorTraveler,
	})
	if q.RefundAmount != 501 {
		t.Fatalf("refund = %d, want 501", q.RefundAmount)
	}
}

func TestCircumstance_Valid(t *testing.T) {
	if !CircumstanceNone.Valid() || !CircumstanceSevereWeather.Valid() {
		t.Fatalf("expected known circumstances to be valid")
	}
	if Circumstance("ALIENS").Valid() {
		t.Fatalf("expected unknown circumstance to be invalid")
	}
}
