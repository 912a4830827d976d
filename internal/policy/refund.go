package policy

import (
	"time"

	"github.com/Leganyst/tour-marketplace/internal/model"
)

// Circumstance — особые обстоятельства, которые подтверждает администратор.
type Circumstance string

const (
	CircumstanceNone                Circumstance = ""
	CircumstanceSevereWeather       Circumstance = "SEVERE_WEATHER"
	CircumstancePlatformOutage      Circumstance = "PLATFORM_OUTAGE"
	CircumstanceDocumentedEmergency Circumstance = "DOCUMENTED_EMERGENCY"
)

// Valid — известное значение (включая отсутствие обстоятельств).
func (c Circumstance) Valid() bool {
	switch c {
	case CircumstanceNone, CircumstanceSevereWeather, CircumstancePlatformOutage, CircumstanceDocumentedEmergency:
		return true
	}
	return false
}

// Пороги тарифов возврата.
const (
	FullRefundWindow = 48 * time.Hour
	HalfRefundWindow = 24 * time.Hour
)

// RefundTier — применённое правило, для аудита и предпросмотра в UI.
type RefundTier string

const (
	TierFull         RefundTier = "FULL"
	TierHalf         RefundTier = "HALF"
	TierNone         RefundTier = "NONE"
	TierGuide        RefundTier = "GUIDE_CANCELLED"
	TierCircumstance RefundTier = "SPECIAL_CIRCUMSTANCE"
)

type RefundInput struct {
	TourStartAt  time.Time
	CancelledAt  time.Time
	TourPrice    int64
	ServiceFee   int64
	Initiator    model.ActorKind
	Circumstance Circumstance
}

type RefundQuote struct {
	RefundAmount      int64
	RefundsServiceFee bool
	Percent           int
	Tier              RefundTier
	HoursUntilTour    float64
}

// ComputeCancellationRefund считает возврат при отмене брони.
// Отмена гидом и особые обстоятельства от времени не зависят.
func ComputeCancellationRefund(in RefundInput) RefundQuote {
	until := in.TourStartAt.Sub(in.CancelledAt)
	hours := until.Hours()
	full := in.TourPrice + in.ServiceFee

	switch {
	case in.Circumstance != CircumstanceNone:
		return RefundQuote{RefundAmount: full, RefundsServiceFee: true, Percent: 100, Tier: TierCircumstance, HoursUntilTour: hours}
	case in.Initiator == model.ActorGuide:
		return RefundQuote{RefundAmount: full, RefundsServiceFee: true, Percent: 100, Tier: TierGuide, HoursUntilTour: hours}
	}

	switch {
	case until >= FullRefundWindow:
		return RefundQuote{RefundAmount: full, RefundsServiceFee: true, Percent: 100, Tier: TierFull, HoursUntilTour: hours}
	case until >= HalfRefundWindow:
		return RefundQuote{RefundAmount: percentOf(in.TourPrice, 50), Percent: 50, Tier: TierHalf, HoursUntilTour: hours}
	default:
		return RefundQuote{Tier: TierNone, HoursUntilTour: hours}
	}
}

// percentOf — amount*pct/100 с округлением половины вверх.
func percentOf(amount int64, pct int64) int64 {
	if amount <= 0 {
		return 0
	}
	return (amount*pct + 50) / 100
}
