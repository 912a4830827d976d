package policy

import "math"

type FeeType string

const (
	FeePercentage FeeType = "PERCENTAGE"
	FeeFixed      FeeType = "FIXED"
)

// FeeConfig — настройки комиссии, разрешённые один раз на запрос.
type FeeConfig struct {
	Enabled     bool
	Type        FeeType
	Percentage  float64
	FixedAmount int64
}

// ComputePlatformFee — комиссия платформы с суммы в минорных единицах.
// Результат всегда в пределах [0, amount].
func ComputePlatformFee(amount int64, cfg FeeConfig) int64 {
	if !cfg.Enabled || amount <= 0 {
		return 0
	}

	var fee int64
	switch cfg.Type {
	case FeeFixed:
		fee = cfg.FixedAmount
	default:
		if cfg.Percentage <= 0 {
			return 0
		}
		// Сумма уже в центах, поэтому округление до 2 знаков означает округление до целого.
		fee = int64(math.Round(float64(amount) * cfg.Percentage / 100))
	}

	if fee < 0 {
		return 0
	}
	if fee > amount {
		return amount
	}
	return fee
}

// ComputeServiceFee — сервисный сбор с путешественника. Те же правила, что и
// у комиссии платформы, чтобы превью в UI и реальное списание не расходились.
func ComputeServiceFee(tourPrice int64, cfg FeeConfig) int64 {
	return ComputePlatformFee(tourPrice, cfg)
}

// Settings — снимок настроек платформы для одного запроса.
type Settings struct {
	PlatformFee     FeeConfig
	ServiceFee      FeeConfig
	MinimumPayout   int64
	DefaultCurrency string
}
