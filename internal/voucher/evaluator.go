package voucher

import (
	"fmt"
	"github.com/ariefcatur/go-catalog-orders/internal/catalog"
	"slices"
	"time"
)

// Check reports whether v is usable by buyer at now. The first failing
// rule wins and is named in reason.
func Check(v catalog.Voucher, now time.Time, buyer string) (ok bool, reason string) {
	today := startOfDay(now)

	if !v.Valid {
		return false, "voucher is not valid"
	}
	if v.ValidFrom != nil && v.ValidFrom.After(today) {
		return false, "voucher is not active yet"
	}
	if v.ValidUntil != nil && v.ValidUntil.Before(today) {
		return false, "voucher is expired"
	}
	if len(v.Days) > 0 && !slices.Contains(v.Days, int(now.Weekday())) {
		return false, "voucher is not usable today"
	}
	if v.StartHour != "" && v.EndHour != "" {
		hour := fmt.Sprintf("%02d", now.Hour())
		if v.StartHour >= hour || v.EndHour <= hour {
			return false, "voucher is not usable at this hour"
		}
	}
	if len(v.Consumers) > 0 && !v.HasConsumer(buyer) {
		return false, "voucher is not usable by this consumer"
	}
	return true, ""
}

func IsUsable(v catalog.Voucher, now time.Time, buyer string) bool {
	ok, _ := Check(v, now, buyer)
	return ok
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
