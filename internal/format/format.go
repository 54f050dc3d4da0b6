// Пакет format: форматирование размеров и времени для отображения в API.
package format

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

var sizeSuffixes = []string{"", "k", "M", "G", "T", "P"}

// FileSize форматирует размер в десятичных единицах с одним знаком
// после запятой: 0 → "-", 12 → "12.0 B", 1234 → "1.2 kB", 123456789 → "123.5 MB".
func FileSize(size int64) string {
	if size == 0 {
		return "-"
	}

	value := float64(size)
	for i, suffix := range sizeSuffixes {
		if value < 1000 && value > -1000 || i == len(sizeSuffixes)-1 {
			return fmt.Sprintf("%.1f %sB", value, suffix)
		}
		value /= 1000
	}
	return "-"
}

// RelativeTime возвращает время относительно now: "3 minutes ago".
func RelativeTime(t, now time.Time) string {
	return humanize.RelTime(t, now, "ago", "from now")
}
