package tools

import (
	"context"
	"fmt"
	"time"
)

// CurrentTimeInput is the (empty) argument set of the get_current_time tool.
type CurrentTimeInput struct{}

// NewCurrentTimeTool creates the clock tool. The model is instructed to call
// it before any time-sensitive search so queries carry the real date; the
// output ends with a hint to that effect.
func NewCurrentTimeTool(now func() time.Time) (Tool, error) {
	return New("get_current_time",
		"Get the current date, weekday and time. Call this before searching for time-sensitive information.",
		KindGeneral,
		func(ctx context.Context, _ CurrentTimeInput) (string, error) {
			t := now()
			return fmt.Sprintf(
				"Current time information:\n📅 Date: %s\n📆 Weekday: %s\n🕐 Time: %s\n\n💡 Include this date in search queries when looking for recent information.",
				t.Format("2006-01-02"),
				t.Weekday().String(),
				t.Format("15:04:05"),
			), nil
		})
}
