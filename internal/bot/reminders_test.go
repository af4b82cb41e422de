package bot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInReminderWindow(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Yekaterinburg")
	if err != nil {
		t.Skip("tzdata unavailable")
	}

	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"window start", time.Date(2025, 3, 8, 10, 0, 0, 0, loc), true},
		{"inside window", time.Date(2025, 3, 8, 10, 4, 59, 0, loc), true},
		{"window end is exclusive", time.Date(2025, 3, 8, 10, 5, 0, 0, loc), false},
		{"just before", time.Date(2025, 3, 8, 9, 59, 59, 0, loc), false},
		{"evening", time.Date(2025, 3, 8, 22, 2, 0, 0, loc), false},
		{"midnight", time.Date(2025, 3, 8, 0, 0, 0, 0, loc), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, inReminderWindow(tc.at))
		})
	}
}
