package schedule

import "testing"

func TestParsePhrases(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"every day at 6pm", "0 18 * * *"},
		{"every day at 6:30pm", "30 18 * * *"},
		{"every day at 12am", "0 0 * * *"},
		{"every day at 12pm", "0 12 * * *"},
		{"every day at 7am", "0 7 * * *"},
		{"every day at 18", "0 18 * * *"},
		{"every day at 18:45", "45 18 * * *"},
		{"Every Day At 9AM", "0 9 * * *"},
		{"every morning", "0 9 * * *"},
		{"every evening", "0 18 * * *"},
		{"every night", "0 22 * * *"},
		{"every weekday", "0 9 * * 1-5"},
		{"every weekend", "0 9 * * 0,6"},
		{"every monday", "0 9 * * 1"},
		{"every sunday", "0 9 * * 0"},
		{"every friday at 5pm", "0 17 * * 5"},
		{"every saturday at 8:15am", "15 8 * * 6"},
		{"every 15 minutes", "*/15 * * * *"},
		{"every 2 hours", "0 */2 * * *"},
		{"every hour", "0 * * * *"},
		{"every minute", "* * * * *"},
		{"  every   day  at 6pm ", "0 18 * * *"},
	}

	for _, tt := range tests {
		got, ok := Parse(tt.input)
		if !ok {
			t.Errorf("Parse(%q) = not ok, want %q", tt.input, tt.want)
			continue
		}
		if got != tt.want {
			t.Errorf("Parse(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestParseRejects(t *testing.T) {
	inputs := []string{
		"banana",
		"",
		"   ",
		"every day at 25pm",
		"every day at 13:75",
		"every 0 minutes",
		"every 90 minutes",
		"every 36 hours",
		"tomorrow at noon",
	}

	for _, input := range inputs {
		if got, ok := Parse(input); ok {
			t.Errorf("Parse(%q) = %q, want no match", input, got)
		}
	}
}

func TestParseCronPassthrough(t *testing.T) {
	exprs := []string{
		"0 18 * * *",
		"*/5 * * * *",
		"30 6 * * 1-5",
		"@daily",
	}

	for _, expr := range exprs {
		got, ok := Parse(expr)
		if !ok {
			t.Errorf("Parse(%q) = not ok, want passthrough", expr)
			continue
		}
		if got != expr {
			t.Errorf("Parse(%q) = %q, want unchanged", expr, got)
		}
	}
}

// Parsing its own output must be a fixed point: anything Parse emits is
// a valid expression that passes through unchanged.
func TestParseIdempotent(t *testing.T) {
	inputs := []string{
		"every day at 6pm",
		"every weekday",
		"every 15 minutes",
		"every friday at 5pm",
		"0 22 * * *",
	}

	for _, input := range inputs {
		first, ok := Parse(input)
		if !ok {
			t.Fatalf("Parse(%q) = not ok", input)
		}
		second, ok := Parse(first)
		if !ok {
			t.Errorf("Parse(%q) = not ok, want passthrough of own output", first)
			continue
		}
		if second != first {
			t.Errorf("Parse(Parse(%q)) = %q, want %q", input, second, first)
		}
	}
}

func TestClockTime(t *testing.T) {
	tests := []struct {
		hour, minute, meridiem string
		wantHour, wantMinute   int
		wantOK                 bool
	}{
		{"6", "", "pm", 18, 0, true},
		{"6", "30", "pm", 18, 30, true},
		{"12", "", "am", 0, 0, true},
		{"12", "", "pm", 12, 0, true},
		{"12", "30", "pm", 12, 30, true},
		{"9", "", "am", 9, 0, true},
		{"18", "", "", 18, 0, true},
		{"23", "59", "", 23, 59, true},
		{"25", "", "", 0, 0, false},
		{"13", "75", "", 0, 0, false},
		{"13", "", "pm", 13, 0, true}, // already 24h, pm adds nothing
	}

	for _, tt := range tests {
		hour, minute, ok := clockTime(tt.hour, tt.minute, tt.meridiem)
		if ok != tt.wantOK {
			t.Errorf("clockTime(%q, %q, %q) ok = %v, want %v", tt.hour, tt.minute, tt.meridiem, ok, tt.wantOK)
			continue
		}
		if !ok {
			continue
		}
		if hour != tt.wantHour || minute != tt.wantMinute {
			t.Errorf("clockTime(%q, %q, %q) = %d:%d, want %d:%d",
				tt.hour, tt.minute, tt.meridiem, hour, minute, tt.wantHour, tt.wantMinute)
		}
	}
}
