package pin

import "testing"

func TestValue_Int(t *testing.T) {
	tests := []struct {
		name  string
		value Value
		want  int
	}{
		{"plain integer", "42", 42},
		{"negative", "-7", -7},
		{"with whitespace", " 13 ", 13},
		{"float truncates to zero", "3.14", 0},
		{"garbage", "abc", 0},
		{"empty", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.value.Int(); got != tt.want {
				t.Errorf("Value(%q).Int() = %d, want %d", tt.value, got, tt.want)
			}
		})
	}
}

func TestValue_Float(t *testing.T) {
	tests := []struct {
		name  string
		value Value
		want  float64
	}{
		{"float", "25.4", 25.4},
		{"integer", "100", 100},
		{"negative", "-0.5", -0.5},
		{"garbage", "warm", 0},
		{"empty", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.value.Float(); got != tt.want {
				t.Errorf("Value(%q).Float() = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestValue_Bool(t *testing.T) {
	tests := []struct {
		name  string
		value Value
		want  bool
	}{
		{"one", "1", true},
		{"true", "true", true},
		{"on", "on", true},
		{"uppercase TRUE", "TRUE", true},
		{"mixed case On", "On", true},
		{"zero", "0", false},
		{"false", "false", false},
		{"off", "off", false},
		{"two is not truthy", "2", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.value.Bool(); got != tt.want {
				t.Errorf("Value(%q).Bool() = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestValue_Array(t *testing.T) {
	v := Value("25.4,60,1013")

	if got := v.ArraySize(); got != 3 {
		t.Errorf("ArraySize() = %d, want 3", got)
	}

	if got := v.ArrayElement(0); got != "25.4" {
		t.Errorf("ArrayElement(0) = %q, want %q", got, "25.4")
	}

	if got := v.ArrayFloat(0); got != 25.4 {
		t.Errorf("ArrayFloat(0) = %v, want 25.4", got)
	}

	if got := v.ArrayInt(1); got != 60 {
		t.Errorf("ArrayInt(1) = %d, want 60", got)
	}

	if got := v.ArrayInt(2); got != 1013 {
		t.Errorf("ArrayInt(2) = %d, want 1013", got)
	}
}

func TestValue_ArrayOutOfRange(t *testing.T) {
	v := Value("1,2")

	if got := v.ArrayElement(5); got != "" {
		t.Errorf("ArrayElement(5) = %q, want empty", got)
	}
	if got := v.ArrayElement(-1); got != "" {
		t.Errorf("ArrayElement(-1) = %q, want empty", got)
	}
	if got := v.ArrayInt(5); got != 0 {
		t.Errorf("ArrayInt(5) = %d, want 0", got)
	}
}

func TestValue_ArrayEmpty(t *testing.T) {
	v := Value("")

	if got := v.ArraySize(); got != 0 {
		t.Errorf("ArraySize() = %d for empty value, want 0", got)
	}
	if got := v.ArrayElement(0); got != "" {
		t.Errorf("ArrayElement(0) = %q for empty value, want empty", got)
	}
}

func TestValue_SingleElementArray(t *testing.T) {
	v := Value("42")

	if got := v.ArraySize(); got != 1 {
		t.Errorf("ArraySize() = %d, want 1", got)
	}
	if got := v.ArrayInt(0); got != 42 {
		t.Errorf("ArrayInt(0) = %d, want 42", got)
	}
}
