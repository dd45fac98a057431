package gcodemeta

import "testing"

func TestParseFilename_FullConvention(t *testing.T) {
	got := ParseFilename("Benchy-Boat_1h30m_PLA_Red.gcode")
	if got.Name != "Benchy Boat" {
		t.Errorf("name = %q, want %q", got.Name, "Benchy Boat")
	}
	if got.PrintTime != "1h30m" {
		t.Errorf("print time = %q, want %q", got.PrintTime, "1h30m")
	}
	if got.Material != "PLA" {
		t.Errorf("material = %q, want %q", got.Material, "PLA")
	}
	if got.Colour != "Red" {
		t.Errorf("colour = %q, want %q", got.Colour, "Red")
	}
}

func TestParseFilename_SingleTrailingTokenIsMaterial(t *testing.T) {
	got := ParseFilename("bracket_45m_PETG.gcode")
	if got.Material != "PETG" {
		t.Errorf("material = %q, want %q", got.Material, "PETG")
	}
	if got.Colour != "" {
		t.Errorf("colour = %q, want empty", got.Colour)
	}
	if got.PrintTime != "45m" {
		t.Errorf("print time = %q, want %q", got.PrintTime, "45m")
	}
}

func TestParseFilename_NoTimeToken(t *testing.T) {
	got := ParseFilename("just_a_part.gcode")
	if got != (FilenameMeta{}) {
		t.Errorf("expected empty meta without a time token, got %+v", got)
	}
}

func TestParseFilename_HoursOnly(t *testing.T) {
	got := ParseFilename("vase_2h_ABS.gcode")
	if got.PrintTime != "2h" {
		t.Errorf("print time = %q, want %q", got.PrintTime, "2h")
	}
}
