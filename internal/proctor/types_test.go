package proctor

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		t    ViolationType
		want Severity
	}{
		{TypeMultipleInstances, SeverityCritical},
		{TypeScreenSharing, SeverityCritical},
		{TypeExternalApp, SeverityCritical},
		{TypeTabSwitch, SeverityHigh},
		{TypeFullscreenExit, SeverityHigh},
		{TypeDevTools, SeverityHigh},
		{TypeCopyPaste, SeverityHigh},
		{TypeOther, SeverityLow},
		{TypeFocusLost, SeverityMedium},
		{TypeMouseLeft, SeverityMedium},
		{TypeRightClick, SeverityMedium},
		{TypeBlockedKey, SeverityMedium},
		{TypeBlockedShortcut, SeverityMedium},
		{TypeWebcamDenied, SeverityMedium},
		{TypeConnectionLost, SeverityMedium},
		{TypeMeetingDisconnected, SeverityMedium},
		{TypeAVDisabled, SeverityMedium},
		{TypeSuspiciousBehavior, SeverityMedium},
		{TypeFullscreenEntryFail, SeverityMedium},
		{TypeEyesAway, SeverityMedium},
		{TypeNoFaceDetected, SeverityMedium},
		{TypeMultipleFaces, SeverityMedium},
	}
	for _, tt := range tests {
		t.Run(string(tt.t), func(t *testing.T) {
			if got := Classify(tt.t); got != tt.want {
				t.Errorf("Classify(%s) = %s, want %s", tt.t, got, tt.want)
			}
			// Deterministic on repeat evaluation.
			if got := Classify(tt.t); got != tt.want {
				t.Errorf("Classify(%s) second call = %s, want %s", tt.t, got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		label string
		want  ViolationType
	}{
		{"tab-switch", TypeTabSwitch},
		{"devtools", TypeDevTools},
		{"eye-tracking-away", TypeEyesAway},
		{"other", TypeOther},
		{"", TypeOther},
		{"totally-made-up", TypeOther},
		{"TAB-SWITCH", TypeOther}, // labels are case-sensitive wire values
	}
	for _, tt := range tests {
		if got := Normalize(tt.label); got != tt.want {
			t.Errorf("Normalize(%q) = %s, want %s", tt.label, got, tt.want)
		}
	}
}

func TestIsValidType(t *testing.T) {
	if !IsValidType(TypeCopyPaste) {
		t.Error("copy-paste should be valid")
	}
	if IsValidType("nonsense") {
		t.Error("unknown label should be invalid")
	}
}
