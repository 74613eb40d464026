package proctor

// ViolationType labels a detected rule-break during a proctored attempt.
type ViolationType string

const (
	TypeTabSwitch            ViolationType = "tab-switch"
	TypeFullscreenExit       ViolationType = "fullscreen-exit"
	TypeFocusLost            ViolationType = "focus-lost"
	TypeMouseLeft            ViolationType = "mouse-left"
	TypeRightClick           ViolationType = "right-click"
	TypeBlockedKey           ViolationType = "blocked-key"
	TypeBlockedShortcut      ViolationType = "blocked-shortcut"
	TypeWebcamDenied         ViolationType = "webcam-denied"
	TypeConnectionLost       ViolationType = "proctoring-connection-lost"
	TypeMultipleInstances    ViolationType = "multiple-instances"
	TypeScreenSharing        ViolationType = "screen-sharing"
	TypeExternalApp          ViolationType = "external-app"
	TypeCopyPaste            ViolationType = "copy-paste"
	TypeDevTools             ViolationType = "devtools"
	TypeMeetingDisconnected  ViolationType = "meeting-disconnected"
	TypeAVDisabled           ViolationType = "av-disabled"
	TypeSuspiciousBehavior   ViolationType = "suspicious-behavior"
	TypeFullscreenEntryFail  ViolationType = "fullscreen-entry-failed"
	TypeEyesAway             ViolationType = "eye-tracking-away"
	TypeNoFaceDetected       ViolationType = "eye-tracking-no-face"
	TypeMultipleFaces        ViolationType = "eye-tracking-multiple-faces"
	TypeOther                ViolationType = "other"
)

var knownTypes = map[ViolationType]struct{}{
	TypeTabSwitch:           {},
	TypeFullscreenExit:      {},
	TypeFocusLost:           {},
	TypeMouseLeft:           {},
	TypeRightClick:          {},
	TypeBlockedKey:          {},
	TypeBlockedShortcut:     {},
	TypeWebcamDenied:        {},
	TypeConnectionLost:      {},
	TypeMultipleInstances:   {},
	TypeScreenSharing:       {},
	TypeExternalApp:         {},
	TypeCopyPaste:           {},
	TypeDevTools:            {},
	TypeMeetingDisconnected: {},
	TypeAVDisabled:          {},
	TypeSuspiciousBehavior:  {},
	TypeFullscreenEntryFail: {},
	TypeEyesAway:            {},
	TypeNoFaceDetected:      {},
	TypeMultipleFaces:       {},
	TypeOther:               {},
}

// IsValidType reports whether t belongs to the closed enumeration.
func IsValidType(t ViolationType) bool {
	_, ok := knownTypes[t]
	return ok
}

// Normalize coerces an arbitrary label to a member of the enumeration.
// Unknown labels become TypeOther: the client must never drop a signal
// just because it cannot name it. The store is stricter, see violations.Record.
func Normalize(label string) ViolationType {
	t := ViolationType(label)
	if IsValidType(t) {
		return t
	}
	return TypeOther
}

// Severity is the four-tier admin-prioritization class derived from a
// violation type.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Classify maps a violation type to its severity. Deterministic, evaluated
// in priority order; callers must re-run it whenever the type changes.
func Classify(t ViolationType) Severity {
	switch t {
	case TypeMultipleInstances, TypeScreenSharing, TypeExternalApp:
		return SeverityCritical
	case TypeTabSwitch, TypeFullscreenExit, TypeDevTools, TypeCopyPaste:
		return SeverityHigh
	case TypeOther:
		return SeverityLow
	default:
		return SeverityMedium
	}
}
