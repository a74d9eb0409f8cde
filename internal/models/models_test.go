package models

import "testing"

func TestSplitPayload(t *testing.T) {
	cases := []struct {
		data, key, arg string
	}{
		{"mov:confirm", "mov:confirm", ""},
		{"mov:name|CPL TAN", "mov:name", "CPL TAN"},
		{"continue_reporting|rsi_report", "continue_reporting", "rsi_report"},
		{"ptadmin:remove_user|42", "ptadmin:remove_user", "42"},
		{"name|A|B", "name", "A|B"},
		{"", "", ""},
	}
	for _, c := range cases {
		key, arg := SplitPayload(c.data)
		if key != c.key || arg != c.arg {
			t.Errorf("SplitPayload(%q) = %q, %q; want %q, %q", c.data, key, arg, c.key, c.arg)
		}
	}
}

func TestJoinPayloadRoundTrip(t *testing.T) {
	data := JoinPayload("sft:start", "1515")
	key, arg := SplitPayload(data)
	if key != "sft:start" || arg != "1515" {
		t.Errorf("round trip failed: got %q, %q", key, arg)
	}
	if JoinPayload("done_reporting", "") != "done_reporting" {
		t.Error("expected bare key when argument is empty")
	}
}

func TestReportKindClassification(t *testing.T) {
	newKinds := []ReportKind{KindRSOReport, KindRSIReport, KindMAReport}
	for _, k := range newKinds {
		if !k.IsNewReport() || k.IsUpdate() {
			t.Errorf("%s should classify as a new report", k)
		}
	}
	updateKinds := []ReportKind{KindRSOUpdate, KindRSIUpdate, KindMAUpdate}
	for _, k := range updateKinds {
		if k.IsNewReport() || !k.IsUpdate() {
			t.Errorf("%s should classify as an update", k)
		}
	}
	if IsValidReportKind("bogus") {
		t.Error("bogus kind should be invalid")
	}
}

func TestReportKindEventType(t *testing.T) {
	if KindRSOUpdate.EventType() != EventTypeRSO {
		t.Errorf("expected RSO, got %s", KindRSOUpdate.EventType())
	}
	if KindRSIReport.EventType() != EventTypeRSI {
		t.Errorf("expected RSI, got %s", KindRSIReport.EventType())
	}
	if KindMAUpdate.EventType() != EventTypeMA {
		t.Errorf("expected MA, got %s", KindMAUpdate.EventType())
	}
}

func TestSFTWindowContains(t *testing.T) {
	w := SFTWindow{Date: "01022026", Start: "1500", End: "1700"}
	if !w.Contains("1500", "1700") {
		t.Error("full window should be contained")
	}
	if !w.Contains("1515", "1630") {
		t.Error("interior slot should be contained")
	}
	if w.Contains("1445", "1600") {
		t.Error("start before window should be rejected")
	}
	if w.Contains("1600", "1715") {
		t.Error("end after window should be rejected")
	}
}

func TestUserDisplayName(t *testing.T) {
	u := User{FullName: "TAN AH KOW", Rank: "CPL"}
	if got := u.DisplayName(); got != "CPL TAN AH KOW" {
		t.Errorf("unexpected display name %q", got)
	}
	u.Rank = ""
	if got := u.DisplayName(); got != "TAN AH KOW" {
		t.Errorf("unexpected unranked display name %q", got)
	}
}

func TestStatusTypeLabel(t *testing.T) {
	if StatusTypeLabel(StatusTypeLightDuty) != "LIGHT DUTY" {
		t.Error("LD should expand to LIGHT DUTY")
	}
	if StatusTypeLabel(StatusTypeMC) != "MC" {
		t.Error("MC should remain MC")
	}
}
