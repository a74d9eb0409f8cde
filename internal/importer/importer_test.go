package importer

import (
	"strings"
	"testing"

	"github.com/weelysontheDISease/Telebot-V1/internal/models"
	"github.com/weelysontheDISease/Telebot-V1/internal/store"
)

const sampleCSV = `full_name,rank,role,base_role,telegram_id,telegram_username,is_active
tan ah kow,OCT,cadet,,101,,true
lim bee huat,LTA,instructor,,102,@limbh,
ong wei lun,CPT,admin,instructor,103,,1
`

func TestImportParsesRoster(t *testing.T) {
	st := store.NewInMemoryStore()
	res, err := New(st).Import([]byte(sampleCSV), false)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if res.Processed != 3 || res.Imported != 3 || len(res.Errors) != 0 {
		t.Fatalf("unexpected result %+v", res)
	}

	u, err := st.GetUserByPlatformID(101)
	if err != nil || u == nil {
		t.Fatalf("cadet not found: %v", err)
	}
	if u.FullName != "TAN AH KOW" || u.Role != models.RoleCadet || u.IsAdmin || !u.IsActive {
		t.Errorf("unexpected cadet %+v", u)
	}

	u, err = st.GetUserByUsername("limbh")
	if err != nil || u == nil {
		t.Fatalf("instructor not found by username: %v", err)
	}
	if u.Username != "limbh" {
		t.Errorf("username prefix not stripped: %q", u.Username)
	}

	u, err = st.GetUserByPlatformID(103)
	if err != nil || u == nil {
		t.Fatalf("admin not found: %v", err)
	}
	if !u.IsAdmin || u.Role != models.RoleInstructor {
		t.Errorf("admin row not mapped to base role: %+v", u)
	}
}

func TestImportSkipsBadRows(t *testing.T) {
	csv := "full_name,rank,role,telegram_id\n" +
		"tan ah kow,GEN,cadet,101\n" + // unknown rank
		"lim bee huat,LTA,wizard,102\n" + // unknown role
		"ong wei lun,CPT,admin,103\n" + // admin without base_role
		"goh kim seng,OCT,cadet,\n" + // no id and no username
		"chan mei fen,OCT,cadet,105\n"
	st := store.NewInMemoryStore()
	res, err := New(st).Import([]byte(csv), false)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if res.Processed != 5 || res.Imported != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(res.Errors) != 4 {
		t.Fatalf("expected 4 row errors, got %v", res.Errors)
	}
	for _, msg := range res.Errors {
		if !strings.HasPrefix(msg, "row ") {
			t.Errorf("row error missing row number: %q", msg)
		}
	}
}

func TestImportRequiresColumns(t *testing.T) {
	st := store.NewInMemoryStore()
	if _, err := New(st).Import([]byte("full_name,role\nx,cadet\n"), false); err == nil {
		t.Fatal("expected error for missing rank column")
	}
}

func TestImportClearFirst(t *testing.T) {
	st := store.NewInMemoryStore()
	old := models.User{PlatformID: 999, FullName: "OLD USER", Rank: "OCT", Role: models.RoleCadet, IsActive: true}
	if err := st.UpsertUser(old); err != nil {
		t.Fatalf("UpsertUser failed: %v", err)
	}
	if _, err := st.CreateMedicalEvent(models.MedicalEvent{SubjectName: "OLD USER", EventType: models.EventTypeRSO}); err != nil {
		t.Fatalf("CreateMedicalEvent failed: %v", err)
	}

	if _, err := New(st).Import([]byte(sampleCSV), true); err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	u, err := st.GetUserByPlatformID(999)
	if err != nil {
		t.Fatalf("GetUserByPlatformID failed: %v", err)
	}
	if u != nil {
		t.Error("old user survived a clearing import")
	}
	events, err := st.ListMedicalEvents()
	if err != nil {
		t.Fatalf("ListMedicalEvents failed: %v", err)
	}
	if len(events) != 0 {
		t.Error("old medical events survived a clearing import")
	}
}

func TestImportUpdatesExisting(t *testing.T) {
	st := store.NewInMemoryStore()
	if _, err := New(st).Import([]byte(sampleCSV), false); err != nil {
		t.Fatalf("first import failed: %v", err)
	}
	promoted := strings.Replace(sampleCSV, "tan ah kow,OCT,cadet", "tan ah kow,2LT,instructor", 1)
	if _, err := New(st).Import([]byte(promoted), false); err != nil {
		t.Fatalf("second import failed: %v", err)
	}

	u, err := st.GetUserByPlatformID(101)
	if err != nil || u == nil {
		t.Fatalf("user not found: %v", err)
	}
	if u.Rank != "2LT" || u.Role != models.RoleInstructor {
		t.Errorf("existing row not updated: %+v", u)
	}
}
