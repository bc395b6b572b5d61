package models

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"
)

// gormTag extracts the gorm tag from a struct field.
func gormTag(t *testing.T, typ reflect.Type, fieldName string) string {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	return f.Tag.Get("gorm")
}

// assertGormTag checks that a struct field's gorm tag contains the expected value.
func assertGormTag(t *testing.T, typ reflect.Type, fieldName, expected string) {
	t.Helper()
	tag := gormTag(t, typ, fieldName)
	if !strings.Contains(tag, expected) {
		t.Errorf("%s.%s gorm tag = %q, want to contain %q", typ.Name(), fieldName, tag, expected)
	}
}

// assertFieldType checks that a struct field has the expected Go type.
func assertFieldType(t *testing.T, typ reflect.Type, fieldName, expectedType string) {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	got := f.Type.String()
	if got != expectedType {
		t.Errorf("%s.%s type = %q, want %q", typ.Name(), fieldName, got, expectedType)
	}
}

func TestBoard_Fields(t *testing.T) {
	typ := reflect.TypeOf(Board{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "Name", "not null")
	assertGormTag(t, typ, "TokenHash", "not null")
	assertGormTag(t, typ, "TokenSalt", "not null")
	assertGormTag(t, typ, "Listed", "index")
	assertGormTag(t, typ, "Columns", "foreignKey:BoardID")

	assertFieldType(t, typ, "QuickDoneColumnID", "*string")
	assertFieldType(t, typ, "QuickReassignColumnID", "*string")
	assertFieldType(t, typ, "ArchivedAt", "*time.Time")
	assertFieldType(t, typ, "Columns", "[]models.Column")
}

func TestBoard_TokenNeverSerialized(t *testing.T) {
	b := Board{ID: "b1", Name: "Sprint", TokenHash: "deadbeef", TokenSalt: "salt"}
	out, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, secret := range []string{"deadbeef", "salt", "token_hash", "token_salt"} {
		if strings.Contains(string(out), secret) {
			t.Errorf("board JSON %s leaks %q", out, secret)
		}
	}
}

func TestBoardSequence_Fields(t *testing.T) {
	typ := reflect.TypeOf(BoardSequence{})

	assertGormTag(t, typ, "BoardID", "primaryKey")
	assertFieldType(t, typ, "Value", "int64")
}

func TestColumn_Fields(t *testing.T) {
	typ := reflect.TypeOf(Column{})

	assertGormTag(t, typ, "BoardID", "index")
	assertGormTag(t, typ, "Name", "not null")
	assertGormTag(t, typ, "Position", "not null")
	assertGormTag(t, typ, "WIPLimit", "column:wip_limit")
	assertFieldType(t, typ, "WIPLimit", "*int")
	assertFieldType(t, typ, "ArchivedAt", "*time.Time")
}

func TestTask_Fields(t *testing.T) {
	typ := reflect.TypeOf(Task{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "BoardID", "index")
	assertGormTag(t, typ, "ColumnID", "index")
	assertGormTag(t, typ, "Description", "type:text")
	assertGormTag(t, typ, "Assignee", "index")
	assertGormTag(t, typ, "ClaimedBy", "index")
	assertGormTag(t, typ, "Labels", "type:json")
	assertGormTag(t, typ, "Metadata", "type:json")

	assertFieldType(t, typ, "ClaimedAt", "*time.Time")
	assertFieldType(t, typ, "DueAt", "*time.Time")
	assertFieldType(t, typ, "CompletedAt", "*time.Time")
	assertFieldType(t, typ, "ArchivedAt", "*time.Time")
}

func TestTask_IsArchived(t *testing.T) {
	task := Task{ID: "t1"}
	if task.IsArchived() {
		t.Error("IsArchived = true for a fresh task")
	}
	now := time.Now()
	task.ArchivedAt = &now
	if !task.IsArchived() {
		t.Error("IsArchived = false after setting ArchivedAt")
	}
}

func TestTask_LabelsSerializeAsArray(t *testing.T) {
	task := Task{ID: "t1", Labels: []string{"bug", "ui"}}
	out, err := json.Marshal(task)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(out), `"labels":["bug","ui"]`) {
		t.Errorf("task JSON = %s, want labels array", out)
	}
}

func TestComment_Fields(t *testing.T) {
	typ := reflect.TypeOf(Comment{})

	assertGormTag(t, typ, "ID", "autoIncrement")
	assertGormTag(t, typ, "TaskID", "index")
	assertGormTag(t, typ, "Body", "not null")
	assertFieldType(t, typ, "ID", "uint")
}

func TestEvent_SeqUniquePerBoard(t *testing.T) {
	typ := reflect.TypeOf(Event{})

	assertGormTag(t, typ, "BoardID", "uniqueIndex:idx_event_board_seq,priority:1")
	assertGormTag(t, typ, "Seq", "uniqueIndex:idx_event_board_seq,priority:2")
	assertGormTag(t, typ, "Kind", "index")
	assertFieldType(t, typ, "Seq", "int64")
	assertFieldType(t, typ, "TaskID", "*string")
}

func TestWebhook_Fields(t *testing.T) {
	typ := reflect.TypeOf(Webhook{})

	assertGormTag(t, typ, "BoardID", "index")
	assertGormTag(t, typ, "URL", "not null")
	assertGormTag(t, typ, "Events", "type:json")
	assertGormTag(t, typ, "Active", "index")
	assertFieldType(t, typ, "LastTriggeredAt", "*time.Time")
}

func TestWebhook_SecretNeverSerialized(t *testing.T) {
	w := Webhook{ID: "w1", URL: "https://example.com/hook", Secret: "whsec_abc", Format: "generic", Active: true}
	out, err := json.Marshal(w)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(out), "whsec_abc") {
		t.Errorf("webhook JSON %s leaks the secret", out)
	}
}
