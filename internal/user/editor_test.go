package user

import "testing"

type fakeConn struct {
	modified [][]ModifiedUser
	created  [][]NewUser
	deleted  []string
}

func (c *fakeConn) ModifyUsers(users []ModifiedUser) error {
	c.modified = append(c.modified, users)
	return nil
}

func (c *fakeConn) CreateUsers(users []NewUser) error {
	c.created = append(c.created, users)
	return nil
}

func (c *fakeConn) DeleteUser(username string) error {
	c.deleted = append(c.deleted, username)
	return nil
}

func operatorIdentity() map[string]bool {
	return map[string]bool{"enter": true, "admin": true, "logs": false}
}

func seededEditor(users []User) *Editor {
	e := NewEditor(operatorIdentity())
	e.Reset(&Snapshot{Users: users})
	return e
}

func TestEditorStagingSeed(t *testing.T) {
	e := NewEditor(operatorIdentity())
	s := e.Staging()

	if len(s.Permissions) != 3 {
		t.Fatalf("expected staging to carry the full vocabulary, got %d keys", len(s.Permissions))
	}
	if !s.Permissions["enter"] {
		t.Fatal("expected enter pre-granted for an operator who holds it")
	}
	if s.Permissions["admin"] || s.Permissions["logs"] {
		t.Fatal("expected all other staged permissions to start false")
	}
}

func TestEditorStagingSeedWithoutEnter(t *testing.T) {
	e := NewEditor(map[string]bool{"enter": false, "admin": true})
	if e.Staging().Permissions["enter"] {
		t.Fatal("expected enter to stay false when the operator does not hold it")
	}
}

func TestEditorPermissionGrantGuard(t *testing.T) {
	e := seededEditor([]User{{Username: "alice", Permissions: map[string]bool{"enter": true, "admin": false, "logs": false}}})

	// "logs" is in the vocabulary but the operator holds it false.
	e.SetPermission(0, "logs", true)
	if e.Working()[0].Permissions["logs"] {
		t.Fatal("expected unheld permission to be untouchable")
	}

	// Unknown keys are never invented.
	e.SetPermission(0, "doors", true)
	if _, ok := e.Working()[0].Permissions["doors"]; ok {
		t.Fatal("expected unknown permission key to be rejected")
	}

	e.SetPermission(0, "admin", true)
	if !e.Working()[0].Permissions["admin"] {
		t.Fatal("expected held permission to be settable")
	}
}

func TestEditorAddStagedRequiresUsername(t *testing.T) {
	e := seededEditor(nil)
	if err := e.AddStaged(); err == nil {
		t.Fatal("expected AddStaged to fail without a username")
	}

	e.SetStagedUsername("dave")
	if err := e.AddStaged(); err != nil {
		t.Fatalf("AddStaged: %v", err)
	}
	if got := len(e.Working()); got != 1 {
		t.Fatalf("expected 1 working row, got %d", got)
	}
	if e.Staging().Username != "" {
		t.Fatal("expected staging to reseed after commit")
	}
}

func TestEditorSavePublishesModifiedAndCreated(t *testing.T) {
	e := seededEditor([]User{
		{Username: "alice", Permissions: map[string]bool{"enter": true, "admin": false, "logs": false}},
		{Username: "bob", Permissions: map[string]bool{"enter": true, "admin": false, "logs": false}},
	})

	e.SetUsername(1, "robert")
	e.SetStagedUsername("carol")
	if err := e.AddStaged(); err != nil {
		t.Fatalf("AddStaged: %v", err)
	}

	conn := &fakeConn{}
	d, err := e.Save(conn)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	if len(d.Modified) != 1 || d.Modified[0].Username != "robert" || d.Modified[0].CurrentUsername != "bob" {
		t.Fatalf("unexpected modified set: %+v", d.Modified)
	}
	if len(d.Created) != 1 || d.Created[0].Username != "carol" {
		t.Fatalf("unexpected created set: %+v", d.Created)
	}
	if len(conn.modified) != 1 || len(conn.created) != 1 {
		t.Fatalf("expected one publish per non-empty subset, got modify=%d create=%d",
			len(conn.modified), len(conn.created))
	}
}

func TestEditorSaveEmptyDeltaPublishesNothing(t *testing.T) {
	e := seededEditor([]User{{Username: "alice", Permissions: map[string]bool{"enter": true, "admin": false, "logs": false}}})

	conn := &fakeConn{}
	d, err := e.Save(conn)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !d.Empty() {
		t.Fatalf("expected empty delta, got %+v", d)
	}
	if len(conn.modified) != 0 || len(conn.created) != 0 {
		t.Fatal("expected no publishes for an empty delta")
	}
}

func TestEditorSaveIsRepeatableUntilRefresh(t *testing.T) {
	// Save does not move the baseline; only a snapshot push does.
	e := seededEditor([]User{{Username: "alice", Permissions: map[string]bool{"enter": true, "admin": false, "logs": false}}})
	e.SetUsername(0, "alicia")

	conn := &fakeConn{}
	if _, err := e.Save(conn); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	if _, err := e.Save(conn); err != nil {
		t.Fatalf("second Save: %v", err)
	}
	if len(conn.modified) != 2 {
		t.Fatalf("expected the unrefreshed delta to publish again, got %d publishes", len(conn.modified))
	}
}

func TestEditorCardSlotDeliversReaderReply(t *testing.T) {
	e := seededEditor([]User{{Username: "alice", Permissions: map[string]bool{"enter": true, "admin": false, "logs": false}}})

	idx := e.AddCard(0)
	if idx != 0 {
		t.Fatalf("expected first slot index 0, got %d", idx)
	}
	slot := e.CardSlot(0, idx)
	slot("04A1B2")

	if got := e.Working()[0].Cards[0]; got != "04A1B2" {
		t.Fatalf("expected card written into its slot, got %q", got)
	}
}

func TestEditorCardSlotStaleAfterRemoval(t *testing.T) {
	e := seededEditor([]User{{Username: "alice", Permissions: map[string]bool{"enter": true, "admin": false, "logs": false}, Cards: []string{"OLD"}}})

	idx := e.AddCard(0)
	slot := e.CardSlot(0, idx)
	e.RemoveCard(0, 0)

	// The empty slot shifted to index 0; the writer must not hit it.
	slot("04A1B2")
	cards := e.Working()[0].Cards
	if len(cards) != 1 || cards[0] != "" {
		t.Fatalf("expected stale write dropped, got %v", cards)
	}
}

func TestEditorCardSlotStaleAfterReset(t *testing.T) {
	e := seededEditor([]User{{Username: "alice", Permissions: map[string]bool{"enter": true, "admin": false, "logs": false}}})

	idx := e.AddCard(0)
	slot := e.CardSlot(0, idx)
	e.Reset(&Snapshot{Users: []User{{Username: "alice", Permissions: map[string]bool{"enter": true, "admin": false, "logs": false}, Cards: []string{""}}}})

	slot("04A1B2")
	if got := e.Working()[0].Cards[0]; got != "" {
		t.Fatalf("expected write dropped after snapshot refresh, got %q", got)
	}
}

func TestEditorStagedCardSlot(t *testing.T) {
	e := seededEditor(nil)

	idx := e.AddStagedCard()
	slot := e.CardSlot(StagingTarget, idx)
	slot("0FF0")

	if got := e.Staging().Cards[0]; got != "0FF0" {
		t.Fatalf("expected staged card written, got %q", got)
	}

	// Consuming the staging area invalidates outstanding slots.
	e.SetStagedUsername("dave")
	idx2 := e.AddStagedCard()
	slot2 := e.CardSlot(StagingTarget, idx2)
	if err := e.AddStaged(); err != nil {
		t.Fatalf("AddStaged: %v", err)
	}
	slot2("DEAD")
	if got := e.Staging().Cards; len(got) != 0 {
		t.Fatalf("expected reseeded staging to stay empty, got %v", got)
	}
}

func TestEditorDeleteLeavesWorkingSetAlone(t *testing.T) {
	e := seededEditor([]User{{Username: "alice", Permissions: map[string]bool{"enter": true, "admin": false, "logs": false}}})

	conn := &fakeConn{}
	if err := e.Delete(conn, "alice"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(conn.deleted) != 1 || conn.deleted[0] != "alice" {
		t.Fatalf("expected delete publish for alice, got %v", conn.deleted)
	}
	if len(e.Working()) != 1 {
		t.Fatal("expected local row to remain until the next snapshot push")
	}
}

func TestEditorResetDiscardsEdits(t *testing.T) {
	e := seededEditor([]User{{Username: "alice", Permissions: map[string]bool{"enter": true, "admin": false, "logs": false}}})
	e.SetUsername(0, "alicia")

	e.Reset(&Snapshot{Users: []User{{Username: "alice", Permissions: map[string]bool{"enter": true, "admin": false, "logs": false}}}})

	conn := &fakeConn{}
	delta, err := e.Save(conn)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !delta.Empty() {
		t.Fatalf("expected edits discarded by reset, got %+v", delta)
	}
}
